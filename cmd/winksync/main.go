// winksync runs one inventory sync pass from the command line, outside the
// dashboard: the same engine the server's worker uses, reporting to stdout.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/eyewearops/syncdeck/internal/config"
	"github.com/eyewearops/syncdeck/internal/core/logger"
	"github.com/eyewearops/syncdeck/internal/nocodb"
	"github.com/eyewearops/syncdeck/internal/syncer"
	"github.com/eyewearops/syncdeck/internal/wink"
)

var (
	flagLimit int
	flagDelay time.Duration
	flagQuiet bool
)

func main() {
	root := &cobra.Command{
		Use:   "winksync",
		Short: "Sync Wink inventory into the NocoDB products table",
		Long: `winksync logs into the Wink API once, walks every product record that
carries a Wink Id, classifies its stock level and writes the result back.
Per-record failures are counted and reported; only authentication or
record-store failures abort the pass.`,
		SilenceUsage: true,
		RunE:         run,
	}

	root.Flags().IntVar(&flagLimit, "limit", 0, "process at most N records (0 = all)")
	root.Flags().DurationVar(&flagDelay, "delay", 0, "override the pause between record lookups")
	root.Flags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress per-record progress lines")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	config.LoadDotenv()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	if err := cfg.ValidateWink(); err != nil {
		return err
	}
	if err := cfg.ValidateNocoDB(); err != nil {
		return err
	}

	winkClient, err := wink.NewClient(wink.Options{
		BaseURL:   cfg.Wink.BaseURL,
		AccountID: cfg.Wink.AccountID,
		Username:  cfg.Wink.Username,
		Password:  cfg.Wink.Password,
		StoreID:   cfg.Wink.StoreID,
	})
	if err != nil {
		return err
	}

	nocoClient, err := nocodb.NewClient(nocodb.Options{
		APIToken:    cfg.NocoDB.APIToken,
		BaseURL:     cfg.NocoDB.BaseURL,
		ProjectName: cfg.NocoDB.ProjectName,
		TableName:   cfg.NocoDB.TableName,
	})
	if err != nil {
		return err
	}

	delay := cfg.SyncRequestDelay
	if flagDelay > 0 {
		delay = flagDelay
	}

	engine := syncer.New(winkClient, nocoClient, delay)
	if flagLimit > 0 {
		engine = engine.WithLimit(flagLimit)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report := func(progress int, line string) {
		if flagQuiet {
			return
		}
		fmt.Printf("[%3d%%] %s\n", progress, line)
	}

	started := time.Now()
	stats, err := engine.Run(ctx, report)
	if err != nil {
		return fmt.Errorf("sync aborted: %w", err)
	}

	fmt.Println()
	fmt.Println("Sync complete")
	fmt.Printf("  duration:      %s\n", time.Since(started).Round(time.Second))
	fmt.Printf("  total records: %d\n", stats.TotalRecords)
	fmt.Printf("  processed:     %d\n", stats.Processed)
	fmt.Printf("  updated:       %d\n", stats.Updated)
	fmt.Printf("  in stock:      %d\n", stats.InStock)
	fmt.Printf("  low stock:     %d\n", stats.LowStock)
	fmt.Printf("  out of stock:  %d\n", stats.OutOfStock)
	fmt.Printf("  not found:     %d\n", stats.NotFound)
	fmt.Printf("  errors:        %d\n", stats.Errors)

	if stats.Errors > 0 {
		return fmt.Errorf("%d records failed", stats.Errors)
	}
	return nil
}
