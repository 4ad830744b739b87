// Package nocodb is a thin client for the NocoDB tabular record store used
// as the product database.
package nocodb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/eyewearops/syncdeck/internal/core/domain"
)

var ErrMissingConfig = errors.New("missing NocoDB configuration")

const (
	// Field names in the products table.
	FieldWinkID            = "Wink Id"
	FieldStockStatus       = "Wink Stock Status"
	FieldLocationInventory = "Wink Location Inventory"

	pageLimit = 1000
)

type Options struct {
	APIToken    string
	BaseURL     string
	ProjectName string
	TableName   string

	HTTPClient *http.Client
}

type Client struct {
	apiURL   string
	apiToken string
	http     *http.Client
}

func NewClient(opts Options) (*Client, error) {
	if opts.APIToken == "" || opts.BaseURL == "" || opts.ProjectName == "" || opts.TableName == "" {
		return nil, ErrMissingConfig
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		apiURL:   fmt.Sprintf("%s/api/v1/db/data/noco/%s/%s", opts.BaseURL, opts.ProjectName, opts.TableName),
		apiToken: opts.APIToken,
		http:     opts.HTTPClient,
	}, nil
}

// Record is a raw row from the products table.
type Record map[string]any

// ID returns the row's primary key.
func (r Record) ID() string {
	for _, key := range []string{"Id", "id"} {
		switch v := r[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.Itoa(int(v))
		}
	}
	return ""
}

// WinkID returns the row's external product identifier, tolerating the
// column-name drift in older tables.
func (r Record) WinkID() string {
	for _, key := range []string{FieldWinkID, "Wink ID", "wink_id", "WinkId"} {
		switch v := r[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.Itoa(int(v))
		}
	}
	return ""
}

type listResponse struct {
	List     []Record `json:"list"`
	PageInfo struct {
		IsLastPage bool `json:"isLastPage"`
		TotalRows  int  `json:"totalRows"`
	} `json:"pageInfo"`
}

// ListRecordsWithWinkID pages through the table and returns the rows that
// carry a Wink id.
func (c *Client) ListRecordsWithWinkID(ctx context.Context) ([]Record, error) {
	var matched []Record

	for offset := 0; ; offset += pageLimit {
		url := fmt.Sprintf("%s?limit=%d&offset=%d", c.apiURL, pageLimit, offset)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		c.setHeaders(req)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("nocodb list request: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("nocodb list returned status %d", resp.StatusCode)
		}

		var page listResponse
		err = json.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decode nocodb list: %w", err)
		}

		if len(page.List) == 0 {
			break
		}
		for _, record := range page.List {
			if record.WinkID() != "" {
				matched = append(matched, record)
			}
		}
		if page.PageInfo.IsLastPage {
			break
		}
	}

	return matched, nil
}

// UpdateStock patches a record with its stock status and the per-location
// count mapping, stored as a JSON object string.
func (c *Client) UpdateStock(ctx context.Context, recordID string, status domain.StockStatus, inventory domain.LocationInventory) error {
	if inventory == nil {
		inventory = domain.LocationInventory{}
	}
	locations, err := json.Marshal(inventory)
	if err != nil {
		return err
	}

	body, err := json.Marshal(map[string]any{
		FieldStockStatus:       string(status),
		FieldLocationInventory: string(locations),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.apiURL+"/"+recordID, bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("nocodb update request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("nocodb update returned status %d for record %s", resp.StatusCode, recordID)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("xc-token", c.apiToken)
	req.Header.Set("Content-Type", "application/json")
}
