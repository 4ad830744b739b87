package dashclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/eyewearops/syncdeck/internal/core/domain"
)

// Client drives the dashboard's REST calls and keeps the shared View in step
// with them.
type Client struct {
	baseURL string
	http    *http.Client
	view    *View
}

func NewClient(baseURL string, view *View) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		view:    view,
	}
}

// View returns the view the client reconciles into.
func (c *Client) View() *View {
	return c.view
}

type startResponse struct {
	JobID  string           `json:"job_id"`
	Status domain.JobStatus `json:"status"`
}

// Start flips the service to running optimistically, then asks the backend
// to start a job. On success the returned job id is tracked so pushed events
// reconcile against it. A transport failure keeps the optimistic state and
// leaves a notice on the row instead of rolling back.
func (c *Client) Start(ctx context.Context, service string) (string, error) {
	c.view.Track(service, "", domain.JobStatusRunning)

	url := fmt.Sprintf("%s/api/v1/services/%s/start", c.baseURL, service)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.view.SetNotice(service, "start request failed, state may be stale")
		return "", fmt.Errorf("start %s: %w", service, err)
	}
	defer resp.Body.Close()

	var body startResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.view.SetNotice(service, "start response unreadable, state may be stale")
		return "", fmt.Errorf("decode start response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK:
		c.view.Track(service, body.JobID, body.Status)
		return body.JobID, nil
	case http.StatusConflict:
		// A job is already running; adopt it instead of erroring the UI.
		c.view.Track(service, body.JobID, domain.JobStatusRunning)
		return body.JobID, nil
	default:
		c.view.Clear(service, domain.JobStatusFailed)
		return "", fmt.Errorf("start %s: backend returned status %d", service, resp.StatusCode)
	}
}

// Stop stops the tracked job for a service. With no tracked job id there is
// nothing the backend could act on, so the row is settled locally and no
// request is made.
func (c *Client) Stop(ctx context.Context, service string) error {
	jobID := c.view.JobID(service)
	if jobID == "" {
		c.view.Clear(service, domain.JobStatusStopped)
		return nil
	}

	url := fmt.Sprintf("%s/api/v1/services/%s/stop/%s", c.baseURL, service, jobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("stop %s: %w", service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stop %s: backend returned status %d", service, resp.StatusCode)
	}

	c.view.Clear(service, domain.JobStatusStopped)
	return nil
}

type logsResponse struct {
	JobID string   `json:"job_id"`
	Logs  []string `json:"logs"`
}

// Logs fetches the log lines for a job of the given service.
func (c *Client) Logs(ctx context.Context, service, jobID string) ([]string, error) {
	url := fmt.Sprintf("%s/api/v1/services/%s/logs/%s", c.baseURL, service, jobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch logs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch logs: backend returned status %d", resp.StatusCode)
	}

	var body logsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode logs response: %w", err)
	}
	return body.Logs, nil
}

type scheduleRequest struct {
	Mode     string `json:"mode"`
	Date     string `json:"date,omitempty"`
	Time     string `json:"time,omitempty"`
	CronExpr string `json:"cron_expression,omitempty"`
}

type scheduleResponse struct {
	ScheduleID string `json:"schedule_id"`
	Scheduled  bool   `json:"scheduled"`
	NextRun    string `json:"next_run"`
}

// ScheduleFixed creates a one-shot schedule at a literal date and time.
func (c *Client) ScheduleFixed(ctx context.Context, service, date, timeOfDay string) (string, string, error) {
	return c.schedule(ctx, service, scheduleRequest{Mode: string(domain.ScheduleModeFixed), Date: date, Time: timeOfDay})
}

// ScheduleCron creates a recurring schedule from a five-field cron
// expression.
func (c *Client) ScheduleCron(ctx context.Context, service, expr string) (string, string, error) {
	return c.schedule(ctx, service, scheduleRequest{Mode: string(domain.ScheduleModeCustom), CronExpr: expr})
}

func (c *Client) schedule(ctx context.Context, service string, reqBody scheduleRequest) (string, string, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", "", err
	}

	url := fmt.Sprintf("%s/api/v1/services/%s/schedule", c.baseURL, service)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("create schedule: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", "", fmt.Errorf("create schedule: backend returned status %d", resp.StatusCode)
	}

	var body scheduleResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", "", fmt.Errorf("decode schedule response: %w", err)
	}
	return body.ScheduleID, body.NextRun, nil
}
