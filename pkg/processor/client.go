package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"meeting-recorder/dto"
	"meeting-recorder/pkg/apperr"
)

const processMeetingPath = "/process-meeting"

// Client registers meetings with the remote processing service.
type Client struct {
	http    *resty.Client
	baseURL string
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http: resty.New().
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Notify asks the service to process a meeting. Acceptance is the only
// thing confirmed here; the outcome arrives out of band.
func (c *Client) Notify(ctx context.Context, req dto.ProcessMeetingRequest) error {
	if c.baseURL == "" {
		return fmt.Errorf("processor base url not configured: %w", apperr.ErrNotificationFailed)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		Post(c.baseURL + processMeetingPath)
	if err != nil {
		return errors.Join(apperr.ErrNotificationFailed, err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("processor responded %d: %s: %w", resp.StatusCode(), strings.TrimSpace(resp.String()), apperr.ErrNotificationFailed)
	}

	zerolog.Ctx(ctx).Debug().
		Str("meeting_id", req.MeetingId.String()).
		Int("status_code", resp.StatusCode()).
		Msg("processor accepted meeting")
	return nil
}
