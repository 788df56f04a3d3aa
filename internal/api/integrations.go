package api

import (
	"context"
	"fmt"
	"net/http"

	"advisor/internal/models"
)

type syncRequest struct {
	Mode string `json:"mode"`
}

type syncResponse struct {
	Message string `json:"message"`
}

// StartSync asks the backend to begin importing data from a provider. The
// call only acknowledges acceptance; progress is observed through Status.
func (c *Client) StartSync(ctx context.Context, provider models.Provider, mode models.SyncMode) error {
	path := fmt.Sprintf("/api/integrations/sync/%s", provider)
	req := syncRequest{Mode: mode.WireValue()}

	var resp syncResponse
	if err := c.doJSON(ctx, http.MethodPost, path, req, true, &resp); err != nil {
		return fmt.Errorf("start %s sync: %w", provider, err)
	}

	c.logger.Debug().
		Str("provider", string(provider)).
		Str("mode", mode.WireValue()).
		Str("message", resp.Message).
		Msg("sync accepted")
	return nil
}

// Status fetches the current state of both provider integrations.
func (c *Client) Status(ctx context.Context) (*models.IntegrationStatus, error) {
	var status models.IntegrationStatus
	if err := c.doJSON(ctx, http.MethodGet, "/api/integrations/status", nil, true, &status); err != nil {
		return nil, err
	}
	return &status, nil
}
