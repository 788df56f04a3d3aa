package api

import (
	"context"
	"net/http"

	"advisor/internal/models"
)

// CurrentUser fetches the profile behind the current token. A 401 response
// surfaces as ErrUnauthorized.
func (c *Client) CurrentUser(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.doJSON(ctx, http.MethodGet, "/api/auth/me", nil, true, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
