package api

import (
	"context"
	"net/http"

	"github.com/soyeahso/skillswap/internal/domain"
)

// Swaps calls GET /swaps. Accepted swaps are the message threads.
func (c *Client) Swaps(ctx context.Context) ([]domain.Swap, error) {
	var swaps []domain.Swap
	if err := doJSON(ctx, c.http, c.log, http.MethodGet, c.endpoint("swaps"), nil, &swaps); err != nil {
		return nil, err
	}
	return swaps, nil
}
