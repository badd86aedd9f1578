// Package providers holds the relying-party side of external identity
// providers: given a bearer token obtained by the client, each provider
// client fetches the upstream user-info document and normalizes it into
// a core.ProviderProfile.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bastion-dev/bastion/core"
)

// Registry dispatches a provider tag to its client.
type Registry struct {
	clients map[string]core.ProviderClient
}

func NewRegistry(clients ...core.ProviderClient) *Registry {
	r := &Registry{clients: make(map[string]core.ProviderClient)}
	for _, c := range clients {
		r.clients[c.ID()] = c
	}
	return r
}

// Get resolves a provider tag; unknown tags get core.ErrUnknownProvider.
func (r *Registry) Get(id string) (core.ProviderClient, error) {
	c, ok := r.clients[id]
	if !ok {
		return nil, core.ErrUnknownProvider
	}
	return c, nil
}

// Register adds or replaces a provider client.
func (r *Registry) Register(c core.ProviderClient) {
	r.clients[c.ID()] = c
}

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

// fetchUserInfo performs the single outbound call a linking operation is
// allowed: GET the user-info endpoint with the bearer token. A 401/403
// from upstream means the token is bad, not that we are.
func fetchUserInfo(ctx context.Context, client *http.Client, endpoint, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build user-info request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch user info: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return core.ErrInvalidProviderToken
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("user-info endpoint returned %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode user info: %w", err)
	}
	return nil
}
