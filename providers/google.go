package providers

import (
	"context"
	"net/http"

	"github.com/bastion-dev/bastion/core"
)

// Google resolves tokens against the OIDC userinfo endpoint.
type Google struct {
	endpoint   string
	httpClient *http.Client
}

var _ core.ProviderClient = (*Google)(nil)

func NewGoogle(endpoint string, client *http.Client) *Google {
	return &Google{endpoint: endpoint, httpClient: orDefaultClient(client)}
}

func (g *Google) ID() string { return "google" }

func (g *Google) UserInfo(ctx context.Context, accessToken string) (*core.ProviderProfile, error) {
	var raw struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}

	if err := fetchUserInfo(ctx, g.httpClient, g.endpoint, accessToken, &raw); err != nil {
		return nil, err
	}

	if raw.Sub == "" {
		return nil, core.ErrIncompleteProviderProfile
	}

	return &core.ProviderProfile{
		ProviderUserID: raw.Sub,
		Email:          raw.Email,
		Name:           raw.Name,
		AvatarURL:      raw.Picture,
	}, nil
}
