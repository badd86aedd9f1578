package providers

import (
	"context"
	"net/http"

	"github.com/bastion-dev/bastion/core"
)

// Twitter resolves tokens against the v2 users/me endpoint. The
// endpoint never returns an email; the account linker synthesizes a
// placeholder from the username.
type Twitter struct {
	endpoint   string
	httpClient *http.Client
}

var _ core.ProviderClient = (*Twitter)(nil)

func NewTwitter(endpoint string, client *http.Client) *Twitter {
	return &Twitter{endpoint: endpoint, httpClient: orDefaultClient(client)}
}

func (t *Twitter) ID() string { return "twitter" }

func (t *Twitter) UserInfo(ctx context.Context, accessToken string) (*core.ProviderProfile, error) {
	var raw struct {
		Data struct {
			ID              string `json:"id"`
			Name            string `json:"name"`
			Username        string `json:"username"`
			ProfileImageURL string `json:"profile_image_url"`
		} `json:"data"`
	}

	if err := fetchUserInfo(ctx, t.httpClient, t.endpoint, accessToken, &raw); err != nil {
		return nil, err
	}

	if raw.Data.ID == "" || raw.Data.Username == "" {
		return nil, core.ErrIncompleteProviderProfile
	}

	return &core.ProviderProfile{
		ProviderUserID: raw.Data.ID,
		Name:           raw.Data.Name,
		Username:       raw.Data.Username,
		AvatarURL:      raw.Data.ProfileImageURL,
	}, nil
}
