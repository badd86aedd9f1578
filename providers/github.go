package providers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/bastion-dev/bastion/core"
)

// GitHub resolves tokens against the GitHub user endpoint.
type GitHub struct {
	endpoint   string
	httpClient *http.Client
}

var _ core.ProviderClient = (*GitHub)(nil)

func NewGitHub(endpoint string, client *http.Client) *GitHub {
	return &GitHub{endpoint: endpoint, httpClient: orDefaultClient(client)}
}

func (g *GitHub) ID() string { return "github" }

func (g *GitHub) UserInfo(ctx context.Context, accessToken string) (*core.ProviderProfile, error) {
	var raw struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"` // null unless the user made it public
		AvatarURL string `json:"avatar_url"`
	}

	if err := fetchUserInfo(ctx, g.httpClient, g.endpoint, accessToken, &raw); err != nil {
		return nil, err
	}

	if raw.ID == 0 {
		return nil, core.ErrIncompleteProviderProfile
	}

	name := raw.Name
	if name == "" {
		name = raw.Login
	}

	return &core.ProviderProfile{
		ProviderUserID: strconv.FormatInt(raw.ID, 10),
		Email:          raw.Email,
		Name:           name,
		Username:       raw.Login,
		AvatarURL:      raw.AvatarURL,
	}, nil
}
