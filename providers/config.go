package providers

import (
	"net/http"

	"github.com/caarlos0/env/v11"
)

// Config holds the user-info endpoints. Overridable for tests and for
// self-hosted provider deployments.
type Config struct {
	GoogleUserInfoURL  string `env:"BASTION_GOOGLE_USERINFO_URL"  envDefault:"https://openidconnect.googleapis.com/v1/userinfo"`
	GitHubUserInfoURL  string `env:"BASTION_GITHUB_USERINFO_URL"  envDefault:"https://api.github.com/user"`
	TwitterUserInfoURL string `env:"BASTION_TWITTER_USERINFO_URL" envDefault:"https://api.twitter.com/2/users/me"`
}

// LoadConfigFromEnv reads provider configuration from the environment,
// falling back to the public endpoints.
func LoadConfigFromEnv() Config {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{
			GoogleUserInfoURL:  "https://openidconnect.googleapis.com/v1/userinfo",
			GitHubUserInfoURL:  "https://api.github.com/user",
			TwitterUserInfoURL: "https://api.twitter.com/2/users/me",
		}
	}
	return cfg
}

// DefaultRegistry builds a registry with all built-in providers using
// one shared HTTP client.
func DefaultRegistry(cfg Config) *Registry {
	client := defaultHTTPClient()
	return NewRegistry(
		NewGoogle(cfg.GoogleUserInfoURL, client),
		NewGitHub(cfg.GitHubUserInfoURL, client),
		NewTwitter(cfg.TwitterUserInfoURL, client),
	)
}

func orDefaultClient(c *http.Client) *http.Client {
	if c == nil {
		return defaultHTTPClient()
	}
	return c
}
