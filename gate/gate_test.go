package gate

import (
	"errors"
	"testing"

	"github.com/bastion-dev/bastion/core"
)

const browserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"

// Requirement: empty and known non-browser signatures are rejected;
// matching is case-insensitive and substring-based.
func TestGate_CheckUserAgent(t *testing.T) {
	g := New(Config{}, nil)

	tests := []struct {
		name      string
		userAgent string
		wantErr   error
	}{
		{"browser", browserAgent, nil},
		{"empty", "", core.ErrUserAgentBlocked},
		{"whitespace only", "   ", core.ErrUserAgentBlocked},
		{"curl", "curl/8.5.0", core.ErrUserAgentBlocked},
		{"mixed case", "PostmanRuntime/7.36.0", core.ErrUserAgentBlocked},
		{"embedded signature", "my-tool (python-requests/2.31)", core.ErrUserAgentBlocked},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			if err := g.CheckUserAgent(test.userAgent); !errors.Is(err, test.wantErr) {
				t.Errorf("CheckUserAgent(%q) error = %v, want %v", test.userAgent, err, test.wantErr)
			}
		})
	}
}

// Requirement: a custom denylist replaces the default one entirely.
func TestGate_CheckUserAgentCustomDenylist(t *testing.T) {
	g := New(Config{BlockedAgents: []string{"badbot"}}, nil)

	if err := g.CheckUserAgent("curl/8.5.0"); err != nil {
		t.Errorf("curl should pass under a custom denylist, got %v", err)
	}
	if err := g.CheckUserAgent("BadBot/1.0"); !errors.Is(err, core.ErrUserAgentBlocked) {
		t.Errorf("denylisted agent error = %v, want ErrUserAgentBlocked", err)
	}
}

// Requirement: with an origin configured, only that origin (or no Origin
// header at all) passes; without one the check is off.
func TestGate_CheckOrigin(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		origin     string
		wantErr    error
	}{
		{"check disabled", "", "https://evil.example", nil},
		{"same origin", "https://app.example.com", "https://app.example.com", nil},
		{"trailing slash tolerated", "https://app.example.com", "https://app.example.com/", nil},
		{"no origin header", "https://app.example.com", "", nil},
		{"cross origin", "https://app.example.com", "https://evil.example", core.ErrOriginNotAllowed},
		{"scheme mismatch", "https://app.example.com", "http://app.example.com", core.ErrOriginNotAllowed},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			g := New(Config{Origin: test.configured}, nil)
			if err := g.CheckOrigin(test.origin); !errors.Is(err, test.wantErr) {
				t.Errorf("CheckOrigin(%q) error = %v, want %v", test.origin, err, test.wantErr)
			}
		})
	}
}
