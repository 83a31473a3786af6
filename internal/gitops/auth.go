package gitops

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/kawanishi0117/agent-company-sub000/internal/errkind"
)

// AuthMethod identifies a credential mechanism.
type AuthMethod string

const (
	// AuthToken injects a token into HTTPS URLs or supplies it via askpass.
	AuthToken AuthMethod = "token"
	// AuthDeployKey uses a repository deploy key file over SSH.
	AuthDeployKey AuthMethod = "deploy_key"
	// AuthSSHAgent forwards the local ssh-agent. Disabled unless the
	// provider explicitly allows it.
	AuthSSHAgent AuthMethod = "ssh_agent"
)

// AuthProvider holds git credentials for remote operations.
type AuthProvider struct {
	// Method selects the credential mechanism.
	Method AuthMethod
	// Token is the access token for AuthToken.
	Token string
	// KeyPath is the private key file for AuthDeployKey.
	KeyPath string
	// AllowAgent must be set for AuthSSHAgent to be accepted.
	AllowAgent bool
}

// Validate checks the provider's internal consistency.
func (p *AuthProvider) Validate() error {
	switch p.Method {
	case AuthToken:
		if p.Token == "" {
			return errkind.Errorf(errkind.InvalidInput, "token auth requires a token")
		}
	case AuthDeployKey:
		if p.KeyPath == "" {
			return errkind.Errorf(errkind.InvalidInput, "deploy-key auth requires a key path")
		}
	case AuthSSHAgent:
		if !p.AllowAgent {
			return errkind.Errorf(errkind.InvalidInput, "ssh-agent forwarding is disabled; set AllowAgent to enable")
		}
	default:
		return errkind.Errorf(errkind.InvalidInput, "unknown auth method %q", p.Method)
	}
	return nil
}

// SetAuth installs a validated credential provider on the manager.
func (m *Manager) SetAuth(p *AuthProvider) error {
	if p == nil {
		m.auth = nil
		return nil
	}
	if err := p.Validate(); err != nil {
		return err
	}
	m.auth = p
	return nil
}

// Env returns the environment entries required for the credential method.
// SSH methods pin StrictHostKeyChecking=accept-new against the validator's
// known-hosts file.
func (p *AuthProvider) Env(knownHostsFile string) []string {
	switch p.Method {
	case AuthDeployKey:
		return []string{fmt.Sprintf(
			"GIT_SSH_COMMAND=ssh -i %s -o StrictHostKeyChecking=accept-new -o UserKnownHostsFile=%s",
			p.KeyPath, knownHostsFile)}
	case AuthSSHAgent:
		return []string{fmt.Sprintf(
			"GIT_SSH_COMMAND=ssh -o StrictHostKeyChecking=accept-new -o UserKnownHostsFile=%s",
			knownHostsFile)}
	case AuthToken:
		// Token is injected into the URL at clone time; askpass is the
		// fallback for fetch/push against existing remotes.
		return []string{"GIT_ASKPASS=echo", "GIT_TERMINAL_PROMPT=0"}
	default:
		return nil
	}
}

// InjectToken rewrites an HTTPS URL to carry the provider's token.
// Non-HTTPS URLs and non-token providers return the URL unchanged.
func (p *AuthProvider) InjectToken(rawURL string) string {
	if p == nil || p.Method != AuthToken || !strings.HasPrefix(rawURL, "https://") {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.User = url.UserPassword("x-access-token", p.Token)
	return u.String()
}
