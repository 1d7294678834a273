package proxy

import (
	"math/rand"
	"net/url"

	"github.com/williampepple1/post-crawler/internal/config"
)

// Manager handles proxy configuration and rotation
type Manager struct {
	Config *config.ProxyConfig
}

// NewManager creates a new proxy manager
func NewManager(config *config.ProxyConfig) *Manager {
	return &Manager{
		Config: config,
	}
}

// GetProxyURL returns a proxy URL from the configuration, or nil when proxies are off
func (m *Manager) GetProxyURL() (*url.URL, error) {
	if m == nil || m.Config == nil || !m.Config.Enabled || len(m.Config.List) == 0 {
		return nil, nil
	}

	// Select a proxy
	proxyStr := m.Config.List[0]
	if m.Config.Rotate && len(m.Config.List) > 1 {
		proxyStr = m.Config.List[rand.Intn(len(m.Config.List))]
	}

	return url.Parse(proxyStr)
}

// ServerFlag returns the value for the browser's --proxy-server switch.
// Chrome ignores credentials embedded in the switch, so they are stripped
// here and answered through Credentials instead.
func (m *Manager) ServerFlag() (string, error) {
	proxyURL, err := m.GetProxyURL()
	if err != nil || proxyURL == nil {
		return "", err
	}

	stripped := *proxyURL
	stripped.User = nil
	return stripped.String(), nil
}

// Credentials returns the proxy username and password, if configured
func (m *Manager) Credentials() (username, password string, ok bool) {
	if m == nil || m.Config == nil || !m.Config.Enabled {
		return "", "", false
	}
	if m.Config.Auth.Username == "" || m.Config.Auth.Password == "" {
		return "", "", false
	}
	return m.Config.Auth.Username, m.Config.Auth.Password, true
}
