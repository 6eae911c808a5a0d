package application

import (
	"sync"

	"github.com/ericfisherdev/pluginsync/internal/domain/port/driven"
)

// ClientFactory builds a release client authenticated with token. An empty token
// yields an anonymous client.
type ClientFactory func(token string) driven.ReleaseClient

// ReleaseClientProvider enables runtime hot-swap of the release client. Token
// updates take effect on the next Get without restarting the service.
type ReleaseClientProvider struct {
	mu      sync.RWMutex
	factory ClientFactory
	client  driven.ReleaseClient
	token   string
}

// NewReleaseClientProvider creates a provider holding a client built for token.
func NewReleaseClientProvider(factory ClientFactory, token string) *ReleaseClientProvider {
	return &ReleaseClientProvider{
		factory: factory,
		client:  factory(token),
		token:   token,
	}
}

// Get returns the current release client.
func (p *ReleaseClientProvider) Get() driven.ReleaseClient {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.client
}

// SetToken rebuilds the client when token differs from the current one. It reports
// whether a new client was built.
func (p *ReleaseClientProvider) SetToken(token string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if token == p.token && p.client != nil {
		return false
	}
	p.client = p.factory(token)
	p.token = token
	return true
}

// HasToken reports whether the current client is authenticated.
func (p *ReleaseClientProvider) HasToken() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.token != ""
}
