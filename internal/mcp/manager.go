package mcp

import (
	"context"
	"errors"
	"sync"
)

// Manager owns a set of servers for the lifetime of a run. Servers are
// connected in order and closed in reverse.
type Manager struct {
	servers []*Server

	mu        sync.Mutex
	connected []*Server
	closed    bool
}

func NewManager(servers ...*Server) *Manager {
	return &Manager{servers: servers}
}

// Servers returns the managed servers in configuration order.
func (m *Manager) Servers() []*Server {
	out := make([]*Server, len(m.servers))
	copy(out, m.servers)
	return out
}

// Connect connects every server in order. If one fails, the servers already
// connected are closed in reverse order and the failure is returned.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.servers {
		if err := s.Connect(ctx); err != nil {
			closeErr := closeReverse(m.connected)
			m.connected = nil
			m.closed = true
			return errors.Join(err, closeErr)
		}
		m.connected = append(m.connected, s)
	}
	return nil
}

// Close closes every connected server in reverse acquisition order.
// It is safe to call more than once.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	err := closeReverse(m.connected)
	m.connected = nil
	return err
}

func closeReverse(servers []*Server) error {
	var errs []error
	for i := len(servers) - 1; i >= 0; i-- {
		if err := servers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
