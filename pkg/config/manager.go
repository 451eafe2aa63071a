package config

import (
	"context"
	"sync"
)

// Manager owns the process-wide ServerConfig and serializes reloads against
// readers, the way the teacher's pkg/config.Manager fronts compozy's
// runtime config.
type Manager struct {
	mu   sync.RWMutex
	cfg  *ServerConfig
	stop func()
}

// NewManager returns a Manager seeded with DefaultServerConfig. Call Load
// to overlay a file and the environment.
func NewManager() *Manager {
	return &Manager{cfg: DefaultServerConfig()}
}

// Load reads yamlPath (if non-empty) and the environment, replacing the
// managed config atomically on success. The previous config is left in
// place on error.
func (m *Manager) Load(_ context.Context, yamlPath string) (*ServerConfig, error) {
	cfg, err := LoadServerConfig(yamlPath)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
	return cfg, nil
}

// Get returns the current config.
func (m *Manager) Get() *ServerConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// WatchFile reloads the config from yamlPath whenever it changes on disk,
// calling onReload with the new config (and any reload error) each time.
// The returned closer stops watching.
func (m *Manager) WatchFile(ctx context.Context, yamlPath string, onReload func(*ServerConfig, error)) (func() error, error) {
	stop, err := Watch(yamlPath, func() {
		cfg, err := m.Load(ctx, yamlPath)
		if onReload != nil {
			onReload(cfg, err)
		}
	})
	if err != nil {
		return nil, err
	}
	m.stop = stop
	return stop, nil
}

// Close releases any active file watch.
func (m *Manager) Close(_ context.Context) error {
	if m.stop == nil {
		return nil
	}
	return m.stop()
}
