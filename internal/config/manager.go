package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"zuppa/pkg/logx"
)

// Manager loads the config file and optionally watches it for changes so
// cheap knobs (logging level) can be re-applied without a restart.
type Manager struct {
	path string

	mu  sync.RWMutex
	cfg *Config

	log logx.Logger

	// lastHash tracks the last successfully committed config content.
	// It avoids redundant reload callbacks when the editor causes multiple
	// write events without content changes.
	lastHash uint64
}

func NewManager(path string) *Manager {
	return &Manager{path: path}
}

func (m *Manager) SetLogger(log logx.Logger) { m.log = log }

func (m *Manager) Parse() (*Config, error) {
	b, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}
	jb, _, err := coerceToJSONBytes(m.path, b)
	if err != nil {
		return nil, err
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("invalid config: trailing data")
		}
		return nil, err
	}
	return &cfg, nil
}

func (m *Manager) Commit(cfg *Config) {
	m.mu.Lock()
	m.cfg = cfg
	m.lastHash = hashConfig(cfg)
	m.mu.Unlock()
}

func (m *Manager) Load() (*Config, error) {
	cfg, err := m.Parse()
	if err != nil {
		return nil, err
	}
	m.Commit(cfg)
	return cfg, nil
}

func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Watch re-parses the config file on filesystem changes and invokes onReload
// with each successfully committed config. A file that fails to parse is
// logged and ignored; the previous config stays committed. Watch blocks
// until ctx is cancelled.
func (m *Manager) Watch(ctx context.Context, onReload func(*Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Watch the directory: editors typically replace the file, which drops
	// a watch registered on the file itself.
	dir := filepath.Dir(m.path)
	if err := w.Add(dir); err != nil {
		return err
	}

	// Debounce: editors fire several events per save.
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(m.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(200 * time.Millisecond)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			m.log.Warn("config watch error", logx.Err(err))
		case <-pending:
			pending = nil
			cfg, err := m.Parse()
			if err != nil {
				m.log.Error("config reload rejected, keeping previous config", logx.Err(err))
				continue
			}
			if h := hashConfig(cfg); h == m.currentHash() {
				continue
			}
			m.Commit(cfg)
			m.log.Info("config reloaded")
			if onReload != nil {
				onReload(cfg)
			}
		}
	}
}

func (m *Manager) currentHash() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastHash
}

func hashConfig(cfg *Config) uint64 {
	if cfg == nil {
		return 0
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}
