package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/OFFIS-RIT/graphrag/pkg/common"
)

// ConfigProvider supplies the currently selected embedding configuration.
// It is injected wherever a Provider has to be built on demand.
type ConfigProvider interface {
	Current(ctx context.Context) (Config, error)
	Select(ctx context.Context, cfg Config) error
}

// FromConfigProvider builds a Provider from the current selection.
func FromConfigProvider(ctx context.Context, cp ConfigProvider) (*BackendProvider, error) {
	cfg, err := cp.Current(ctx)
	if err != nil {
		return nil, err
	}
	return New(cfg)
}

// FileConfigProvider keeps the selection in a JSON file. The file is read on
// every call so concurrent processes see each other's selection.
type FileConfigProvider struct {
	path string
	mu   sync.Mutex
}

func NewFileConfigProvider(path string) *FileConfigProvider {
	return &FileConfigProvider{path: path}
}

// Current returns the stored selection, or DefaultConfig when the file does
// not exist yet.
func (p *FileConfigProvider) Current(ctx context.Context) (Config, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := os.ReadFile(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to read embedder config %s: %w", p.path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, common.NewConfigurationError("embedding.Current", "invalid embedder config %s: %v", p.path, err)
	}
	if cfg.Provider == "" {
		cfg.Provider = ProviderHuggingFace
	}
	return cfg, nil
}

// Select validates cfg and replaces the stored selection atomically.
func (p *FileConfigProvider) Select(ctx context.Context, cfg Config) error {
	if _, err := cfg.Normalized(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if dir := filepath.Dir(p.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write embedder config: %w", err)
	}
	return os.Rename(tmp, p.path)
}

// StaticConfigProvider holds the selection in memory.
type StaticConfigProvider struct {
	mu  sync.RWMutex
	cfg Config
}

func NewStaticConfigProvider(cfg Config) *StaticConfigProvider {
	return &StaticConfigProvider{cfg: cfg}
}

func (p *StaticConfigProvider) Current(ctx context.Context) (Config, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg, nil
}

func (p *StaticConfigProvider) Select(ctx context.Context, cfg Config) error {
	if _, err := cfg.Normalized(); err != nil {
		return err
	}
	p.mu.Lock()
	p.cfg = cfg
	p.mu.Unlock()
	return nil
}
