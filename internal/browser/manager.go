package browser

import (
	"fmt"
	"log/slog"

	"github.com/nbenliogludev/go-web-agent/internal/config"
)

// Manager owns the browser process and the one page all tools share.
type Manager struct {
	driver string
	page   Page
	close  func() error
	log    *slog.Logger
}

// NewManager starts the browser selected by cfg.Driver.
func NewManager(cfg config.BrowserConfig, log *slog.Logger) (*Manager, error) {
	if log == nil {
		log = slog.Default()
	}

	var (
		page  Page
		close func() error
		err   error
	)
	switch cfg.Driver {
	case "", config.DriverPlaywright:
		page, close, err = startPlaywright(cfg, log)
	case config.DriverChromedp:
		page, close, err = startChromedp(cfg)
	default:
		return nil, fmt.Errorf("unknown browser driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	log.Info("browser started", "driver", cfg.Driver, "headless", cfg.Headless)
	return &Manager{driver: cfg.Driver, page: page, close: close, log: log}, nil
}

// NewManagerWithPage wraps an existing page. Close is a no-op.
func NewManagerWithPage(p Page) *Manager {
	return &Manager{driver: "external", page: p, close: func() error { return nil }, log: slog.Default()}
}

func (m *Manager) GetPage() Page {
	if m == nil {
		return nil
	}
	return m.page
}

func (m *Manager) Driver() string { return m.driver }

func (m *Manager) Close() {
	if m == nil || m.close == nil {
		return
	}
	if err := m.close(); err != nil {
		m.log.Warn("browser close failed", "err", err)
	}
}
