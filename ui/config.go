package ui

import "strings"

// Build modes.
const (
	ModeProduction  = "production"
	ModeDevelopment = "development"
)

// Config contains TUI and build-mode configuration.
type Config struct {
	// Build inputs
	Mode      string `env:"OFFLINEKIT_MODE" envDefault:"development"`
	PublicURL string `env:"PUBLIC_URL"`

	EnableMouse bool
	AltScreen   bool `env:"OFFLINEKIT_ALT_SCREEN" envDefault:"true"`

	// Address serving Prometheus metrics while watching, empty to disable
	MetricsAddr string `env:"OFFLINEKIT_METRICS_ADDR"`
}

// Production reports whether this is a production build.
func (c Config) Production() bool {
	return strings.EqualFold(c.Mode, ModeProduction)
}
