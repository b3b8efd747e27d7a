package worker

import (
	"fmt"
	"net/url"
	"time"
)

// Config contains worker coordination options.
type Config struct {
	// Page the subsystem runs in
	PageURL   string `yaml:"page_url" env:"OFFLINEKIT_PAGE_URL" envDefault:"http://localhost:3000"`
	ScriptURL string `yaml:"script_url" env:"OFFLINEKIT_WORKER_SCRIPT" envDefault:"/service-worker.js"`

	// Worker runtime link
	LinkURL      string `yaml:"link_url" env:"OFFLINEKIT_WORKER_LINK"`
	AutoActivate bool   `yaml:"auto_activate" env:"OFFLINEKIT_WORKER_AUTO_ACTIVATE" envDefault:"false"`

	// Timing
	CheckTimeout time.Duration `yaml:"check_timeout" env:"OFFLINEKIT_WORKER_CHECK_TIMEOUT" envDefault:"10s"`
	RemindAfter  time.Duration `yaml:"remind_after" env:"OFFLINEKIT_WORKER_REMIND_AFTER" envDefault:"1h"`
}

// DefaultConfig returns the default worker configuration.
func DefaultConfig() Config {
	return Config{
		PageURL:      "http://localhost:3000",
		ScriptURL:    "/service-worker.js",
		CheckTimeout: 10 * time.Second,
		RemindAfter:  DefaultRemindAfter,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	u, err := url.Parse(c.PageURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("page url %q must be absolute", c.PageURL)
	}
	if c.ScriptURL == "" {
		return fmt.Errorf("script url is required")
	}
	if c.LinkURL != "" {
		l, err := url.Parse(c.LinkURL)
		if err != nil || (l.Scheme != "ws" && l.Scheme != "wss") {
			return fmt.Errorf("link url %q must be a ws:// or wss:// url", c.LinkURL)
		}
	}
	if c.CheckTimeout <= 0 {
		return fmt.Errorf("check timeout must be positive")
	}
	if c.RemindAfter <= 0 {
		return fmt.Errorf("remind delay must be positive")
	}
	return nil
}
