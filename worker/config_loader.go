package worker

import (
	"fmt"

	"github.com/spf13/viper"
)

// LoadConfigFromViper loads worker configuration from Viper.
func LoadConfigFromViper() (Config, error) {
	cfg := DefaultConfig()

	if viper.IsSet("worker.page_url") {
		cfg.PageURL = viper.GetString("worker.page_url")
	}
	if viper.IsSet("worker.script_url") {
		cfg.ScriptURL = viper.GetString("worker.script_url")
	}
	if viper.IsSet("worker.link_url") {
		cfg.LinkURL = viper.GetString("worker.link_url")
	}
	if viper.IsSet("worker.auto_activate") {
		cfg.AutoActivate = viper.GetBool("worker.auto_activate")
	}
	if viper.IsSet("worker.check_timeout") {
		cfg.CheckTimeout = viper.GetDuration("worker.check_timeout")
	}
	if viper.IsSet("worker.remind_after") {
		cfg.RemindAfter = viper.GetDuration("worker.remind_after")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid worker configuration: %w", err)
	}
	return cfg, nil
}
