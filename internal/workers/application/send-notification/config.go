// internal/workers/application/send-notification/config.go
package sendnotification

import (
	"time"

	"application-wizard/internal/common/config"
)

type Config struct {
	SMSEnabled   bool
	EmailEnabled bool
	Timeout      time.Duration
}

func LoadConfig(wcfg config.WorkerConfig, ncfg config.NotifyConfig) *Config {
	timeout := config.GetDuration(wcfg.Timeout)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Config{
		SMSEnabled:   ncfg.SMSEnabled,
		EmailEnabled: ncfg.EmailEnabled,
		Timeout:      timeout,
	}
}
