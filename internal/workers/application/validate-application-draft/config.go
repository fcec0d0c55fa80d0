// internal/workers/application/validate-application-draft/config.go
package validateapplicationdraft

import (
	"time"

	"application-wizard/internal/common/config"
)

type Config struct {
	Timeout time.Duration
	// CompleteOnInvalid completes the job with isValid=false instead of
	// throwing APPLICATION_VALIDATION_FAILED into the process.
	CompleteOnInvalid bool
}

func LoadConfig(wcfg config.WorkerConfig) *Config {
	timeout := config.GetDuration(wcfg.Timeout)
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Config{Timeout: timeout}
}
