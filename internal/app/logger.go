package app

import (
	"strings"

	"github.com/charlesng35/tenantcrm/pkg/logger"
)

// ConfigureLogging initialises the global logger from the server section,
// defaulting to info. Development uses the console encoder.
func ConfigureLogging(cfg ServerConfig) error {
	level := strings.TrimSpace(cfg.LogLevel)
	if level == "" {
		level = "info"
	}
	return logger.InitWithOptions(level, logger.Options{Development: cfg.IsDevelopment()})
}
