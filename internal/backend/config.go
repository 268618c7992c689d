package backend

import (
	"errors"
	"fmt"
	"time"

	"energycalc/internal/config"
)

// Config holds configuration for backend creation
type Config struct {
	Type        BackendType
	SessionTTL  time.Duration
	MaxSessions int

	// SQLite specific
	SQLiteDBPath string
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:         backendType,
		SessionTTL:   appConfig.SessionTTL,
		MaxSessions:  appConfig.MaxSessions,
		SQLiteDBPath: appConfig.SQLiteDBPath,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive, got %s", c.SessionTTL)
	}

	switch c.Type {
	case MemoryBackend:
		if c.MaxSessions < 1 {
			return fmt.Errorf("max sessions must be at least 1, got %d", c.MaxSessions)
		}
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return errors.New("SQLite database path is required for sqlite backend")
		}
	}
	return nil
}
