package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultSearchTarget = "ssdp:all"
	DefaultSearchWindow = 3 * time.Second
	DefaultHTTPTimeout  = 5 * time.Second
	DefaultUUIDPath     = ".local/rctl/cp_uuid.txt"
	DefaultFriendlyName = "rctl"
	DefaultMaxAge       = 1800
)

type Config struct {
	SearchTarget  string
	SearchWindow  time.Duration
	Interface     string
	HTTPTimeout   time.Duration
	UUIDPath      string
	FriendlyName  string
	DefaultMaxAge int
}

func Load() Config {
	cfg := Config{
		SearchTarget:  envVar("RCTL_SEARCH_TARGET", DefaultSearchTarget),
		SearchWindow:  envVar("RCTL_SEARCH_WINDOW", DefaultSearchWindow),
		Interface:     envVar("RCTL_INTERFACE", ""),
		HTTPTimeout:   envVar("RCTL_HTTP_TIMEOUT", DefaultHTTPTimeout),
		UUIDPath:      envVar("RCTL_UUID_PATH", os.Getenv("HOME")+"/"+DefaultUUIDPath),
		FriendlyName:  envVar("RCTL_FRIENDLY_NAME", DefaultFriendlyName),
		DefaultMaxAge: envVar("RCTL_DEFAULT_MAX_AGE", DefaultMaxAge),
	}

	// Validate configuration
	cfg.validate()

	return cfg
}

func envVar[T ~string | ~bool | ~int | ~int64](key string, def T) T {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}

	switch any(def).(type) {
	case string:
		return any(v).(T)
	case bool:
		if b, err := strconv.ParseBool(v); err == nil {
			return any(b).(T)
		}
	case int:
		if i, err := strconv.Atoi(v); err == nil {
			return any(i).(T)
		}
	case time.Duration:
		if d, err := time.ParseDuration(v); err == nil {
			return any(d).(T)
		}
		// bare numbers are seconds
		if i, err := strconv.Atoi(v); err == nil {
			return any(time.Duration(i) * time.Second).(T)
		}
	case int64:
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return any(i).(T)
		}
	}
	return def
}

// validate performs validation on configuration values
func (c *Config) validate() {
	if c.SearchTarget == "" {
		c.SearchTarget = DefaultSearchTarget
	}

	// MX must stay within 1..5 seconds
	c.SearchWindow = max(time.Second, min(c.SearchWindow, 5*time.Second))

	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
	if c.DefaultMaxAge <= 0 {
		c.DefaultMaxAge = DefaultMaxAge
	}
	if c.FriendlyName == "" {
		c.FriendlyName = DefaultFriendlyName
	}
}
