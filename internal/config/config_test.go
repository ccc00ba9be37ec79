package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"RCTL_SEARCH_TARGET", "RCTL_SEARCH_WINDOW", "RCTL_INTERFACE", "RCTL_HTTP_TIMEOUT", "RCTL_UUID_PATH", "RCTL_FRIENDLY_NAME", "RCTL_DEFAULT_MAX_AGE"} {
		t.Setenv(k, "")
	}
	t.Setenv("HOME", "/home/test")

	cfg := Load()
	assert.Equal(t, DefaultSearchTarget, cfg.SearchTarget)
	assert.Equal(t, DefaultSearchWindow, cfg.SearchWindow)
	assert.Equal(t, "", cfg.Interface)
	assert.Equal(t, DefaultHTTPTimeout, cfg.HTTPTimeout)
	assert.Equal(t, "/home/test/"+DefaultUUIDPath, cfg.UUIDPath)
	assert.Equal(t, DefaultFriendlyName, cfg.FriendlyName)
	assert.Equal(t, DefaultMaxAge, cfg.DefaultMaxAge)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("RCTL_SEARCH_TARGET", "urn:schemas-upnp-org:device:MediaRenderer:1")
	t.Setenv("RCTL_SEARCH_WINDOW", "2s")
	t.Setenv("RCTL_INTERFACE", "en0")
	t.Setenv("RCTL_HTTP_TIMEOUT", "10")
	t.Setenv("RCTL_FRIENDLY_NAME", "den")
	t.Setenv("RCTL_DEFAULT_MAX_AGE", "60")

	cfg := Load()
	assert.Equal(t, "urn:schemas-upnp-org:device:MediaRenderer:1", cfg.SearchTarget)
	assert.Equal(t, 2*time.Second, cfg.SearchWindow)
	assert.Equal(t, "en0", cfg.Interface)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "den", cfg.FriendlyName)
	assert.Equal(t, 60, cfg.DefaultMaxAge)
}

func TestValidate(t *testing.T) {
	t.Setenv("RCTL_SEARCH_WINDOW", "30s")
	t.Setenv("RCTL_HTTP_TIMEOUT", "-1s")
	t.Setenv("RCTL_DEFAULT_MAX_AGE", "abc")

	cfg := Load()
	assert.Equal(t, 5*time.Second, cfg.SearchWindow)
	assert.Equal(t, DefaultHTTPTimeout, cfg.HTTPTimeout)
	assert.Equal(t, DefaultMaxAge, cfg.DefaultMaxAge)
}
