package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/surge/pkg/surge/http11"
	"github.com/yourusername/surge/pkg/surge/socket"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, 8888, config.Port)
	assert.Equal(t, http11.AddrSocket, config.ClientAddress)
	assert.Equal(t, 10*time.Second, config.IdleTimeout)
	assert.Equal(t, 20*time.Second, config.KeepAliveTime)
	assert.Equal(t, 40*1024, config.MaxRequestSize)
	assert.Equal(t, 64, config.MaxRequestHeaders)
	assert.NoError(t, config.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"port too low", func(c *Config) { c.Port = 0 }, false},
		{"port too high", func(c *Config) { c.Port = 70000 }, false},
		{"unix without path", func(c *Config) { c.SockType = socket.Unix }, false},
		{"unix with path", func(c *Config) { c.SockType = socket.Unix; c.UnixPath = "/tmp/s.sock" }, true},
		{"zero idle timeout", func(c *Config) { c.IdleTimeout = 0 }, false},
		{"zero request size", func(c *Config) { c.MaxRequestSize = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(&config)

			err := config.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestConfigSetPortOrPath(t *testing.T) {
	config := DefaultConfig()

	require.NoError(t, config.SetPortOrPath("9000"))
	assert.Equal(t, 9000, config.Port)
	assert.NotEqual(t, socket.Unix, config.SockType)

	require.NoError(t, config.SetPortOrPath("/run/surge.sock"))
	assert.Equal(t, socket.Unix, config.SockType)
	assert.Equal(t, "/run/surge.sock", config.UnixPath)

	// Back to TCP
	require.NoError(t, config.SetPortOrPath("8080"))
	assert.NotEqual(t, socket.Unix, config.SockType)
	assert.Equal(t, 8080, config.Port)

	assert.Error(t, config.SetPortOrPath("99999"))
}

func TestConfigSetProperty(t *testing.T) {
	config := DefaultConfig()

	require.NoError(t, config.SetProperty("SocketType", "IPv6"))
	assert.Equal(t, socket.IPv6, config.SockType)

	require.NoError(t, config.SetProperty("Port", "8080"))
	assert.Equal(t, 8080, config.Port)

	require.NoError(t, config.SetProperty("ClientAddress", "X-Forwarded-For"))
	assert.Equal(t, http11.AddrXForwardedFor, config.ClientAddress)

	require.NoError(t, config.SetProperty("IdleTimeout", "2500"))
	assert.Equal(t, 2500*time.Millisecond, config.IdleTimeout)

	require.NoError(t, config.SetProperty("MaxRequestSize", "65536"))
	assert.Equal(t, 65536, config.MaxRequestSize)

	assert.Error(t, config.SetProperty("Bogus", "1"))
	assert.Error(t, config.SetProperty("Port", "http"))
	assert.Error(t, config.SetProperty("ClientAddress", "telepathy"))
}

func TestLoadConfig(t *testing.T) {
	content := `[HTTP]
SocketType = IPv4
Port = 8080
ClientAddress = X-Forwarded-For
IdleTimeout = 5000
KeepAliveTime = 15000
MaxRequestSize = 32768
`
	path := filepath.Join(t.TempDir(), "surge.ini")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, socket.IPv4, config.SockType)
	assert.Equal(t, 8080, config.Port)
	assert.Equal(t, http11.AddrXForwardedFor, config.ClientAddress)
	assert.Equal(t, 5*time.Second, config.IdleTimeout)
	assert.Equal(t, 15*time.Second, config.KeepAliveTime)
	assert.Equal(t, 32768, config.MaxRequestSize)

	// Unset keys keep their defaults
	assert.Equal(t, 64, config.MaxRequestHeaders)
}

func TestLoadConfigUnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "surge.ini")
	require.NoError(t, os.WriteFile(path, []byte("[HTTP]\nWarpSpeed = 9\n"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.ini"))
	assert.Error(t, err)
}
