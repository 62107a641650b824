// Package daemon ties the server together: it binds listeners, starts one
// dispatcher per listener plus the worker pool, and shuts everything down
// on Stop. Configuration comes from a Config struct or an INI file with
// an [HTTP] section.
package daemon

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"

	"github.com/yourusername/surge/pkg/surge/http11"
	"github.com/yourusername/surge/pkg/surge/socket"
)

// Config holds every daemon knob. DefaultConfig returns one with every
// field set to its default; Validate rejects inconsistent combinations.
type Config struct {
	// SockType selects the listener address family. Defaults to Dual
	// except on platforms that reject dual-stack sockets.
	SockType socket.Type

	// Port is the TCP port for IP socket types.
	Port int

	// UnixPath is the socket path for the Unix socket type.
	UnixPath string

	// ClientAddress selects how the request's client address is derived.
	ClientAddress http11.AddrMode

	// IdleTimeout caps the gap between reads on an established
	// connection.
	IdleTimeout time.Duration

	// KeepAliveTime caps the total lifetime of a keep-alive connection.
	KeepAliveTime time.Duration

	// SendTimeout caps how long one response write may block.
	SendTimeout time.Duration

	// StopTimeout is the grace period Stop grants in-flight handlers.
	StopTimeout time.Duration

	// MaxRequestSize caps the request line plus header block.
	MaxRequestSize int

	// MaxURLLen, MaxRequestHeaders and MaxRequestCookies are further
	// structural caps on one request.
	MaxURLLen         int
	MaxRequestHeaders int
	MaxRequestCookies int

	// Logger receives daemon and connection logs. Defaults to the
	// logrus standard logger.
	Logger *logrus.Logger
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	sockType := socket.Dual
	if !socket.SupportsDualStack {
		sockType = socket.IPv4
	}

	return Config{
		SockType:          sockType,
		Port:              8888,
		ClientAddress:     http11.AddrSocket,
		IdleTimeout:       10 * time.Second,
		KeepAliveTime:     20 * time.Second,
		SendTimeout:       60 * time.Second,
		StopTimeout:       10 * time.Second,
		MaxRequestSize:    40 * 1024,
		MaxURLLen:         20 * 1024,
		MaxRequestHeaders: 64,
		MaxRequestCookies: 64,
	}
}

// Validate checks the configuration without touching the system.
func (c *Config) Validate() error {
	if c.SockType == socket.Unix {
		if c.UnixPath == "" {
			return fmt.Errorf("daemon: unix socket path must be set")
		}
	} else {
		if c.Port < 1 || c.Port > 65535 {
			return fmt.Errorf("daemon: HTTP port %d is invalid (range: 1 - 65535)", c.Port)
		}
		if c.SockType == socket.Dual && !socket.SupportsDualStack {
			return fmt.Errorf("daemon: dual-stack sockets are not supported on this platform")
		}
	}

	if c.IdleTimeout <= 0 || c.KeepAliveTime <= 0 {
		return fmt.Errorf("daemon: timeouts must be positive")
	}
	if c.MaxRequestSize <= 0 {
		return fmt.Errorf("daemon: request size limit must be positive")
	}

	return nil
}

// SetPortOrPath interprets a command-line style endpoint: an all-digit
// string is a TCP port, anything else switches to a Unix socket path.
func (c *Config) SetPortOrPath(str string) error {
	digits := str != ""
	for i := 0; i < len(str); i++ {
		if str[i] < '0' || str[i] > '9' {
			digits = false
			break
		}
	}

	if digits {
		port, err := strconv.Atoi(str)
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("daemon: HTTP port %q is invalid (range: 1 - 65535)", str)
		}

		if c.SockType == socket.Unix {
			c.SockType = socket.Dual
			if !socket.SupportsDualStack {
				c.SockType = socket.IPv4
			}
		}
		c.Port = port
	} else {
		c.SockType = socket.Unix
		c.UnixPath = str
	}

	return nil
}

// SetProperty applies one Key = Value pair from the [HTTP] configuration
// section.
func (c *Config) SetProperty(key, value string) error {
	switch key {
	case "SocketType", "IPStack":
		sockType, err := socket.ParseType(value)
		if err != nil {
			return fmt.Errorf("daemon: unknown socket type %q", value)
		}
		c.SockType = sockType

	case "Port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("daemon: invalid port %q", value)
		}
		c.Port = port

	case "UnixPath":
		c.UnixPath = value

	case "ClientAddress":
		mode, err := parseAddrMode(value)
		if err != nil {
			return err
		}
		c.ClientAddress = mode

	case "IdleTimeout":
		return setMillis(&c.IdleTimeout, key, value)
	case "KeepAliveTime":
		return setMillis(&c.KeepAliveTime, key, value)
	case "SendTimeout":
		return setMillis(&c.SendTimeout, key, value)
	case "StopTimeout":
		return setMillis(&c.StopTimeout, key, value)

	case "MaxRequestSize":
		return setBytes(&c.MaxRequestSize, key, value)
	case "MaxUrlLength", "MaxURLLen":
		return setBytes(&c.MaxURLLen, key, value)
	case "MaxRequestHeaders":
		return setBytes(&c.MaxRequestHeaders, key, value)
	case "MaxRequestCookies":
		return setBytes(&c.MaxRequestCookies, key, value)

	default:
		return fmt.Errorf("daemon: unknown HTTP property %q", key)
	}

	return nil
}

func setMillis(dst *time.Duration, key, value string) error {
	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil || ms < 0 {
		return fmt.Errorf("daemon: invalid value %q for %s", value, key)
	}
	*dst = time.Duration(ms) * time.Millisecond
	return nil
}

func setBytes(dst *int, key, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return fmt.Errorf("daemon: invalid value %q for %s", value, key)
	}
	*dst = n
	return nil
}

func parseAddrMode(value string) (http11.AddrMode, error) {
	switch strings.ToLower(value) {
	case "socket":
		return http11.AddrSocket, nil
	case "x-forwarded-for", "xforwardedfor":
		return http11.AddrXForwardedFor, nil
	case "x-real-ip", "xrealip":
		return http11.AddrXRealIP, nil
	default:
		return http11.AddrSocket, fmt.Errorf("daemon: unknown client address mode %q", value)
	}
}

// LoadConfig reads an INI configuration file and applies the keys of the
// [HTTP] section on top of the defaults.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	file, err := ini.Load(path)
	if err != nil {
		return config, fmt.Errorf("daemon: cannot load configuration: %w", err)
	}

	section := file.Section("HTTP")
	for _, key := range section.Keys() {
		if err := config.SetProperty(key.Name(), key.Value()); err != nil {
			return config, err
		}
	}

	return config, nil
}

func (c *Config) settings() *http11.Settings {
	return &http11.Settings{
		Limits: http11.Limits{
			MaxRequestSize: c.MaxRequestSize,
			MaxURLLen:      c.MaxURLLen,
			MaxHeaders:     c.MaxRequestHeaders,
			MaxCookies:     c.MaxRequestCookies,
		},
		AddrMode:      c.ClientAddress,
		IdleTimeout:   c.IdleTimeout,
		KeepAliveTime: c.KeepAliveTime,
		SendTimeout:   c.SendTimeout,
		Logger:        c.Logger,
	}
}
