package http11

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Settings carries the connection-level knobs shared by every IO of one
// daemon. One instance is built at Start and referenced read-only by all
// dispatchers and workers.
type Settings struct {
	Limits   Limits
	AddrMode AddrMode

	// IdleTimeout caps the gap between reads on an established
	// connection.
	IdleTimeout time.Duration

	// KeepAliveTime caps the total wall-clock lifetime of a keep-alive
	// connection.
	KeepAliveTime time.Duration

	// SendTimeout caps how long one response write may take.
	SendTimeout time.Duration

	Logger *logrus.Logger
}

// DefaultSettings mirrors the daemon's configuration defaults.
func DefaultSettings() *Settings {
	return &Settings{
		Limits:        DefaultLimits(),
		AddrMode:      AddrSocket,
		IdleTimeout:   10 * time.Second,
		KeepAliveTime: 20 * time.Second,
		SendTimeout:   60 * time.Second,
		Logger:        logrus.StandardLogger(),
	}
}

func (s *Settings) logger() *logrus.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return logrus.StandardLogger()
}
