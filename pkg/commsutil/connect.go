// Package commsutil provides the NATS connection and subject helpers that
// carry bridge traffic between this process and the wallet host.
package commsutil

import (
	"fmt"
	"log/slog"
	"time"

	comms "github.com/nats-io/nats.go"
)

const logPrefix = "commsutil:connect"

// ConnectParams holds parameters for Connect. Zero durations and counts use defaults.
type ConnectParams struct {
	URL           string
	Name          string
	Timeout       time.Duration
	ReconnectWait time.Duration
	MaxReconnects int
}

// Connect opens the host link.
func Connect(params ConnectParams) (*comms.Conn, error) {
	if params.Timeout <= 0 {
		params.Timeout = 10 * time.Second
	}
	if params.ReconnectWait <= 0 {
		params.ReconnectWait = 2 * time.Second
	}
	if params.MaxReconnects == 0 {
		params.MaxReconnects = 60
	}
	slog.Info(fmt.Sprintf("%s - Connecting to host link at %s as %s", logPrefix, params.URL, params.Name))

	nc, err := comms.Connect(params.URL,
		comms.Name(params.Name),
		comms.Timeout(params.Timeout),
		comms.ReconnectWait(params.ReconnectWait),
		comms.MaxReconnects(params.MaxReconnects),
		comms.DisconnectErrHandler(func(_ *comms.Conn, err error) {
			slog.Warn(fmt.Sprintf("%s - host link disconnected: %v", logPrefix, err))
		}),
		comms.ReconnectHandler(func(nc *comms.Conn) {
			slog.Info(fmt.Sprintf("%s - host link reconnected to %s", logPrefix, nc.ConnectedUrl()))
		}),
		comms.ClosedHandler(func(nc *comms.Conn) {
			slog.Info(fmt.Sprintf("%s - host link closed", logPrefix))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to connect to host link: %w", logPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Connected to host link at %s", logPrefix, nc.ConnectedUrl()))
	return nc, nil
}
