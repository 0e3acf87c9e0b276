// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/Thermoquad/eocon/internal/metrics"
	"github.com/Thermoquad/eocon/pkg/connector"
	"github.com/Thermoquad/eocon/pkg/listeners"
	"github.com/Thermoquad/eocon/pkg/transport"
)

// errNoConnection is returned when neither a port nor a URL is configured
var errNoConnection = errors.New("either --port or --url must be specified")

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv("EOCON_PASSWORD"); pw != "" {
		return pw, nil
	}

	// Prompt user for password (hide input)
	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// openTransport builds the transport selected by the settings. The returned
// port is empty when none is configured, which only the ports command allows.
func openTransport() (t connector.Transport, port, info string, err error) {
	ws := settings.WebSocket
	if ws.URL != "" {
		password := ""
		if ws.Username != "" {
			password, err = GetPassword()
			if err != nil {
				return nil, "", "", err
			}
		}
		return transport.NewWebSocket(ws.URL, ws.Username, password, ws.NoSSLVerify),
			ws.URL, fmt.Sprintf("WebSocket: %s", ws.URL), nil
	}

	s := settings.Serial
	t = transport.NewSerial(s.Baud)
	if s.Port == "" {
		return t, "", fmt.Sprintf("Serial @ %d baud", s.Baud), nil
	}
	return t, s.Port, fmt.Sprintf("Serial: %s @ %d baud", s.Port, s.Baud), nil
}

// newConnector creates a connector over t with the configured listeners
// registered
func newConnector(t connector.Transport) (*connector.Connector, error) {
	opts := append(settings.Connector.Options(), connector.WithLogger(logger))
	c, err := connector.New(t, opts...)
	if err != nil {
		return nil, err
	}

	registry := listeners.NewRegistry()
	for _, lc := range settings.Listeners {
		l, err := registry.New(lc.Kind, logger)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("listener %s: %w", lc.Name, err)
		}
		if err := c.AddPacketListener(lc.Name, l, lc.Props()); err != nil {
			c.Close()
			return nil, fmt.Errorf("listener %s: %w", lc.Name, err)
		}
	}
	return c, nil
}

// openConnector builds the transport and connector, runs setup and then
// starts acquisition on the configured port. Listeners and observers can only
// be registered before acquisition starts, so setup is where commands add
// theirs. setup may be nil.
func openConnector(setup func(c *connector.Connector) error) (*connector.Connector, string, error) {
	t, port, info, err := openTransport()
	if err != nil {
		return nil, "", err
	}
	if port == "" {
		return nil, "", errNoConnection
	}
	c, err := newConnector(t)
	if err != nil {
		return nil, "", err
	}
	if setup != nil {
		if err := setup(c); err != nil {
			c.Close()
			return nil, "", err
		}
	}
	if err := startOn(c, port); err != nil {
		c.Close()
		return nil, "", err
	}
	return c, info, nil
}

func startOn(c *connector.Connector, port string) error {
	if err := c.SetPort(port); err != nil {
		return err
	}
	return c.StartAcquisition()
}

// signalContext is cancelled on Ctrl+C or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// serveMetrics runs the metrics endpoint in the background when an address
// is configured
func serveMetrics(ctx context.Context, c *connector.Connector) {
	addr := settings.Metrics.Addr
	if addr == "" {
		return
	}
	go func() {
		if err := metrics.Serve(ctx, addr, c, logger); err != nil {
			logger.Error().Err(err).Str("addr", addr).Msg("metrics endpoint stopped")
		}
	}()
}

const (
	reconnectCheckInterval = time.Second
	reconnectErrorChecks   = 3
	reconnectMinBackoff    = time.Second
	reconnectMaxBackoff    = 30 * time.Second
)

// keepAlive restarts acquisition when the transport keeps failing. A
// connection is considered lost after read errors in several consecutive
// checks. Restarts back off exponentially.
func keepAlive(ctx context.Context, c *connector.Connector, onChange func(lost bool)) {
	ticker := time.NewTicker(reconnectCheckInterval)
	defer ticker.Stop()

	lastErrors := c.LinkStats().ReadErrors
	failing := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		errs := c.LinkStats().ReadErrors
		if errs > lastErrors {
			failing++
		} else {
			failing = 0
		}
		lastErrors = errs
		if failing < reconnectErrorChecks {
			continue
		}

		logger.Warn().Msg("connection lost, reconnecting")
		if onChange != nil {
			onChange(true)
		}
		if !reconnect(ctx, c) {
			return
		}
		if onChange != nil {
			onChange(false)
		}
		failing = 0
		lastErrors = c.LinkStats().ReadErrors
	}
}

// reconnect cycles acquisition until it succeeds; it returns false if ctx
// ends first
func reconnect(ctx context.Context, c *connector.Connector) bool {
	if c.State().Phase == connector.PhaseRunning {
		if err := c.StopAcquisition(); err != nil {
			logger.Warn().Err(err).Msg("failed to stop acquisition")
		}
	}

	backoff := reconnectMinBackoff
	for {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}

		err := c.StartAcquisition()
		if err == nil {
			logger.Info().Str("port", c.State().Port).Msg("reconnected")
			return true
		}
		logger.Debug().Err(err).Dur("backoff", backoff).Msg("reconnect failed")

		backoff *= 2
		if backoff > reconnectMaxBackoff {
			backoff = reconnectMaxBackoff
		}
	}
}
