// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrConnectionClosed is returned when reading from a failed or closed
// WebSocket connection
var ErrConnectionClosed = errors.New("websocket connection closed")

// WebSocket is a transport to a serial bridge that relays the transceiver's
// byte stream as binary WebSocket messages. The bridge URL is the only port
// it offers.
type WebSocket struct {
	URL           string
	Username      string
	Password      string
	SkipSSLVerify bool

	HandshakeTimeout time.Duration
	DialTimeout      time.Duration

	mu      sync.Mutex
	conn    *websocket.Conn
	closed  bool
	writeMu sync.Mutex

	// read side, only touched by the reading goroutine
	buf       []byte
	bufOffset int
}

// NewWebSocket creates a WebSocket transport for wsURL. Credentials are sent
// as HTTP Basic auth when username and password are both set.
func NewWebSocket(wsURL, username, password string, skipSSLVerify bool) *WebSocket {
	return &WebSocket{
		URL:              wsURL,
		Username:         username,
		Password:         password,
		SkipSSLVerify:    skipSSLVerify,
		HandshakeTimeout: 10 * time.Second,
		DialTimeout:      15 * time.Second,
	}
}

// ListPorts returns the bridge URL
func (w *WebSocket) ListPorts() ([]string, error) {
	if w.URL == "" {
		return nil, nil
	}
	return []string{w.URL}, nil
}

// Open dials the bridge at wsURL
func (w *WebSocket) Open(wsURL string) error {
	u, err := url.Parse(wsURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: w.HandshakeTimeout,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: w.SkipSSLVerify,
		}
	}

	headers := http.Header{}
	if w.Username != "" && w.Password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(w.Username + ":" + w.Password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.DialTimeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("WebSocket connection failed: %w", err)
	}

	w.mu.Lock()
	if w.conn != nil {
		w.conn.Close()
	}
	w.conn = conn
	w.closed = false
	w.mu.Unlock()

	w.buf = nil
	w.bufOffset = 0
	return nil
}

func (w *WebSocket) current() (*websocket.Conn, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		return nil, ErrNotOpen
	}
	if w.closed {
		return nil, ErrConnectionClosed
	}
	return w.conn, nil
}

// Read returns buffered message bytes first, then blocks for the next binary
// message. Text and control messages are skipped.
func (w *WebSocket) Read(p []byte) (int, error) {
	conn, err := w.current()
	if err != nil {
		return 0, err
	}

	if w.bufOffset < len(w.buf) {
		n := copy(p, w.buf[w.bufOffset:])
		w.bufOffset += n
		return n, nil
	}

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			w.mu.Lock()
			w.closed = true
			w.mu.Unlock()
			return 0, err
		}
		if messageType != websocket.BinaryMessage {
			continue
		}

		w.buf = data
		n := copy(p, w.buf)
		w.bufOffset = n
		return n, nil
	}
}

// Write sends p as one binary message
func (w *WebSocket) Write(p []byte) (int, error) {
	conn, err := w.current()
	if err != nil {
		return 0, err
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close closes the connection, unblocking a pending Read
func (w *WebSocket) Close() error {
	w.mu.Lock()
	conn := w.conn
	w.conn = nil
	w.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

// String describes the transport for logs and banners
func (w *WebSocket) String() string {
	return fmt.Sprintf("WebSocket: %s", w.URL)
}
