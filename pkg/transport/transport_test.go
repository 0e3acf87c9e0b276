// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Thermoquad/eocon/pkg/connector"
)

var (
	_ connector.Transport = (*Serial)(nil)
	_ connector.Transport = (*WebSocket)(nil)
)

// ============================================================
// Bridge server
// ============================================================

// newBridge starts a WebSocket server that sends greeting (a text message
// followed by a binary one) and then echoes binary messages back
func newBridge(t *testing.T, user, pass string, greeting []byte) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user != "" {
			u, p, ok := r.BasicAuth()
			if !ok || u != user || p != pass {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if greeting != nil {
			conn.WriteMessage(websocket.TextMessage, []byte("hello"))
			conn.WriteMessage(websocket.BinaryMessage, greeting)
		}
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if kind == websocket.BinaryMessage {
				conn.WriteMessage(websocket.BinaryMessage, data)
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func readN(t *testing.T, w *WebSocket, n int) []byte {
	t.Helper()
	var out []byte
	buf := make([]byte, 4)
	deadline := time.Now().Add(2 * time.Second)
	for len(out) < n && time.Now().Before(deadline) {
		k, err := w.Read(buf)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		out = append(out, buf[:k]...)
	}
	return out
}

// ============================================================
// WebSocket Tests
// ============================================================

func TestWebSocketListPorts(t *testing.T) {
	w := NewWebSocket("ws://bridge.local/serial", "", "", false)
	ports, err := w.ListPorts()
	if err != nil || len(ports) != 1 || ports[0] != "ws://bridge.local/serial" {
		t.Errorf("ListPorts() = %v, %v", ports, err)
	}

	empty := NewWebSocket("", "", "", false)
	if ports, _ := empty.ListPorts(); len(ports) != 0 {
		t.Errorf("ListPorts() without URL = %v", ports)
	}
}

func TestWebSocketReadSkipsTextAndBuffers(t *testing.T) {
	greeting := []byte{0x55, 0x00, 0x01, 0x00, 0x02, 0x65, 0x00, 0x00}
	url := newBridge(t, "", "", greeting)

	w := NewWebSocket(url, "", "", false)
	if err := w.Open(url); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer w.Close()

	// 4-byte reads split the 8-byte message across calls
	got := readN(t, w, len(greeting))
	if !bytes.Equal(got, greeting) {
		t.Errorf("read %x, want %x", got, greeting)
	}
}

func TestWebSocketEcho(t *testing.T) {
	url := newBridge(t, "", "", nil)
	w := NewWebSocket(url, "", "", false)
	if err := w.Open(url); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer w.Close()

	frame := []byte{0x55, 0x00, 0x01, 0x00, 0x05, 0x70, 0x03, 0x09}
	n, err := w.Write(frame)
	if err != nil || n != len(frame) {
		t.Fatalf("Write = %d, %v", n, err)
	}
	if got := readN(t, w, len(frame)); !bytes.Equal(got, frame) {
		t.Errorf("echo = %x, want %x", got, frame)
	}
}

func TestWebSocketBasicAuth(t *testing.T) {
	url := newBridge(t, "admin", "secret", nil)

	w := NewWebSocket(url, "admin", "wrong", false)
	err := w.Open(url)
	if err == nil {
		w.Close()
		t.Fatal("Open succeeded with wrong password")
	}
	if !strings.Contains(err.Error(), "HTTP 401") {
		t.Errorf("err = %v, want HTTP 401", err)
	}

	w = NewWebSocket(url, "admin", "secret", false)
	if err := w.Open(url); err != nil {
		t.Fatalf("Open with credentials: %v", err)
	}
	w.Close()
}

func TestWebSocketRejectsScheme(t *testing.T) {
	tests := []string{"http://host/path", "serial:///dev/ttyUSB0", "://bad"}
	for _, u := range tests {
		t.Run(u, func(t *testing.T) {
			w := NewWebSocket(u, "", "", false)
			if err := w.Open(u); err == nil {
				t.Errorf("Open(%q) succeeded", u)
			}
		})
	}
}

func TestWebSocketCloseUnblocksRead(t *testing.T) {
	url := newBridge(t, "", "", nil)
	w := NewWebSocket(url, "", "", false)
	if err := w.Open(url); err != nil {
		t.Fatalf("Open: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := w.Read(make([]byte, 16))
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case err := <-done:
		if err == nil {
			t.Error("Read returned nil error after Close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Read still blocked after Close")
	}

	if _, err := w.Read(make([]byte, 1)); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Read after Close err = %v, want ErrNotOpen", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

// ============================================================
// Serial Tests
// ============================================================

func TestSerialDefaults(t *testing.T) {
	s := NewSerial(0)
	if s.BaudRate != DefaultBaudRate {
		t.Errorf("BaudRate = %d, want %d", s.BaudRate, DefaultBaudRate)
	}
	if s.ReadTimeout != DefaultReadTimeout {
		t.Errorf("ReadTimeout = %v, want %v", s.ReadTimeout, DefaultReadTimeout)
	}
	if got := NewSerial(115200).BaudRate; got != 115200 {
		t.Errorf("BaudRate = %d, want 115200", got)
	}
}

func TestSerialNotOpen(t *testing.T) {
	s := NewSerial(0)
	if _, err := s.Read(make([]byte, 1)); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Read err = %v, want ErrNotOpen", err)
	}
	if _, err := s.Write([]byte{0x55}); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Write err = %v, want ErrNotOpen", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close on closed port: %v", err)
	}
}

func TestSerialOpenMissingPort(t *testing.T) {
	s := NewSerial(0)
	if err := s.Open("/dev/eocon-does-not-exist"); err == nil {
		s.Close()
		t.Error("Open of a missing device succeeded")
	}
}
