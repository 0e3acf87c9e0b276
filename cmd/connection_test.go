// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Thermoquad/eocon/internal/config"
	"github.com/Thermoquad/eocon/pkg/connector"
	"github.com/Thermoquad/eocon/pkg/esp3"
	"github.com/Thermoquad/eocon/pkg/listeners"
)

// ============================================================
// Bridge server
// ============================================================

// versionPayload is a CO_RD_VERSION answer for app 1.2.3.4
var versionPayload = append([]byte{1, 2, 3, 4, 2, 11, 1, 0, 0xDE, 0xAD, 0xBE, 0xEF, 0, 0, 0, 1}, []byte("GATEWAYCTRL\x00\x00\x00\x00\x00")...)

// newTransceiverBridge starts a WebSocket bridge that sends greeting on
// connect and answers every received frame with a RESPONSE carrying code
// and payload. It returns the bridge URL.
func newTransceiverBridge(t *testing.T, greeting esp3.Message, code byte, payload []byte) string {
	t.Helper()
	resp, err := esp3.NewResponse(code, payload)
	if err != nil {
		t.Fatalf("NewResponse: %v", err)
	}
	answer := esp3.MustEncodePacket(resp)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if greeting != nil {
			conn.WriteMessage(websocket.BinaryMessage, esp3.MustEncodePacket(greeting))
		}
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if kind != websocket.BinaryMessage || len(esp3.DecodeAll(data, nil)) == 0 {
				continue
			}
			conn.WriteMessage(websocket.BinaryMessage, answer)
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// useBridge points the command settings at url for the duration of the test
func useBridge(t *testing.T, url string) {
	t.Helper()
	saved, savedTimeout, savedCount := settings, sendTimeout, sendCount
	t.Cleanup(func() {
		settings, sendTimeout, sendCount = saved, savedTimeout, savedCount
	})

	settings = config.Default()
	settings.WebSocket.URL = url
	settings.Connector.DecodeIntervalMs = 1
	settings.Connector.IOIntervalMs = 1
	sendTimeout = 2
	sendCount = 1
}

// ============================================================
// Commands over a bridge
// ============================================================

func TestSendCommandsGetsResponse(t *testing.T) {
	useBridge(t, newTransceiverBridge(t, nil, esp3.RetOK, versionPayload))
	sendCount = 2

	var out bytes.Buffer
	code, err := sendCommands(&out, []string{"version"})
	if err != nil {
		t.Fatalf("sendCommands: %v", err)
	}
	if code != 0 {
		t.Fatalf("exit code = %d, want 0\n%s", code, out.String())
	}
	if !strings.Contains(out.String(), "app=1.2.3.4") || !strings.Contains(out.String(), "2 commands sent, 2 answered OK") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}

func TestSendCommandsReportsRejection(t *testing.T) {
	useBridge(t, newTransceiverBridge(t, nil, esp3.RetNotSupported, nil))

	var out bytes.Buffer
	code, err := sendCommands(&out, []string{"reset"})
	if err != nil {
		t.Fatalf("sendCommands: %v", err)
	}
	if code != 1 || !strings.Contains(out.String(), "RET_NOT_SUPPORTED") {
		t.Errorf("exit code = %d, output:\n%s", code, out.String())
	}
}

func TestSendCommandsConnectionFailure(t *testing.T) {
	// Nothing listens on port 1, so the dial is refused
	useBridge(t, "ws://127.0.0.1:1/")

	var out bytes.Buffer
	code, err := sendCommands(&out, []string{"version"})
	if err != nil {
		t.Fatalf("sendCommands: %v", err)
	}
	if code != 2 {
		t.Errorf("exit code = %d, want 2", code)
	}
}

func TestSendCommandsRejectsBadCommand(t *testing.T) {
	useBridge(t, "ws://127.0.0.1:1/")

	if _, err := sendCommands(&bytes.Buffer{}, []string{"selfdestruct"}); err == nil {
		t.Error("unknown command accepted")
	}
}

func TestWaitForPacketReceivesRadio(t *testing.T) {
	radio, err := esp3.NewRadioTelegram(esp3.RORGRPS, []byte{0x50}, 0x01020304, 0x30)
	if err != nil {
		t.Fatalf("NewRadioTelegram: %v", err)
	}
	useBridge(t, newTransceiverBridge(t, radio, esp3.RetOK, nil))

	var out bytes.Buffer
	code, err := waitForPacket(&out, 2*time.Second)
	if err != nil {
		t.Fatalf("waitForPacket: %v", err)
	}
	if code != 0 {
		t.Fatalf("exit code = %d, want 0\n%s", code, out.String())
	}
	if !strings.Contains(out.String(), "SUCCESS") || !strings.Contains(out.String(), "RADIO") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}

func TestWaitForPacketTimesOut(t *testing.T) {
	useBridge(t, newTransceiverBridge(t, nil, esp3.RetOK, nil))

	code, err := waitForPacket(&bytes.Buffer{}, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("waitForPacket: %v", err)
	}
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}

func TestOpenConnectorRunsSetupBeforeStart(t *testing.T) {
	useBridge(t, newTransceiverBridge(t, nil, esp3.RetOK, nil))

	var phase connector.Phase = -1
	c, _, err := openConnector(func(c *connector.Connector) error {
		phase = c.State().Phase
		return c.AddPacketListener("setup", listeners.NewForwarder(1), nil)
	})
	if err != nil {
		t.Fatalf("openConnector: %v", err)
	}
	defer c.Close()

	if phase != connector.PhaseInitialized {
		t.Errorf("setup ran in %s, want %s", phase, connector.PhaseInitialized)
	}
	if got := c.State().Phase; got != connector.PhaseRunning {
		t.Errorf("phase after open = %s, want %s", got, connector.PhaseRunning)
	}
	if names := c.Listeners(); len(names) != 1 || names[0] != "setup" {
		t.Errorf("Listeners() = %v", names)
	}
}
