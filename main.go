// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// eocon - EnOcean ESP3 Serial Connector
//
// A CLI tool for receiving, decoding and sending EnOcean Serial Protocol 3
// packets through a USB gateway or a WebSocket serial bridge.

package main

import (
	"os"

	"github.com/Thermoquad/eocon/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
