// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/eocon/pkg/connector"
	"github.com/Thermoquad/eocon/pkg/esp3"
	"github.com/Thermoquad/eocon/pkg/listeners"
)

var versionModule bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the eocon version, and optionally the transceiver's",
	Long: `Print the eocon version.

With --module, also connect to the transceiver and print its application and
API versions, chip ID and base ID.`,
	RunE: runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVarP(&versionModule, "module", "m", false, "Query the transceiver as well")
}

func runVersion(cmd *cobra.Command, args []string) error {
	fmt.Printf("eocon %s (%s, %s/%s)\n", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	if !versionModule {
		return nil
	}

	responses := listeners.NewForwarder(4, esp3.TypeResponse)
	c, info, err := openConnector(func(c *connector.Connector) error {
		return c.AddPacketListener("version", responses, nil)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer c.Close()

	fmt.Printf("Connection: %s\n", info)
	resp, err := request(c, responses, esp3.NewReadVersion(), 2*time.Second)
	if err != nil {
		return err
	}
	v, err := esp3.ParseVersionResponse(resp)
	if err != nil {
		return err
	}
	fmt.Printf("Application: %d.%d.%d.%d\n", v.AppVersion[0], v.AppVersion[1], v.AppVersion[2], v.AppVersion[3])
	fmt.Printf("API:         %d.%d.%d.%d\n", v.APIVersion[0], v.APIVersion[1], v.APIVersion[2], v.APIVersion[3])
	fmt.Printf("Chip:        %08X (version %08X)\n", v.ChipID, v.ChipVersion)
	fmt.Printf("Description: %s\n", v.Description)

	resp, err = request(c, responses, esp3.NewReadIDBase(), 2*time.Second)
	if err != nil {
		return err
	}
	id, err := esp3.ParseIDBaseResponse(resp)
	if err != nil {
		return err
	}
	fmt.Printf("Base ID:     %08X\n", id.BaseID)
	return nil
}
