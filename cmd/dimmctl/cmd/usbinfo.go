package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pimworks/dimmctl/pkg/dfu"
	"github.com/pimworks/dimmctl/pkg/discovery"
)

var usbInfoCmd = &cobra.Command{
	Use:   "usb-info",
	Short: "Display the serial number and ranks of every connected DIMM",
	Long: `Probe every DIMM USB console on the host and print a table mapping
console names to DIMM serial numbers and rank devices.

A DIMM whose MCU sits in DFU mode has no console and cannot appear in
the table; when such devices are detected on the USB bus a reminder is
printed after it.

Examples:
  dimmctl usb-info
  dimmctl usb-info --stop-on-error`,
	Args: cobra.NoArgs,
	RunE: runUSBInfo,
}

func init() {
	rootCmd.AddCommand(usbInfoCmd)
}

func runUSBInfo(cmd *cobra.Command, args []string) error {
	env := newEnv(false)
	scanner := &discovery.Scanner{Console: env.console}

	table, failed, err := scanner.Scan(cmd.Context(), policy())
	if err != nil {
		return err
	}
	table.Render(os.Stdout)

	if stuck, err := dfu.PresentOverUSB(); err != nil {
		log.Debug().Err(err).Msg("usb bus scan unavailable")
	} else if len(stuck) > 0 {
		fmt.Printf("%d device(s) in DFU mode cannot be listed above: %s\n",
			len(stuck), strings.Join(stuck, ", "))
		fmt.Println("Run flash-mcu-dfu or power cycle the machine to recover them.")
	}

	if failed {
		return errors.New("at least one error occurred while retrieving USB information")
	}
	return nil
}
