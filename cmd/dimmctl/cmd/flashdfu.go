package cmd

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pimworks/dimmctl/pkg/discovery"
	"github.com/pimworks/dimmctl/pkg/flash"
	"github.com/pimworks/dimmctl/pkg/ops"
)

var (
	serialNumbers string
	dryRun        bool
)

var flashMCUDFUCmd = &cobra.Command{
	Use:   "flash-mcu-dfu <firmware.bin>",
	Short: "Flash the complete MCU firmware of connected DIMMs over USB DFU",
	Long: `Rewrite the whole MCU firmware, RO and RW halves, of every DIMM
reachable over USB. Each MCU is switched into its ROM bootloader
through the console, then reprogrammed with dfu-util. Unlike
flash-mcu this recovers DIMMs whose firmware no longer boots, as long
as they respond over USB.

The selection defaults to every connected DIMM and can be narrowed to
specific serial numbers with --sernum or to the DIMMs backing specific
rank devices with --rank. The two selectors cannot be combined.

Requires dfu-util.

Examples:
  dimmctl flash-mcu-dfu fw.bin
  dimmctl flash-mcu-dfu fw.bin --sernum 12634275,12634276
  dimmctl flash-mcu-dfu fw.bin --rank /dev/dpu_rank0 --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runFlashMCUDFU,
}

func init() {
	rootCmd.AddCommand(flashMCUDFUCmd)
	flashMCUDFUCmd.Flags().StringVar(&serialNumbers, "sernum", "",
		"comma-separated DIMM serial numbers to flash")
	flashMCUDFUCmd.Flags().BoolVar(&dryRun, "dry-run", false,
		"print the flash commands instead of running them")
}

func runFlashMCUDFU(cmd *cobra.Command, args []string) error {
	if rankList != "" && serialNumbers != "" {
		return errors.New("you cannot specify both --rank and --sernum")
	}

	env := newEnv(dryRun)
	flasher := &flash.Flasher{
		EC:      env.ec,
		DFU:     env.dfu,
		Console: env.console,
		Scanner: &discovery.Scanner{Console: env.console},
	}
	job := flash.Job{Image: args[0], DryRun: dryRun}

	var intent discovery.Intent
	switch {
	case serialNumbers != "":
		intent.Serials = strings.Split(serialNumbers, ",")
	case rankList != "":
		intent.RankPaths = strings.Split(rankList, ",")
	}

	op := ops.Operation{
		Name:  "flash-mcu-dfu",
		Scope: ops.ScopeFleet,
		Fleet: func(ctx context.Context, _ []string) error {
			return flasher.DFUFleet(ctx, job, intent, policy())
		},
	}
	return ops.Dispatch(cmd.Context(), op, nil, policy())
}
