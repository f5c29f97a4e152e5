package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pimworks/dimmctl/pkg/dimm"
	"github.com/pimworks/dimmctl/pkg/ops"
)

// Programmable FCK range in MHz.
const (
	minFCK = 700
	maxFCK = 1000
)

var oscCmd = &cobra.Command{
	Use:   "osc",
	Short: "Display the FCK frequency settings of the selected ranks",
	Long: `Read the programmable oscillator of each selected rank and print
the FCK frequency and divider settings.

Examples:
  dimmctl osc
  dimmctl osc --rank /dev/dpu_rank0`,
	Args: cobra.NoArgs,
	RunE: runOSC,
}

var setOSCCmd = &cobra.Command{
	Use:   "set-osc <mhz>",
	Short: "Set the FCK frequency of the selected ranks",
	Long: `Program the oscillator of each selected rank. The value is in MHz
and must lie in [700, 1000). The setting takes effect immediately and
does not survive a power cycle.

Examples:
  dimmctl set-osc 800
  dimmctl set-osc 800 --rank /dev/dpu_rank0`,
	Args: cobra.ExactArgs(1),
	RunE: runSetOSC,
}

func init() {
	rootCmd.AddCommand(oscCmd)
	rootCmd.AddCommand(setOSCCmd)
}

func runOSC(cmd *cobra.Command, args []string) error {
	env := newEnv(false)

	op := ops.Operation{
		Name:  "osc",
		Scope: ops.ScopeRank,
		Rank: func(ctx context.Context, rankPath string) error {
			fmt.Printf("* Frequency of rank %s: ", rankPath)
			osc, err := env.ec.OSC(ctx, rankPath)
			if err != nil {
				fmt.Println()
				return &dimm.DeviceError{Device: rankPath, Step: "osc", Msg: "failed to print FCK frequency", Err: err}
			}
			fmt.Printf("\n\t%s\n\t%s\n\n", osc.Frequency, osc.Division)
			return nil
		},
	}
	return ops.Dispatch(cmd.Context(), op, rankTargets(), policy())
}

func runSetOSC(cmd *cobra.Command, args []string) error {
	mhz, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid FCK frequency %q", args[0])
	}
	if mhz < minFCK || mhz >= maxFCK {
		return fmt.Errorf("FCK frequency is out of range, must be in [%d, %d)", minFCK, maxFCK)
	}

	env := newEnv(false)

	op := ops.Operation{
		Name:  "set-osc",
		Scope: ops.ScopeRank,
		Rank: func(ctx context.Context, rankPath string) error {
			fmt.Printf("* Setting frequency to %d MHz for rank %s: ", mhz, rankPath)
			if err := env.ec.SetOSC(ctx, rankPath, mhz); err != nil {
				fmt.Println()
				return &dimm.DeviceError{Device: rankPath, Step: "set-osc", Msg: "failed to set FCK frequency", Err: err}
			}
			fmt.Println("Success")
			return nil
		},
	}
	return ops.Dispatch(cmd.Context(), op, rankTargets(), policy())
}
