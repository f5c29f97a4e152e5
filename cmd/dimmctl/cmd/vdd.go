package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pimworks/dimmctl/pkg/dimm"
	"github.com/pimworks/dimmctl/pkg/ops"
)

// Programmable VDD range in millivolts, bounded by the DPU silicon.
const (
	minVDD = 1000
	maxVDD = 1600
)

var vddCmd = &cobra.Command{
	Use:   "vdd",
	Short: "Display the DPU supply voltage and current of the selected ranks",
	Long: `Read the VDD rail of each selected rank from its MCU and print the
measured voltage and current draw.

Examples:
  dimmctl vdd
  dimmctl vdd --rank /dev/dpu_rank0`,
	Args: cobra.NoArgs,
	RunE: runVDD,
}

var setVDDCmd = &cobra.Command{
	Use:   "set-vdd <millivolts>",
	Short: "Set the DPU supply voltage of the selected ranks",
	Long: `Program the VDD rail of each selected rank. The value is in
millivolts and must lie in [1000, 1600). The setting takes effect
immediately and does not survive a power cycle.

Examples:
  dimmctl set-vdd 1250
  dimmctl set-vdd 1250 --rank /dev/dpu_rank0`,
	Args: cobra.ExactArgs(1),
	RunE: runSetVDD,
}

func init() {
	rootCmd.AddCommand(vddCmd)
	rootCmd.AddCommand(setVDDCmd)
}

func runVDD(cmd *cobra.Command, args []string) error {
	env := newEnv(false)

	op := ops.Operation{
		Name:  "vdd",
		Scope: ops.ScopeRank,
		Rank: func(ctx context.Context, rankPath string) error {
			fmt.Printf("* Voltage and intensity of rank %s: ", rankPath)
			value, err := env.ec.VDD(ctx, rankPath)
			if err != nil {
				fmt.Println()
				return &dimm.DeviceError{Device: rankPath, Step: "vdd", Msg: "failed to get VDD", Err: err}
			}
			fmt.Println(value)
			return nil
		},
	}
	return ops.Dispatch(cmd.Context(), op, rankTargets(), policy())
}

func runSetVDD(cmd *cobra.Command, args []string) error {
	millivolts, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid VDD value %q", args[0])
	}
	if millivolts < minVDD || millivolts >= maxVDD {
		return fmt.Errorf("VDD value is out of range, must be in [%d, %d)", minVDD, maxVDD)
	}

	env := newEnv(false)

	op := ops.Operation{
		Name:  "set-vdd",
		Scope: ops.ScopeRank,
		Rank: func(ctx context.Context, rankPath string) error {
			fmt.Printf("* Setting voltage to %d mV for rank %s: ", millivolts, rankPath)
			if err := env.ec.SetVDD(ctx, rankPath, millivolts); err != nil {
				fmt.Println()
				return &dimm.DeviceError{Device: rankPath, Step: "set-vdd", Msg: "failed to set VDD", Err: err}
			}
			fmt.Println("Success")
			return nil
		},
	}
	return ops.Dispatch(cmd.Context(), op, rankTargets(), policy())
}
