package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pimworks/dimmctl/pkg/dimm"
	"github.com/pimworks/dimmctl/pkg/ops"
)

var mcuVersionCmd = &cobra.Command{
	Use:   "mcu-version",
	Short: "Display the MCU firmware versions of the selected ranks",
	Long: `Print the RO and RW firmware version strings of each selected
rank's MCU, along with the copy it currently runs.

Examples:
  dimmctl mcu-version
  dimmctl mcu-version --rank /dev/dpu_rank0`,
	Args: cobra.NoArgs,
	RunE: runMCUVersion,
}

func init() {
	rootCmd.AddCommand(mcuVersionCmd)
}

func runMCUVersion(cmd *cobra.Command, args []string) error {
	env := newEnv(false)

	op := ops.Operation{
		Name:  "mcu-version",
		Scope: ops.ScopeRank,
		Rank: func(ctx context.Context, rankPath string) error {
			fmt.Printf("* MCU firmware of rank %s: ", rankPath)
			versions, err := env.ec.Version(ctx, rankPath)
			if err != nil {
				fmt.Println()
				return &dimm.DeviceError{Device: rankPath, Step: "mcu-version", Msg: "failed to print MCU firmware versions", Err: err}
			}
			fmt.Printf("\n\t%s\n\t%s\n\t%s\n\n", versions.RO, versions.RW, versions.Copy)
			return nil
		},
	}
	return ops.Dispatch(cmd.Context(), op, rankTargets(), policy())
}
