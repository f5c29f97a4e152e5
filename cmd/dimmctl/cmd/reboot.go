package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pimworks/dimmctl/pkg/dimm"
	"github.com/pimworks/dimmctl/pkg/ops"
)

var rebootCmd = &cobra.Command{
	Use:   "reboot",
	Short: "Reboot the MCU of the selected ranks into RW firmware",
	Long: `Ask the MCU of each selected rank to reboot into its RW firmware.
Useful after an in-band update or when a console stops responding.

Examples:
  dimmctl reboot
  dimmctl reboot --rank /dev/dpu_rank0`,
	Args: cobra.NoArgs,
	RunE: runReboot,
}

func init() {
	rootCmd.AddCommand(rebootCmd)
}

func runReboot(cmd *cobra.Command, args []string) error {
	env := newEnv(false)

	op := ops.Operation{
		Name:  "reboot",
		Scope: ops.ScopeRank,
		Rank: func(ctx context.Context, rankPath string) error {
			fmt.Printf("* Rebooting rank %s...", rankPath)
			if err := env.ec.RebootEC(ctx, rankPath, "RW"); err != nil {
				fmt.Println()
				return &dimm.DeviceError{Device: rankPath, Step: "reboot", Msg: "failed to reboot", Err: err}
			}
			fmt.Println("Success")
			return nil
		},
	}
	return ops.Dispatch(cmd.Context(), op, rankTargets(), policy())
}
