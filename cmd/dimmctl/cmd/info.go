package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pimworks/dimmctl/pkg/dimm"
	"github.com/pimworks/dimmctl/pkg/ops"
	"github.com/pimworks/dimmctl/pkg/vpd"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Display the VPD of the selected ranks",
	Long: `Read the VPD segment of each selected rank's MCU flash and print
it. The built-in codec renders a hex dump; site builds with their own
codec render decoded fields.

Examples:
  dimmctl info
  dimmctl info --rank /dev/dpu_rank0`,
	Args: cobra.NoArgs,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	env := newEnv(false)
	store := &vpd.Store{EC: env.ec}

	op := ops.Operation{
		Name:  "info",
		Scope: ops.ScopeRank,
		Rank: func(ctx context.Context, rankPath string) error {
			fmt.Printf("* VPD for %s\n", rankPath)
			raw, err := store.ReadVPD(ctx, rankPath)
			if err != nil {
				return &dimm.DeviceError{Device: rankPath, Step: "info", Msg: "failed to read the VPD", Err: err}
			}
			description, err := dbCodec.Describe(raw)
			if err != nil {
				return &dimm.DeviceError{Device: rankPath, Step: "info", Err: err}
			}
			fmt.Println(description)
			return nil
		},
	}
	return ops.Dispatch(cmd.Context(), op, rankTargets(), policy())
}
