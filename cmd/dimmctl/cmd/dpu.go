package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/pimworks/dimmctl/pkg/dimm"
	"github.com/pimworks/dimmctl/pkg/ops"
	"github.com/pimworks/dimmctl/pkg/vpd"
)

var enableDPUCmd = &cobra.Command{
	Use:   "enable-dpu <slice.dpu> [<slice.dpu>...]",
	Short: "Mark DPUs of a rank as enabled in the VPD",
	Long: `Flip the given DPUs of one rank back to enabled in its VPD. Each
argument addresses a DPU as slice.dpu, for example 3.4.

The rank must be named explicitly with --rank, and a site build with
a real codec is required to encode the change.

Examples:
  dimmctl enable-dpu 3.4 --rank /dev/dpu_rank0
  dimmctl enable-dpu 0.0 0.1 --rank /dev/dpu_rank0`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEnableDPU,
}

var disableDPUCmd = &cobra.Command{
	Use:   "disable-dpu <slice.dpu> [<slice.dpu>...]",
	Short: "Mark DPUs of a rank as disabled in the VPD",
	Long: `Record the given DPUs of one rank as disabled in its VPD, so the
driver stops scheduling them. Each argument addresses a DPU as
slice.dpu, for example 3.4.

The rank must be named explicitly with --rank, and a site build with
a real codec is required to encode the change.

Examples:
  dimmctl disable-dpu 3.4 --rank /dev/dpu_rank0
  dimmctl disable-dpu 0.0 0.1 --rank /dev/dpu_rank0`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDisableDPU,
}

func init() {
	rootCmd.AddCommand(enableDPUCmd)
	rootCmd.AddCommand(disableDPUCmd)
}

func runEnableDPU(cmd *cobra.Command, args []string) error {
	return setDPUState(cmd, args, true)
}

func runDisableDPU(cmd *cobra.Command, args []string) error {
	return setDPUState(cmd, args, false)
}

func setDPUState(cmd *cobra.Command, args []string, enabled bool) error {
	if rankList == "" {
		return errors.New("you must specify at least a rank with --rank")
	}
	selectors := make([]vpd.DPU, 0, len(args))
	for _, arg := range args {
		dpu, err := vpd.ParseDPU(arg)
		if err != nil {
			return err
		}
		selectors = append(selectors, dpu)
	}

	env := newEnv(false)
	store := &vpd.Store{EC: env.ec}

	op := ops.Operation{
		Name:  cmd.Name(),
		Scope: ops.ScopeRank,
		Rank: func(ctx context.Context, rankPath string) error {
			raw, err := store.ReadVPD(ctx, rankPath)
			if err != nil {
				return &dimm.DeviceError{Device: rankPath, Step: cmd.Name(), Msg: "failed to read the VPD", Err: err}
			}
			for _, dpu := range selectors {
				raw, err = dbCodec.SetDPU(raw, dpu, enabled)
				if err != nil {
					return &dimm.DeviceError{Device: rankPath, Step: cmd.Name(), Err: err}
				}
			}
			if err := store.WriteVPD(ctx, rankPath, raw); err != nil {
				return &dimm.DeviceError{Device: rankPath, Step: cmd.Name(), Msg: "failed to write the VPD", Err: err}
			}
			return nil
		},
	}
	return ops.Dispatch(cmd.Context(), op, rankTargets(), policy())
}
