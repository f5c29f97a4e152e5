package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/pimworks/dimmctl/pkg/flash"
	"github.com/pimworks/dimmctl/pkg/ops"
)

var flashMCUCmd = &cobra.Command{
	Use:   "flash-mcu <firmware.bin>",
	Short: "Flash the MCU RW firmware of the selected ranks in band",
	Long: `Update the RW half of the MCU firmware through the EC console,
without touching USB. Each selected rank is jumped back to its RO
firmware, has its RW partition erased and rewritten, then reboots into
the new image.

The RO half is never written; recovering from a bad RO image requires
flash-mcu-dfu.

Examples:
  dimmctl flash-mcu fw.bin
  dimmctl flash-mcu fw.bin --rank /dev/dpu_rank0,/dev/dpu_rank1`,
	Args: cobra.ExactArgs(1),
	RunE: runFlashMCU,
}

func init() {
	rootCmd.AddCommand(flashMCUCmd)
}

func runFlashMCU(cmd *cobra.Command, args []string) error {
	env := newEnv(false)
	flasher := &flash.Flasher{EC: env.ec}
	job := flash.Job{Image: args[0]}

	op := ops.Operation{
		Name:  "flash-mcu",
		Scope: ops.ScopeRank,
		Rank: func(ctx context.Context, rankPath string) error {
			return flasher.MCU(ctx, job, rankPath)
		},
	}
	return ops.Dispatch(cmd.Context(), op, rankTargets(), policy())
}
