package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pimworks/dimmctl/pkg/dimm"
	"github.com/pimworks/dimmctl/pkg/ops"
	"github.com/pimworks/dimmctl/pkg/vpd"
)

var flashVPDCmd = &cobra.Command{
	Use:   "flash-vpd <vpd.bin>",
	Short: "Flash a VPD image onto the selected ranks",
	Long: `Write a raw VPD segment image onto each selected rank's MCU
flash. The image must fit the segment; it is written verbatim,
without going through the codec.

Examples:
  dimmctl flash-vpd vpd.bin --rank /dev/dpu_rank0`,
	Args: cobra.ExactArgs(1),
	RunE: runFlashVPD,
}

var flashVPDDBCmd = &cobra.Command{
	Use:   "flash-vpd-db <db.bin>",
	Short: "Flash a VPD database image onto the selected ranks",
	Long: `Write a raw database segment image onto each selected rank's MCU
flash. The image must fit the segment; it is written verbatim,
without going through the codec.

Examples:
  dimmctl flash-vpd-db db.bin --rank /dev/dpu_rank0`,
	Args: cobra.ExactArgs(1),
	RunE: runFlashVPDDB,
}

func init() {
	rootCmd.AddCommand(flashVPDCmd)
	rootCmd.AddCommand(flashVPDDBCmd)
}

type segmentWriter func(ctx context.Context, store *vpd.Store, rankPath string, raw []byte) error

func runFlashVPD(cmd *cobra.Command, args []string) error {
	return flashSegment(cmd, args[0], "flash-vpd", "VPD",
		func(ctx context.Context, store *vpd.Store, rankPath string, raw []byte) error {
			return store.WriteVPD(ctx, rankPath, raw)
		})
}

func runFlashVPDDB(cmd *cobra.Command, args []string) error {
	return flashSegment(cmd, args[0], "flash-vpd-db", "VPD database",
		func(ctx context.Context, store *vpd.Store, rankPath string, raw []byte) error {
			return store.WriteDB(ctx, rankPath, raw)
		})
}

func flashSegment(cmd *cobra.Command, image, name, label string, write segmentWriter) error {
	raw, err := os.ReadFile(image)
	if err != nil {
		return fmt.Errorf("cannot read %s image: %w", label, err)
	}

	env := newEnv(false)
	store := &vpd.Store{EC: env.ec}

	op := ops.Operation{
		Name:  name,
		Scope: ops.ScopeRank,
		Rank: func(ctx context.Context, rankPath string) error {
			fmt.Printf("* Flashing the %s of rank %s...", label, rankPath)
			if err := write(ctx, store, rankPath, raw); err != nil {
				fmt.Println()
				return &dimm.DeviceError{Device: rankPath, Step: name, Msg: "failed to write the " + label, Err: err}
			}
			fmt.Println("Success.")
			return nil
		},
	}
	return ops.Dispatch(cmd.Context(), op, rankTargets(), policy())
}
