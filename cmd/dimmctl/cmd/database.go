package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pimworks/dimmctl/pkg/dimm"
	"github.com/pimworks/dimmctl/pkg/ops"
	"github.com/pimworks/dimmctl/pkg/vpd"
)

var databaseCmd = &cobra.Command{
	Use:   "database",
	Short: "Display the VPD database of the selected ranks",
	Long: `Read the database segment of each selected rank's MCU flash and
print it. The built-in codec renders a hex dump; site builds with
their own codec render decoded fields.

Examples:
  dimmctl database
  dimmctl database --rank /dev/dpu_rank0`,
	Args: cobra.NoArgs,
	RunE: runDatabase,
}

var updateDBCmd = &cobra.Command{
	Use:   "update-db <key=value> [<key=value>...]",
	Short: "Update entries of the VPD database of the selected ranks",
	Long: `Rewrite database entries on each selected rank. Every argument
must be a single key=value assignment. The segment is read, updated
through the codec, then erased and written back.

The built-in codec cannot encode entries, so this command needs a
site build with a real codec.

Examples:
  dimmctl update-db fck_frequency=800 --rank /dev/dpu_rank0
  dimmctl update-db vdd=1250 fck_frequency=800`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpdateDB,
}

func init() {
	rootCmd.AddCommand(databaseCmd)
	rootCmd.AddCommand(updateDBCmd)
}

func runDatabase(cmd *cobra.Command, args []string) error {
	env := newEnv(false)
	store := &vpd.Store{EC: env.ec}

	op := ops.Operation{
		Name:  "database",
		Scope: ops.ScopeRank,
		Rank: func(ctx context.Context, rankPath string) error {
			fmt.Printf("* VPD database for %s: ", rankPath)
			raw, err := store.ReadDB(ctx, rankPath)
			if err != nil {
				fmt.Println()
				return &dimm.DeviceError{Device: rankPath, Step: "database", Msg: "failed to read the VPD database", Err: err}
			}
			description, err := dbCodec.Describe(raw)
			if err != nil {
				fmt.Println()
				return &dimm.DeviceError{Device: rankPath, Step: "database", Err: err}
			}
			fmt.Printf("\n%s\n", description)
			return nil
		},
	}
	return ops.Dispatch(cmd.Context(), op, rankTargets(), policy())
}

func runUpdateDB(cmd *cobra.Command, args []string) error {
	pairs, err := vpd.ParsePairs(args)
	if err != nil {
		return err
	}

	env := newEnv(false)
	store := &vpd.Store{EC: env.ec}

	op := ops.Operation{
		Name:  "update-db",
		Scope: ops.ScopeRank,
		Rank: func(ctx context.Context, rankPath string) error {
			fmt.Printf("* Updating the VPD database for %s: ", rankPath)
			raw, err := store.ReadDB(ctx, rankPath)
			if err != nil {
				fmt.Println()
				return &dimm.DeviceError{Device: rankPath, Step: "update-db", Msg: "failed to read the VPD database", Err: err}
			}
			updated, err := dbCodec.Update(raw, pairs)
			if err != nil {
				fmt.Println()
				return &dimm.DeviceError{Device: rankPath, Step: "update-db", Err: err}
			}
			if err := store.WriteDB(ctx, rankPath, updated); err != nil {
				fmt.Println()
				return &dimm.DeviceError{Device: rankPath, Step: "update-db", Msg: "failed to write the VPD database", Err: err}
			}
			fmt.Println("Success.")
			return nil
		},
	}
	return ops.Dispatch(cmd.Context(), op, rankTargets(), policy())
}
