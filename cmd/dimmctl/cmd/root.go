package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pimworks/dimmctl/pkg/batch"
	"github.com/pimworks/dimmctl/pkg/console"
	"github.com/pimworks/dimmctl/pkg/dfu"
	"github.com/pimworks/dimmctl/pkg/ectool"
	"github.com/pimworks/dimmctl/pkg/ops"
	"github.com/pimworks/dimmctl/pkg/runner"
	"github.com/pimworks/dimmctl/pkg/vpd"
)

var (
	// Global flags
	rankList    string
	verbose     bool
	stopOnError bool
	ectoolBin   string
)

// dbCodec interprets the opaque product data segments. The built-in
// codec only renders hex dumps; site builds swap in their own.
var dbCodec vpd.Codec = vpd.RawCodec{}

var rootCmd = &cobra.Command{
	Use:   "dimmctl",
	Short: "UPMEM DIMM configuration and firmware update tool",
	Long: `dimmctl configures UPMEM DIMMs through their management MCU: it
discovers modules over their USB console, reads and programs supply
voltage and clock settings, manages the vital product data segments,
and updates MCU firmware either in band or over USB DFU.

Most commands act per rank device and accept --rank to narrow the
selection; without it every /dev/dpu_rank* on the host is targeted.

Examples:
  dimmctl usb-info                                 # List consoles, serials, ranks
  dimmctl vdd --rank /dev/dpu_rank0                # Read DPU supply of one rank
  dimmctl flash-mcu fw.bin                         # In-band RW update, all ranks
  dimmctl flash-mcu-dfu fw.bin --sernum 12634275   # DFU update one DIMM by serial`,
	Version: "1.3.0",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		if verbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		} else {
			zerolog.SetGlobalLevel(zerolog.WarnLevel)
		}
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rankList, "rank", "r", "",
		"comma-separated rank device paths (e.g. /dev/dpu_rank0), default all ranks")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"verbose output, echoes helper tool output and debug logs")
	rootCmd.PersistentFlags().BoolVar(&stopOnError, "stop-on-error", false,
		"stop at the first device error instead of carrying on")
	rootCmd.PersistentFlags().StringVar(&ectoolBin, "ectool", ectool.DefaultBin,
		"path to the EC console tool")
}

// toolEnv bundles the clients the commands drive.
type toolEnv struct {
	run     *runner.Runner
	ec      *ectool.Client
	dfu     *dfu.Client
	console *console.Client
}

func newEnv(dryRun bool) *toolEnv {
	run := &runner.Runner{Verbose: verbose}
	return &toolEnv{
		run:     run,
		ec:      &ectool.Client{Bin: ectoolBin, Exec: run},
		dfu:     &dfu.Client{Exec: run},
		console: &console.Client{DryRun: dryRun},
	}
}

func policy() batch.Policy {
	return batch.Policy{StopOnError: stopOnError}
}

func rankTargets() []string {
	return ops.RankTargets(rankList, "")
}
