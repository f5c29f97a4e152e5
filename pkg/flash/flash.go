// Package flash updates DIMM MCU firmware. Two paths exist: the
// in-band path rewrites the RW image of a live MCU through the EC
// console tool, and the DFU path reflashes whole fleets over USB for
// MCUs whose resident firmware can no longer cooperate.
package flash

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pimworks/dimmctl/pkg/batch"
	"github.com/pimworks/dimmctl/pkg/dfu"
	"github.com/pimworks/dimmctl/pkg/dimm"
	"github.com/pimworks/dimmctl/pkg/discovery"
	"github.com/pimworks/dimmctl/pkg/ectool"
)

// Per-step budgets for the in-band machine. Writing the RW image moves
// the whole partition over the console transport, hence the wide
// window.
const (
	eraseTimeout = 20 * time.Second
	writeTimeout = 200 * time.Second
)

// dfuSettle is how long a DIMM needs after a DFU transition before the
// bus state can be trusted again.
const dfuSettle = 5 * time.Second

// dfuCommand drops the MCU into the ROM bootloader. The leading
// newlines flush whatever half-typed input sits in the console buffer.
const dfuCommand = "\n\n\ndfu\n"

const consoleTimeout = 2 * time.Second

// Job describes one firmware update run. Dry-run suppression of serial
// traffic lives in the console client, which the caller constructs in
// matching dry-run mode.
type Job struct {
	// Image is the firmware file to program.
	Image string
	// DryRun prints the side-effecting invocations instead of running
	// them and skips the settle wait after a DFU entry.
	DryRun bool
}

// Flasher executes firmware updates against the fleet.
type Flasher struct {
	EC      *ectool.Client
	DFU     *dfu.Client
	Console discovery.Console
	Scanner *discovery.Scanner
	// Out receives user-facing progress. Nil means standard output.
	Out io.Writer

	// sleep replaces time.Sleep in tests.
	sleep func(time.Duration)
}

func (f *Flasher) out() io.Writer {
	if f.Out != nil {
		return f.Out
	}
	return os.Stdout
}

func (f *Flasher) wait(d time.Duration) {
	if f.sleep != nil {
		f.sleep(d)
		return
	}
	time.Sleep(d)
}

// MCU rewrites the RW firmware of one live MCU in band: jump to the RO
// image so RW is not executing, erase the RW partition, write the new
// image, reboot into it. The machine stops at the first failing step;
// later steps are never attempted on a device in an unknown state.
func (f *Flasher) MCU(ctx context.Context, job Job, rankPath string) error {
	fmt.Fprintf(f.out(), "* Flashing MCU of rank %s...\n", rankPath)
	steps := []struct {
		name string
		fail string
		run  func() error
	}{
		{"sysjump", "failed to jump to RO firmware", func() error {
			return f.EC.Sysjump(ctx, rankPath, "1")
		}},
		{"erase", "failed to erase RW partition", func() error {
			return f.EC.FlashErase(ctx, rankPath, dimm.FlashOffRW, dimm.FlashSizeRW, eraseTimeout)
		}},
		{"write", "failed to write RW partition", func() error {
			return f.EC.FlashWrite(ctx, rankPath, dimm.FlashOffRW, job.Image, writeTimeout)
		}},
		{"reboot", "failed to reboot MCU", func() error {
			return f.EC.RebootEC(ctx, rankPath, "cold")
		}},
	}
	for _, step := range steps {
		log.Debug().Str("rank", rankPath).Str("step", step.name).Msg("in-band flash step")
		if err := step.run(); err != nil {
			return &dimm.DeviceError{Device: rankPath, Step: step.name, Msg: step.fail, Err: err}
		}
	}
	fmt.Fprintln(f.out(), "Success.")
	return nil
}

// DFUFleet drives a fleet-wide DFU update: recover any MCU already
// stuck in the bootloader, discover the console endpoints, resolve the
// requested targets, drop them into DFU mode, then program and reboot
// every bootloader instance dfu-util can see. Device-scoped failures
// follow the batch policy; missing preconditions (no endpoints at all,
// nothing in DFU mode after the switch) abort regardless of policy.
func (f *Flasher) DFUFleet(ctx context.Context, job Job, intent discovery.Intent, pol batch.Policy) error {
	out := f.out()
	anyErr := false

	stale, err := f.DFU.List(ctx)
	if err != nil {
		return err
	}
	log.Debug().Strs("stale", stale).Msg("bootloader instances before discovery")
	failed, err := batch.Apply(func(path string) error {
		return f.exitDFU(ctx, job, path)
	}, stale, pol)
	if err != nil {
		return err
	}
	anyErr = anyErr || failed

	tbl, scanFailed, err := f.Scanner.Scan(ctx, pol)
	if err != nil {
		return err
	}
	anyErr = anyErr || scanFailed
	tbl.Render(out)
	if tbl.Empty() {
		return errors.New("no DIMM USB device was found, check the USB connections")
	}

	resolveFailed, targets, err := discovery.Resolve(out, tbl, intent, pol)
	if err != nil {
		return err
	}
	anyErr = anyErr || resolveFailed
	targets = dedupe(targets)

	fmt.Fprintf(out, "The following DIMMs will be flashed: %v\n", targets)
	failed, err = batch.Apply(func(name string) error {
		return f.enterDFU(ctx, job, name)
	}, targets, pol)
	if err != nil {
		return err
	}
	anyErr = anyErr || failed

	paths, err := f.DFU.List(ctx)
	if err != nil {
		return err
	}
	if len(paths) == 0 && !job.DryRun {
		return errors.New("no devices are in DFU mode, nothing can be flashed")
	}
	failed, err = batch.Apply(func(path string) error {
		return f.flashDFU(ctx, job, path)
	}, paths, pol)
	if err != nil {
		return err
	}
	anyErr = anyErr || failed

	if anyErr {
		return errors.New("at least one error occurred during the flashing process")
	}
	return nil
}

// exitDFU reboots one bootloader instance back into normal operation.
// The settle wait is unconditional: the device needs the time to
// re-enumerate as a tty before the discovery pass that follows.
func (f *Flasher) exitDFU(ctx context.Context, job Job, path string) error {
	out := f.out()
	fmt.Fprintf(out, "* Exiting DFU mode for device %s...\n", path)
	if job.DryRun {
		fmt.Fprintln(out, f.DFU.RebootCommand(job.Image, path))
	} else if err := f.DFU.Reboot(ctx, job.Image, path); err != nil {
		return &dimm.DeviceError{Device: path, Step: "exit-dfu", Msg: "failed to reboot device, or device does not exist", Err: err}
	}
	fmt.Fprintln(out, "Success")
	f.wait(dfuSettle)
	return nil
}

// enterDFU switches one console endpoint into the ROM bootloader.
func (f *Flasher) enterDFU(ctx context.Context, job Job, name string) error {
	fmt.Fprintf(f.out(), "* USB %s set in DFU mode\n", name)
	if _, err := f.Console.Send(ctx, name, []byte(dfuCommand), consoleTimeout, false); err != nil {
		return err
	}
	if !job.DryRun {
		f.wait(dfuSettle)
	}
	return nil
}

// flashDFU programs one bootloader instance and reboots it into the
// new firmware.
func (f *Flasher) flashDFU(ctx context.Context, job Job, path string) error {
	out := f.out()
	fmt.Fprintf(out, "* Flashing DIMM USB device %s...\n", path)
	if job.DryRun {
		fmt.Fprintln(out, f.DFU.FlashCommand(job.Image, path))
	} else if err := f.DFU.Flash(ctx, job.Image, path); err != nil {
		return &dimm.DeviceError{Device: path, Step: "flash", Msg: "failed to flash device", Err: err}
	}
	if job.DryRun {
		fmt.Fprintln(out, f.DFU.RebootCommand(job.Image, path))
	} else if err := f.DFU.Reboot(ctx, job.Image, path); err != nil {
		return &dimm.DeviceError{Device: path, Step: "reboot", Msg: "failed to reboot device", Err: err}
	}
	fmt.Fprintln(out, "Success")
	return nil
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
