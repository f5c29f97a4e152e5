// Package ectool wraps the EC console tool used to talk to a DIMM's
// MCU over its cross-interface transport. Every call shells out to the
// tool with --interface=ci and the target's console name; outputs are
// parsed positionally the way the tool prints them.
package ectool

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pimworks/dimmctl/pkg/runner"
)

// DefaultBin is the console tool binary looked up on PATH.
const DefaultBin = "ectool"

// DefaultTimeout bounds one console tool invocation. Flash operations
// that move whole images pick their own, longer budgets.
const DefaultTimeout = 10 * time.Second

// Exec runs one child process to completion. *runner.Runner implements
// it; tests substitute recorders.
type Exec interface {
	Run(ctx context.Context, timeout time.Duration, name string, args ...string) (runner.Result, error)
}

// Versions is the firmware version report of one MCU: the RO and RW
// image version lines and the line naming the running copy.
type Versions struct {
	RO   string
	RW   string
	Copy string
}

// Osc is the DPU clock report: the FCK frequency line and the divider
// line.
type Osc struct {
	Frequency string
	Division  string
}

// Client drives the console tool against one MCU at a time. Targets
// are console names, in practice rank device paths.
type Client struct {
	// Bin overrides the console tool binary. Empty means DefaultBin.
	Bin  string
	Exec Exec
}

func (c *Client) bin() string {
	if c.Bin != "" {
		return c.Bin
	}
	return DefaultBin
}

// Run invokes one console tool verb against name. Nonzero exits are
// reported through the Result, not the error.
func (c *Client) Run(ctx context.Context, timeout time.Duration, name, verb string, args ...string) (runner.Result, error) {
	argv := append([]string{"--interface=ci", "--name=" + name, verb}, args...)
	return c.Exec.Run(ctx, timeout, c.bin(), argv...)
}

// check folds an invocation outcome into a single error. The verb is
// named so the failure reads sensibly when surfaced to the user.
func check(verb string, res runner.Result, err error) error {
	if err != nil {
		return fmt.Errorf("ectool: %s: %w", verb, err)
	}
	if res.TimedOut {
		return fmt.Errorf("ectool: %s: timed out", verb)
	}
	if res.ExitCode != 0 {
		if detail := strings.TrimSpace(string(res.Stderr)); detail != "" {
			return fmt.Errorf("ectool: %s: exit status %d: %s", verb, res.ExitCode, detail)
		}
		return fmt.Errorf("ectool: %s: exit status %d", verb, res.ExitCode)
	}
	return nil
}

// Version reports the firmware versions of the target MCU.
func (c *Client) Version(ctx context.Context, name string) (Versions, error) {
	res, err := c.Run(ctx, DefaultTimeout, name, "version")
	if err := check("version", res, err); err != nil {
		return Versions{}, err
	}
	return parseVersions(string(res.Stdout))
}

func parseVersions(out string) (Versions, error) {
	lines := strings.Split(out, "\n")
	if len(lines) < 3 {
		return Versions{}, fmt.Errorf("ectool: version: unexpected output %q", out)
	}
	return Versions{
		RO:   strings.TrimRight(lines[0], "\r"),
		RW:   strings.TrimRight(lines[1], "\r"),
		Copy: strings.TrimRight(lines[2], "\r"),
	}, nil
}

// VDD reports the DPU supply voltage and intensity line.
func (c *Client) VDD(ctx context.Context, name string) (string, error) {
	res, err := c.Run(ctx, DefaultTimeout, name, "vdd")
	if err := check("vdd", res, err); err != nil {
		return "", err
	}
	return strings.TrimRight(string(res.Stdout), " \t\r\n"), nil
}

// SetVDD programs the DPU supply voltage in millivolts.
func (c *Client) SetVDD(ctx context.Context, name string, millivolts int) error {
	res, err := c.Run(ctx, DefaultTimeout, name, "vdd", fmt.Sprintf("%d", millivolts))
	return check("vdd", res, err)
}

// OSC reports the DPU clock configuration.
func (c *Client) OSC(ctx context.Context, name string) (Osc, error) {
	res, err := c.Run(ctx, DefaultTimeout, name, "osc")
	if err := check("osc", res, err); err != nil {
		return Osc{}, err
	}
	return parseOsc(string(res.Stdout))
}

func parseOsc(out string) (Osc, error) {
	lines := strings.Split(out, "\n")
	if len(lines) < 2 {
		return Osc{}, fmt.Errorf("ectool: osc: unexpected output %q", out)
	}
	return Osc{
		Frequency: strings.TrimRight(lines[0], "\r"),
		Division:  strings.TrimRight(lines[1], "\r"),
	}, nil
}

// SetOSC programs the DPU clock frequency in megahertz.
func (c *Client) SetOSC(ctx context.Context, name string, megahertz int) error {
	res, err := c.Run(ctx, DefaultTimeout, name, "osc", fmt.Sprintf("%d", megahertz))
	return check("osc", res, err)
}

// Sysjump makes the MCU jump to the given firmware image.
func (c *Client) Sysjump(ctx context.Context, name, image string) error {
	res, err := c.Run(ctx, DefaultTimeout, name, "sysjump", image)
	return check("sysjump", res, err)
}

// RebootEC reboots the MCU. The mode is passed through to the tool:
// "cold" after a flash, "RW" for a plain restart.
func (c *Client) RebootEC(ctx context.Context, name, mode string) error {
	res, err := c.Run(ctx, DefaultTimeout, name, "reboot_ec", mode)
	return check("reboot_ec", res, err)
}

// FlashRead copies size bytes of MCU flash starting at off into the
// local file at path.
func (c *Client) FlashRead(ctx context.Context, name string, off, size uint32, path string, timeout time.Duration) error {
	res, err := c.Run(ctx, timeout, name, "flashread", hexArg(off), hexArg(size), path)
	return check("flashread", res, err)
}

// FlashErase erases size bytes of MCU flash starting at off.
func (c *Client) FlashErase(ctx context.Context, name string, off, size uint32, timeout time.Duration) error {
	res, err := c.Run(ctx, timeout, name, "flasherase", hexArg(off), hexArg(size))
	return check("flasherase", res, err)
}

// FlashWrite programs the local file at path into MCU flash at off.
func (c *Client) FlashWrite(ctx context.Context, name string, off uint32, path string, timeout time.Duration) error {
	res, err := c.Run(ctx, timeout, name, "flashwrite", hexArg(off), path)
	return check("flashwrite", res, err)
}

func hexArg(v uint32) string {
	return fmt.Sprintf("0x%x", v)
}
