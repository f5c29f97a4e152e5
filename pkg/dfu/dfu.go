// Package dfu drives dfu-util against DIMM MCUs sitting in the STM32
// ROM bootloader. A DIMM in DFU mode no longer enumerates as a console
// tty; it shows up as a bare 0483:df11 USB device addressed by its bus
// path.
package dfu

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/gousb"

	"github.com/pimworks/dimmctl/pkg/dimm"
	"github.com/pimworks/dimmctl/pkg/runner"
)

// DefaultBin is the dfu-util binary looked up on PATH.
const DefaultBin = "dfu-util"

// STM32 ROM bootloader identity.
const (
	VendorID  gousb.ID = 0x0483
	ProductID gousb.ID = 0xdf11
)

const (
	// ListTimeout bounds bus enumeration.
	ListTimeout = 10 * time.Second
	// CommandTimeout bounds one download or reboot invocation.
	CommandTimeout = 30 * time.Second
)

// foundPat picks the bus path out of each bootloader line of
// `dfu-util -l`. Devices with other vendor or product IDs never match.
var foundPat = regexp.MustCompile(`Found DFU: \[0483:df11\].*?path="(.*?)"`)

// Exec runs one child process to completion. *runner.Runner implements
// it; tests substitute recorders.
type Exec interface {
	Run(ctx context.Context, timeout time.Duration, name string, args ...string) (runner.Result, error)
}

// Client shells out to dfu-util.
type Client struct {
	// Bin overrides the dfu-util binary. Empty means DefaultBin.
	Bin  string
	Exec Exec
}

func (c *Client) bin() string {
	if c.Bin != "" {
		return c.Bin
	}
	return DefaultBin
}

// List enumerates the bus paths of every DIMM MCU currently in DFU
// mode. Each alternate setting of a device produces its own listing
// line; paths are de-duplicated, preserving first-seen order. The
// tool's exit status is ignored, only its output matters.
func (c *Client) List(ctx context.Context) ([]string, error) {
	res, err := c.Exec.Run(ctx, ListTimeout, c.bin(), "-l")
	if err != nil {
		return nil, fmt.Errorf("dfu: list: %w", err)
	}
	seen := make(map[string]bool)
	var paths []string
	for _, m := range foundPat.FindAllStringSubmatch(string(res.Stdout), -1) {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		paths = append(paths, m[1])
	}
	return paths, nil
}

// flashSpan is the -s argument covering the whole firmware span.
func flashSpan() string {
	return fmt.Sprintf("0x%08x:0x%x", dimm.FlashBase+dimm.FlashOffRO, dimm.FlashSizeFW)
}

func flashArgs(image, path string) []string {
	return []string{"-a", "0", "-s", flashSpan(), "-D", image, "-p", path}
}

func rebootArgs(image, path string) []string {
	return []string{"-a", "0", "-s", flashSpan() + ":force:unprotect", "-D", image, "-p", path}
}

// Flash downloads image over the firmware span of the device at the
// given bus path.
func (c *Client) Flash(ctx context.Context, image, path string) error {
	res, err := c.Exec.Run(ctx, CommandTimeout, c.bin(), flashArgs(image, path)...)
	return check("download", res, err)
}

// Reboot rewrites the firmware span with the unprotect option, which
// makes the bootloader reset the MCU back into normal operation once
// the download finishes.
func (c *Client) Reboot(ctx context.Context, image, path string) error {
	res, err := c.Exec.Run(ctx, CommandTimeout, c.bin(), rebootArgs(image, path)...)
	return check("reboot", res, err)
}

// FlashCommand renders the Flash invocation for dry-run output.
func (c *Client) FlashCommand(image, path string) string {
	return runner.CommandString(c.bin(), flashArgs(image, path)...)
}

// RebootCommand renders the Reboot invocation for dry-run output.
func (c *Client) RebootCommand(image, path string) string {
	return runner.CommandString(c.bin(), rebootArgs(image, path)...)
}

func check(verb string, res runner.Result, err error) error {
	if err != nil {
		return fmt.Errorf("dfu: %s: %w", verb, err)
	}
	if res.TimedOut {
		return fmt.Errorf("dfu: %s: timed out", verb)
	}
	if res.ExitCode != 0 {
		if detail := strings.TrimSpace(string(res.Stderr)); detail != "" {
			return fmt.Errorf("dfu: %s: exit status %d: %s", verb, res.ExitCode, detail)
		}
		return fmt.Errorf("dfu: %s: exit status %d", verb, res.ExitCode)
	}
	return nil
}

// PresentOverUSB reports the bus locations of bootloader-mode DIMMs
// visible on the USB bus, without needing dfu-util. A device stuck
// here is invisible to console discovery, so callers use this to
// explain why an expected DIMM is missing from the endpoint table.
func PresentOverUSB() ([]string, error) {
	usb := gousb.NewContext()
	defer usb.Close()

	var found []string
	_, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if desc.Vendor == VendorID && desc.Product == ProductID {
			found = append(found, fmt.Sprintf("bus %d, address %d", desc.Bus, desc.Address))
		}
		return false
	})
	if err != nil && err != gousb.ErrorAccess {
		return found, fmt.Errorf("dfu: usb scan: %w", err)
	}
	return found, nil
}
