// Package console talks to the MCU debug console a DIMM exposes as a
// USB CDC-ACM tty. The protocol is line oriented: write a command,
// collect whatever the firmware prints until the line goes quiet.
package console

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"

	"github.com/pimworks/dimmctl/pkg/dimm"
)

const (
	// Baud is the MCU console line rate.
	Baud = 115200
	// DefaultTimeout bounds one drain or read phase when the caller
	// does not pick its own.
	DefaultTimeout = 2 * time.Second
)

// Client issues commands to DIMM MCU consoles. Endpoints are addressed
// by bare tty name; the port is opened per command and closed before
// returning so concurrent tools are not locked out between commands.
type Client struct {
	// DevDir is the directory holding tty device nodes. Empty means
	// /dev.
	DevDir string
	// DryRun suppresses all port I/O. Send reports success with no
	// response lines.
	DryRun bool
}

func (c *Client) portPath(name string) string {
	dir := c.DevDir
	if dir == "" {
		dir = "/dev"
	}
	return filepath.Join(dir, name)
}

// Send writes cmd to the named endpoint and, when expectResponse is
// set, returns the lines the firmware printed before the read timeout
// expired. Pending console chatter is drained before the write so the
// response is not polluted by earlier output. Returned lines keep
// their terminators so parsers can anchor on them. All port failures
// come back as *dimm.DeviceError scoped to the endpoint.
func (c *Client) Send(ctx context.Context, name string, cmd []byte, timeout time.Duration, expectResponse bool) ([]string, error) {
	if c.DryRun {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	port, err := serial.Open(c.portPath(name), &serial.Mode{BaudRate: Baud})
	if err != nil {
		return nil, &dimm.DeviceError{Device: name, Step: "open", Err: err}
	}
	defer port.Close()
	if err := port.SetReadTimeout(timeout); err != nil {
		return nil, &dimm.DeviceError{Device: name, Step: "open", Err: err}
	}

	if _, err := readUntilQuiet(port); err != nil {
		return nil, &dimm.DeviceError{Device: name, Step: "drain", Err: err}
	}
	if _, err := port.Write(cmd); err != nil {
		return nil, &dimm.DeviceError{Device: name, Step: "write", Err: err}
	}
	if !expectResponse {
		return nil, nil
	}

	raw, err := readUntilQuiet(port)
	if err != nil {
		return nil, &dimm.DeviceError{Device: name, Step: "read", Err: err}
	}
	log.Debug().Str("endpoint", name).Int("bytes", len(raw)).Msg("console response")
	return SplitLines(raw), nil
}

// readUntilQuiet accumulates port output until a read comes back empty,
// which the serial layer signals once the read timeout elapses with no
// new bytes.
func readUntilQuiet(port serial.Port) ([]byte, error) {
	var out []byte
	buf := make([]byte, 256)
	for {
		n, err := port.Read(buf)
		if err != nil {
			return out, err
		}
		if n == 0 {
			return out, nil
		}
		out = append(out, buf[:n]...)
	}
}

// SplitLines splits raw console output into lines, keeping terminators.
// A trailing partial line is kept too.
func SplitLines(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	lines := strings.SplitAfter(string(raw), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
