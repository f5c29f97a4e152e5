// Package discovery finds the console endpoints of the DIMMs plugged
// into the host and resolves user-supplied identifiers (rank device
// paths, serial numbers) to them. Identification is self-reported: each
// candidate tty is asked over serial which DIMM it belongs to.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pimworks/dimmctl/pkg/batch"
	"github.com/pimworks/dimmctl/pkg/dimm"
)

// DefaultGlob matches the sysfs entries the google USB-serial driver
// publishes for DIMM console ttys.
const DefaultGlob = "/sys/bus/usb-serial/drivers/google/tty*"

// Identity query protocol. The firmware answers with its serial number
// as "S/N <token>" and the rank device names it backs as quoted
// 'dpu_rankN' tokens.
const (
	identityCommand = "dimm\n"
	identityTimeout = 500 * time.Millisecond
)

var (
	serialPat = regexp.MustCompile(`S/N (\w+)\r\n`)
	rankPat   = regexp.MustCompile(`'(dpu_rank\d+)'`)
)

// Console is the serial side-channel used to question and command a
// DIMM's MCU; *console.Client implements it.
type Console interface {
	Send(ctx context.Context, name string, cmd []byte, timeout time.Duration, expectResponse bool) ([]string, error)
}

// Scanner runs one discovery pass over the candidate endpoints.
type Scanner struct {
	// Glob enumerates candidate endpoints. Empty means DefaultGlob.
	Glob    string
	Console Console
}

// Scan queries every candidate endpoint for its identity and builds
// the endpoint table. Endpoints that answer with nothing parsable stay
// in the table with an empty identity; endpoints whose port cannot be
// driven at all are dropped under the batch policy. The returned flag
// reports whether any endpoint was dropped.
func (s *Scanner) Scan(ctx context.Context, pol batch.Policy) (*dimm.Table, bool, error) {
	pattern := s.Glob
	if pattern == "" {
		pattern = DefaultGlob
	}
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, false, fmt.Errorf("discovery: bad endpoint pattern %q: %w", pattern, err)
	}
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = filepath.Base(m)
	}
	log.Debug().Strs("endpoints", names).Msg("discovery pass")

	failed, devices, err := batch.Map(func(name string) (dimm.Device, error) {
		return s.probe(ctx, name)
	}, names, pol)
	if err != nil {
		return nil, true, err
	}
	return dimm.NewTable(devices), failed, nil
}

func (s *Scanner) probe(ctx context.Context, name string) (dimm.Device, error) {
	lines, err := s.Console.Send(ctx, name, []byte(identityCommand), identityTimeout, true)
	if err != nil {
		return dimm.Device{}, err
	}
	return dimm.Device{Name: name, Identity: ParseIdentity(lines)}, nil
}

// ParseIdentity extracts a DIMM identity from console response lines.
// The first serial announcement wins; up to two rank tokens are taken
// in the order they appear. Anything else is ignored.
func ParseIdentity(lines []string) dimm.Identity {
	var id dimm.Identity
	for _, line := range lines {
		if id.SerialNumber == "" {
			if m := serialPat.FindStringSubmatch(line); m != nil {
				id.SerialNumber = m[1]
			}
		}
		for _, m := range rankPat.FindAllStringSubmatch(line, -1) {
			switch {
			case id.RankA == "":
				id.RankA = m[1]
			case id.RankB == "":
				id.RankB = m[1]
			}
		}
	}
	return id
}

// Intent selects which discovered endpoints an invocation targets. At
// most one selector may be populated; with neither, every endpoint is
// targeted.
type Intent struct {
	// RankPaths are rank device paths, e.g. /dev/dpu_rank3.
	RankPaths []string
	// Serials are DIMM serial numbers as printed on the label.
	Serials []string
}

// Resolve maps the intent to endpoint names against one discovery
// table. Identifiers that match nothing yield device-scoped errors
// handled per the batch policy; the flag reports whether any identifier
// failed to resolve. Resolved rank paths are announced on w. The
// result may contain duplicates when two identifiers land on the same
// endpoint; callers de-duplicate before acting.
func Resolve(w io.Writer, tbl *dimm.Table, intent Intent, pol batch.Policy) (bool, []string, error) {
	switch {
	case len(intent.Serials) > 0 && len(intent.RankPaths) > 0:
		return true, nil, errors.New("discovery: rank and serial selectors are mutually exclusive")

	case len(intent.Serials) > 0:
		return batch.Map(func(serial string) (string, error) {
			name, ok := tbl.BySerial(serial)
			if !ok {
				return "", &dimm.DeviceError{Device: serial, Msg: "serial number does not exist"}
			}
			return name, nil
		}, intent.Serials, pol)

	case len(intent.RankPaths) > 0:
		return batch.Map(func(path string) (string, error) {
			tok, err := dimm.ParseRankPath(path)
			if err != nil {
				return "", err
			}
			name, ok := tbl.ByRank(tok)
			if !ok {
				return "", &dimm.DeviceError{Device: tok, Msg: "rank does not exist"}
			}
			fmt.Fprintf(w, "Rank %s found on /dev/%s\n", tok, name)
			return name, nil
		}, intent.RankPaths, pol)

	default:
		return false, tbl.Names(), nil
	}
}
