// Package vpd moves the vital product data segments of a DIMM's MCU
// flash between the device and a pluggable codec. Segment contents are
// opaque to this tool: layout and field encoding belong to the codec,
// which site-specific tooling supplies.
package vpd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Flash segment map. Both segments sit above the firmware span so the
// erase and write cycles of an update never touch them.
const (
	OffVPD  uint32 = 0x3c000
	SizeVPD uint32 = 0x1000
	OffDB   uint32 = 0x3d000
	SizeDB  uint32 = 0x3000
)

// Pair is one key=value assignment for the database segment.
type Pair struct {
	Key   string
	Value string
}

// ParsePair validates one database update argument. The accepted form
// is a single key=value with exactly one equals sign.
func ParsePair(s string) (Pair, error) {
	if strings.Count(s, "=") != 1 {
		return Pair{}, fmt.Errorf("vpd: database update %q is not of the form key=value", s)
	}
	key, value, _ := strings.Cut(s, "=")
	return Pair{Key: key, Value: value}, nil
}

// ParsePairs validates a whole update list.
func ParsePairs(args []string) ([]Pair, error) {
	pairs := make([]Pair, 0, len(args))
	for _, arg := range args {
		p, err := ParsePair(arg)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, nil
}

// DPU addresses one DPU inside a rank as "slice.dpu".
type DPU struct {
	Slice int
	DPU   int
}

func (d DPU) String() string { return fmt.Sprintf("%d.%d", d.Slice, d.DPU) }

// ParseDPU validates a DPU selector argument.
func ParseDPU(s string) (DPU, error) {
	sl, d, ok := strings.Cut(s, ".")
	if !ok {
		return DPU{}, fmt.Errorf("vpd: DPU selector %q is not of the form slice.dpu", s)
	}
	slice, err := strconv.Atoi(sl)
	if err != nil {
		return DPU{}, fmt.Errorf("vpd: DPU selector %q: bad slice: %w", s, err)
	}
	dpu, err := strconv.Atoi(d)
	if err != nil {
		return DPU{}, fmt.Errorf("vpd: DPU selector %q: bad dpu: %w", s, err)
	}
	return DPU{Slice: slice, DPU: dpu}, nil
}

// Codec interprets segment blobs. Describe renders a segment for
// humans. Update and SetDPU return a modified copy of the blob; they
// never change raw in place.
type Codec interface {
	Describe(raw []byte) (string, error)
	Update(raw []byte, pairs []Pair) ([]byte, error)
	SetDPU(raw []byte, dpu DPU, enabled bool) ([]byte, error)
}

// ErrCodecRequired marks a mutation attempted with the built-in codec.
var ErrCodecRequired = errors.New("vpd: mutation requires a site-specific codec")

// RawCodec is the built-in fallback. It renders segments as a hex dump
// and refuses every mutation.
type RawCodec struct{}

func (RawCodec) Describe(raw []byte) (string, error) {
	return hex.Dump(raw), nil
}

func (RawCodec) Update([]byte, []Pair) ([]byte, error) {
	return nil, ErrCodecRequired
}

func (RawCodec) SetDPU([]byte, DPU, bool) ([]byte, error) {
	return nil, ErrCodecRequired
}
