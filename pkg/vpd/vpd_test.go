package vpd

import (
	"context"
	"errors"
	"os"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/pimworks/dimmctl/pkg/ectool"
	"github.com/pimworks/dimmctl/pkg/runner"
)

func TestParsePair(t *testing.T) {
	tests := []struct {
		arg     string
		want    Pair
		wantErr bool
	}{
		{arg: "region=eu", want: Pair{Key: "region", Value: "eu"}},
		{arg: "empty=", want: Pair{Key: "empty", Value: ""}},
		{arg: "noequals", wantErr: true},
		{arg: "a=b=c", wantErr: true},
		{arg: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParsePair(tt.arg)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParsePair(%q) accepted", tt.arg)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParsePair(%q): %v", tt.arg, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePair(%q) = %+v, want %+v", tt.arg, got, tt.want)
		}
	}
}

func TestParsePairsRejectsWholeListOnOneBadEntry(t *testing.T) {
	if _, err := ParsePairs([]string{"a=1", "bad"}); err == nil {
		t.Fatal("ParsePairs accepted a malformed entry")
	}
	pairs, err := ParsePairs([]string{"a=1", "b=2"})
	if err != nil || len(pairs) != 2 {
		t.Fatalf("ParsePairs = %v, %v", pairs, err)
	}
}

func TestParseDPU(t *testing.T) {
	d, err := ParseDPU("3.7")
	if err != nil || d != (DPU{Slice: 3, DPU: 7}) {
		t.Fatalf("ParseDPU(3.7) = %+v, %v", d, err)
	}
	if d.String() != "3.7" {
		t.Errorf("String() = %q", d.String())
	}
	for _, bad := range []string{"3", "a.b", "3.", ".7", ""} {
		if _, err := ParseDPU(bad); err == nil {
			t.Errorf("ParseDPU(%q) accepted", bad)
		}
	}
}

func TestRawCodec(t *testing.T) {
	var c RawCodec
	desc, err := c.Describe([]byte{0xde, 0xad, 0xbe, 0xef})
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if !strings.Contains(desc, "de ad be ef") {
		t.Errorf("Describe = %q, want hex dump", desc)
	}
	if _, err := c.Update(nil, []Pair{{Key: "k", Value: "v"}}); !errors.Is(err, ErrCodecRequired) {
		t.Errorf("Update error = %v, want ErrCodecRequired", err)
	}
	if _, err := c.SetDPU(nil, DPU{}, true); !errors.Is(err, ErrCodecRequired) {
		t.Errorf("SetDPU error = %v, want ErrCodecRequired", err)
	}
}

// segmentExec emulates the console tool's flashread/flashwrite verbs
// against an in-memory segment.
type segmentExec struct {
	argv    [][]string
	segment []byte
	written []byte
	erased  bool
}

func (f *segmentExec) Run(ctx context.Context, timeout time.Duration, name string, args ...string) (runner.Result, error) {
	full := append([]string{name}, args...)
	f.argv = append(f.argv, full)
	switch args[2] {
	case "flashread":
		if err := os.WriteFile(args[5], f.segment, 0o600); err != nil {
			return runner.Result{}, err
		}
	case "flasherase":
		f.erased = true
	case "flashwrite":
		if !f.erased {
			return runner.Result{ExitCode: 1, Stderr: []byte("write to unerased flash")}, nil
		}
		raw, err := os.ReadFile(args[4])
		if err != nil {
			return runner.Result{}, err
		}
		f.written = raw
	}
	return runner.Result{}, nil
}

func TestStoreReadDB(t *testing.T) {
	fe := &segmentExec{segment: []byte("db-blob")}
	s := &Store{EC: &ectool.Client{Exec: fe}}
	raw, err := s.ReadDB(context.Background(), "/dev/dpu_rank0")
	if err != nil {
		t.Fatalf("ReadDB: %v", err)
	}
	if string(raw) != "db-blob" {
		t.Errorf("ReadDB = %q", raw)
	}
	if got := fe.argv[0][3:6]; !reflect.DeepEqual(got[:2], []string{"flashread", "0x3d000"}) {
		t.Errorf("argv = %v, want database segment read", fe.argv[0])
	}
}

func TestStoreWriteVPDErasesFirst(t *testing.T) {
	fe := &segmentExec{}
	s := &Store{EC: &ectool.Client{Exec: fe}}
	if err := s.WriteVPD(context.Background(), "/dev/dpu_rank0", []byte("fresh")); err != nil {
		t.Fatalf("WriteVPD: %v", err)
	}
	if string(fe.written) != "fresh" {
		t.Errorf("device received %q", fe.written)
	}
	if len(fe.argv) != 2 || fe.argv[0][3] != "flasherase" || fe.argv[1][3] != "flashwrite" {
		t.Errorf("argv sequence = %v, want erase then write", fe.argv)
	}
	if fe.argv[0][4] != "0x3c000" || fe.argv[0][5] != "0x1000" {
		t.Errorf("erase argv = %v, want VPD segment bounds", fe.argv[0])
	}
}

func TestStoreWriteRejectsOversizedBlob(t *testing.T) {
	fe := &segmentExec{}
	s := &Store{EC: &ectool.Client{Exec: fe}}
	big := make([]byte, SizeVPD+1)
	if err := s.WriteVPD(context.Background(), "/dev/dpu_rank0", big); err == nil {
		t.Fatal("WriteVPD accepted oversized blob")
	}
	if len(fe.argv) != 0 {
		t.Errorf("device touched for rejected blob: %v", fe.argv)
	}
}
