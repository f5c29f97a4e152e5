package dimm

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestParseRankPath(t *testing.T) {
	tests := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{path: "/dev/dpu_rank0", want: "dpu_rank0"},
		{path: "/dev/dpu_rank12", want: "dpu_rank12"},
		{path: "dpu_rank7", want: "dpu_rank7"},
		{path: "/sys/class/dpu_rank/dpu_rank3", want: "dpu_rank3"},
		{path: "/dev/dpu_rank123", wantErr: true},
		{path: "/dev/dpu_rank", wantErr: true},
		{path: "/dev/ttyUSB0", wantErr: true},
		{path: "/dev/dpu_rank0/extra", wantErr: true},
		{path: "", wantErr: true},
	}
	for _, tt := range tests {
		tok, err := ParseRankPath(tt.path)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseRankPath(%q) = %q, want error", tt.path, tok)
			} else if !IsDeviceError(err) {
				t.Errorf("ParseRankPath(%q) error %v is not a DeviceError", tt.path, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseRankPath(%q) unexpected error: %v", tt.path, err)
			continue
		}
		if tok != tt.want {
			t.Errorf("ParseRankPath(%q) = %q, want %q", tt.path, tok, tt.want)
		}
	}
}

func TestTableLookups(t *testing.T) {
	tbl := NewTable([]Device{
		{Name: "ttyUSB0", Identity: Identity{SerialNumber: "12634275", RankA: "dpu_rank0", RankB: "dpu_rank3"}},
		{Name: "ttyUSB1", Identity: Identity{SerialNumber: "12634276", RankA: "dpu_rank1"}},
		{Name: "ttyUSB2"},
	})

	if got := tbl.Names(); len(got) != 3 || got[0] != "ttyUSB0" || got[2] != "ttyUSB2" {
		t.Fatalf("Names() = %v", got)
	}
	if tbl.Empty() {
		t.Fatal("Empty() = true for populated table")
	}

	if name, ok := tbl.BySerial("12634275"); !ok || name != "ttyUSB0" {
		t.Errorf("BySerial(12634275) = %q, %v", name, ok)
	}
	if _, ok := tbl.BySerial("99999999"); ok {
		t.Error("BySerial(99999999) unexpectedly resolved")
	}
	if name, ok := tbl.ByRank("dpu_rank3"); !ok || name != "ttyUSB0" {
		t.Errorf("ByRank(dpu_rank3) = %q, %v", name, ok)
	}
	if name, ok := tbl.ByRank("dpu_rank1"); !ok || name != "ttyUSB1" {
		t.Errorf("ByRank(dpu_rank1) = %q, %v", name, ok)
	}
	if _, ok := tbl.ByRank("dpu_rank9"); ok {
		t.Error("ByRank(dpu_rank9) unexpectedly resolved")
	}
	// Blank identity fields must never become index keys.
	if _, ok := tbl.BySerial(""); ok {
		t.Error("BySerial(\"\") unexpectedly resolved")
	}
	if _, ok := tbl.ByRank(""); ok {
		t.Error("ByRank(\"\") unexpectedly resolved")
	}
}

func TestTableFirstMatchWins(t *testing.T) {
	tbl := NewTable([]Device{
		{Name: "ttyUSB0", Identity: Identity{SerialNumber: "11111111", RankA: "dpu_rank0"}},
		{Name: "ttyUSB1", Identity: Identity{SerialNumber: "11111111", RankA: "dpu_rank0"}},
	})
	if name, _ := tbl.BySerial("11111111"); name != "ttyUSB0" {
		t.Errorf("duplicate serial resolved to %q, want first match ttyUSB0", name)
	}
	if name, _ := tbl.ByRank("dpu_rank0"); name != "ttyUSB0" {
		t.Errorf("duplicate rank resolved to %q, want first match ttyUSB0", name)
	}
}

func TestTableRender(t *testing.T) {
	tbl := NewTable([]Device{
		{Name: "ttyUSB0", Identity: Identity{SerialNumber: "12634275", RankA: "dpu_rank0"}},
		{Name: "ttyUSB1"},
	})
	var sb strings.Builder
	tbl.Render(&sb)
	out := sb.String()
	for _, want := range []string{"ttyUSB0", "12634275", "dpu_rank0", "ttyUSB1", "-"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered table missing %q:\n%s", want, out)
		}
	}
}

func TestDeviceErrorFormat(t *testing.T) {
	tests := []struct {
		err  *DeviceError
		want string
	}{
		{&DeviceError{Device: "ttyUSB0", Step: "open", Err: errors.New("no such file")}, "ttyUSB0: open: no such file"},
		{&DeviceError{Device: "/dev/dpu_rank0", Step: "erase", Msg: "failed to erase RW partition"}, "/dev/dpu_rank0: erase: failed to erase RW partition"},
		{&DeviceError{Device: "99999999", Msg: "serial number does not exist"}, "99999999: serial number does not exist"},
		{&DeviceError{Msg: "no answer"}, "no answer"},
		{&DeviceError{}, "device error"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestDeviceErrorUnwrap(t *testing.T) {
	cause := errors.New("port busy")
	err := fmt.Errorf("while probing: %w", &DeviceError{Device: "ttyUSB0", Err: cause})
	if !IsDeviceError(err) {
		t.Fatal("IsDeviceError() = false for wrapped DeviceError")
	}
	var de *DeviceError
	if !errors.As(err, &de) || !errors.Is(err, cause) {
		t.Fatal("errors.As/Is failed to traverse DeviceError chain")
	}
	if IsDeviceError(errors.New("plain")) {
		t.Fatal("IsDeviceError() = true for plain error")
	}
}

func TestIdentityEmpty(t *testing.T) {
	if !(Identity{}).Empty() {
		t.Error("zero Identity not reported empty")
	}
	if (Identity{SerialNumber: "1"}).Empty() || (Identity{RankB: "dpu_rank1"}).Empty() {
		t.Error("populated Identity reported empty")
	}
}
