package dimm

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// Table is the result of one discovery pass: the devices in enumeration
// order plus lookup indexes keyed by serial number and by rank token.
// Indexes are built once; when two devices report the same key the
// first one enumerated wins and later ones are ignored.
type Table struct {
	devices  []Device
	bySerial map[string]string
	byRank   map[string]string
}

// NewTable indexes devices as returned by a discovery pass. Devices
// with empty identity fields stay listed but contribute nothing to the
// indexes.
func NewTable(devices []Device) *Table {
	t := &Table{
		devices:  devices,
		bySerial: make(map[string]string, len(devices)),
		byRank:   make(map[string]string, 2*len(devices)),
	}
	for _, d := range devices {
		if d.SerialNumber != "" {
			if _, dup := t.bySerial[d.SerialNumber]; !dup {
				t.bySerial[d.SerialNumber] = d.Name
			}
		}
		for _, rank := range []string{d.RankA, d.RankB} {
			if rank == "" {
				continue
			}
			if _, dup := t.byRank[rank]; !dup {
				t.byRank[rank] = d.Name
			}
		}
	}
	return t
}

// Devices returns the discovered devices in enumeration order.
func (t *Table) Devices() []Device { return t.devices }

// Names returns every endpoint name in enumeration order.
func (t *Table) Names() []string {
	names := make([]string, len(t.devices))
	for i, d := range t.devices {
		names[i] = d.Name
	}
	return names
}

// Empty reports whether the discovery pass found no endpoints at all.
func (t *Table) Empty() bool { return len(t.devices) == 0 }

// BySerial resolves a serial number to its endpoint name.
func (t *Table) BySerial(serial string) (string, bool) {
	name, ok := t.bySerial[serial]
	return name, ok
}

// ByRank resolves a rank token (e.g. "dpu_rank3") to its endpoint name.
func (t *Table) ByRank(rank string) (string, bool) {
	name, ok := t.byRank[rank]
	return name, ok
}

// Render writes the table in a human-readable layout. Identity fields
// that were never recovered show as "-".
func (t *Table) Render(w io.Writer) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"Name", "Rank A", "Rank B", "Serial Number"})
	tw.SetAutoFormatHeaders(false)
	tw.SetBorder(false)
	tw.SetColumnSeparator("")
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, d := range t.devices {
		tw.Append([]string{d.Name, orDash(d.RankA), orDash(d.RankB), orDash(d.SerialNumber)})
	}
	tw.Render()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
