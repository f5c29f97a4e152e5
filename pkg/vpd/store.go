package vpd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pimworks/dimmctl/pkg/ectool"
)

// Segment transfer budgets. The console transport moves a few kilobytes
// per second at worst.
const (
	readTimeout  = 30 * time.Second
	writeTimeout = 60 * time.Second
)

// Store reads and writes the product data segments through the console
// tool's flash verbs. Blobs transit through temporary files because the
// tool only moves flash contents to and from the filesystem.
type Store struct {
	EC *ectool.Client
}

// ReadVPD fetches the VPD segment of the given rank's MCU.
func (s *Store) ReadVPD(ctx context.Context, name string) ([]byte, error) {
	return s.read(ctx, name, OffVPD, SizeVPD, "vpd")
}

// ReadDB fetches the database segment of the given rank's MCU.
func (s *Store) ReadDB(ctx context.Context, name string) ([]byte, error) {
	return s.read(ctx, name, OffDB, SizeDB, "db")
}

// WriteVPD replaces the VPD segment of the given rank's MCU.
func (s *Store) WriteVPD(ctx context.Context, name string, raw []byte) error {
	return s.write(ctx, name, OffVPD, SizeVPD, "vpd", raw)
}

// WriteDB replaces the database segment of the given rank's MCU.
func (s *Store) WriteDB(ctx context.Context, name string, raw []byte) error {
	return s.write(ctx, name, OffDB, SizeDB, "db", raw)
}

func (s *Store) read(ctx context.Context, name string, off, size uint32, label string) ([]byte, error) {
	path, cleanup, err := stage(label)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	if err := s.EC.FlashRead(ctx, name, off, size, path, readTimeout); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("vpd: collect %s segment: %w", label, err)
	}
	return raw, nil
}

func (s *Store) write(ctx context.Context, name string, off, size uint32, label string, raw []byte) error {
	if len(raw) > int(size) {
		return fmt.Errorf("vpd: %s blob is %d bytes, segment holds %d", label, len(raw), size)
	}
	path, cleanup, err := stage(label)
	if err != nil {
		return err
	}
	defer cleanup()
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("vpd: stage %s segment: %w", label, err)
	}
	if err := s.EC.FlashErase(ctx, name, off, size, writeTimeout); err != nil {
		return err
	}
	return s.EC.FlashWrite(ctx, name, off, path, writeTimeout)
}

// stage creates the temporary file a segment transits through.
func stage(label string) (string, func(), error) {
	tmp, err := os.CreateTemp("", "dimmctl-"+label+"-*.bin")
	if err != nil {
		return "", nil, fmt.Errorf("vpd: stage %s segment: %w", label, err)
	}
	path := tmp.Name()
	tmp.Close()
	return path, func() { os.Remove(path) }, nil
}
