package state

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/PentesterFlow/OpenContract/internal/output"
)

const (
	// CurrentFile is the contract artifact name.
	CurrentFile = "contract.json"
	// PreviousFile holds the contract from the preceding run.
	PreviousFile = ".contract.prev.json"
)

// Snapshots manages the current/previous contract pair in an output directory.
type Snapshots struct {
	dir string
}

// NewSnapshots returns a snapshot manager rooted at dir.
func NewSnapshots(dir string) *Snapshots {
	return &Snapshots{dir: dir}
}

// CurrentPath returns the path of the current contract.
func (s *Snapshots) CurrentPath() string {
	return filepath.Join(s.dir, CurrentFile)
}

// PreviousPath returns the path of the previous contract.
func (s *Snapshots) PreviousPath() string {
	return filepath.Join(s.dir, PreviousFile)
}

// Rotate copies the current contract over the previous one. When no current
// contract exists, a stale previous file is removed so no diff is reported
// against an unrelated run. It reports whether a previous snapshot now exists.
func (s *Snapshots) Rotate() (bool, error) {
	copied, err := output.CopyFile(s.CurrentPath(), s.PreviousPath())
	if err != nil {
		return false, fmt.Errorf("failed to rotate contract snapshot: %w", err)
	}
	if copied {
		return true, nil
	}

	if err := os.Remove(s.PreviousPath()); err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to remove stale snapshot: %w", err)
	}
	return false, nil
}

// HasPrevious reports whether a previous snapshot exists.
func (s *Snapshots) HasPrevious() bool {
	_, err := os.Stat(s.PreviousPath())
	return err == nil
}

// ReadCurrent returns the raw current contract.
func (s *Snapshots) ReadCurrent() ([]byte, error) {
	return os.ReadFile(s.CurrentPath())
}

// ReadPrevious returns the raw previous contract.
func (s *Snapshots) ReadPrevious() ([]byte, error) {
	return os.ReadFile(s.PreviousPath())
}
