package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TrackedMessage is a posted message Purge still has to delete.
type TrackedMessage struct {
	ID string `json:"id"`
	// Attempts counts failed delete attempts that may succeed on retry.
	Attempts int `json:"attempts,omitempty"`
}

// Ledger persists tracked message ids so a restarted process can purge the
// panels its predecessor posted.
type Ledger interface {
	Load() ([]TrackedMessage, error)
	Save(messages []TrackedMessage) error
}

// FileLedger stores tracked messages as a JSON document on local disk.
type FileLedger struct {
	path string
}

type ledgerFile struct {
	Messages []TrackedMessage `json:"messages"`
}

// NewFileLedger creates a ledger at path, creating parent directories.
func NewFileLedger(path string) (*FileLedger, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("ledger path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	return &FileLedger{path: path}, nil
}

// Load reads the tracked messages. A missing file means none are tracked.
func (l *FileLedger) Load() ([]TrackedMessage, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	var doc ledgerFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode ledger %s: %w", l.path, err)
	}
	return doc.Messages, nil
}

// Save replaces the ledger contents. The write goes through a temp file and
// a rename so a crash never leaves a truncated ledger.
func (l *FileLedger) Save(messages []TrackedMessage) error {
	data, err := json.Marshal(ledgerFile{Messages: messages})
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(l.path), ".ledger-*")
	if err != nil {
		return fmt.Errorf("create ledger temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close ledger temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), l.path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}
