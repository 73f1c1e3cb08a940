package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// FilePersister keeps the collection as a JSON array in a single file.
type FilePersister struct {
	path string
}

func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

func (p *FilePersister) LoadAll(ctx context.Context) []Record {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Infof("Events file %s not found, starting with an empty calendar", p.path)
		} else {
			log.Warnf("could not read events file %s: %v", p.path, err)
		}
		return []Record{}
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		log.Warnf("events file %s is corrupt, starting with an empty calendar: %v", p.path, err)
		return []Record{}
	}
	if records == nil {
		records = []Record{}
	}
	return records
}

// SaveAll writes to a temporary file next to the target and renames it over
// the target, so readers never see a half written file.
func (p *FilePersister) SaveAll(ctx context.Context, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode events: %w", err)
	}

	dir := filepath.Dir(p.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(p.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary events file: %w", err)
	}
	defer func() {
		// no-op once renamed
		_ = os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write events file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close events file: %w", err)
	}
	if err := os.Rename(tmp.Name(), p.path); err != nil {
		return fmt.Errorf("failed to replace events file: %w", err)
	}
	return nil
}
