// Package export writes each synchronized batch to a JSON file per table.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"recon_sync/ingestion/internal/models"
)

// Path returns the file a batch of kind is written to inside dir
func Path(dir string, kind models.Kind) string {
	return filepath.Join(dir, kind.Table()+".json")
}

// WriteRecords replaces <dir>/<table>.json with records. The file is written
// to a temporary name first so readers never see a partial document.
func WriteRecords(dir string, kind models.Kind, records []models.Record) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %s", models.ErrUnknownKind, kind)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create export dir: %w", err)
	}

	if records == nil {
		records = []models.Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", kind.Table(), err)
	}

	tmp, err := os.CreateTemp(dir, "."+kind.Table()+"-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}

	target := Path(dir, kind)
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("failed to move export into place: %w", err)
	}

	log.Info().
		Str("file", target).
		Int("records", len(records)).
		Msg("Export written")
	return nil
}
