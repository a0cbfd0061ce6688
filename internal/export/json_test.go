package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recon_sync/ingestion/internal/models"
)

func TestWriteRecords(t *testing.T) {
	dir := t.TempDir()

	id, number, name := int64(5), int64(5481), "Ratchet Rockers"
	records := []models.Record{
		&models.Team{ID: &id, Number: &number, Name: &name},
		&models.Team{ID: &id},
	}
	require.NoError(t, WriteRecords(dir, models.KindTeam, records))

	data, err := os.ReadFile(filepath.Join(dir, "teams.json"))
	require.NoError(t, err)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, 2)
	assert.Equal(t, "Ratchet Rockers", got[0]["name"])
	assert.Equal(t, float64(5481), got[0]["number"])
	assert.Nil(t, got[1]["name"], "Missing fields should be exported as null")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "No temp file should be left behind")
}

func TestWriteRecords_Replaces(t *testing.T) {
	dir := t.TempDir()
	id := int64(1)

	require.NoError(t, WriteRecords(dir, models.KindEvent, []models.Record{&models.Event{ID: &id}}))
	require.NoError(t, WriteRecords(dir, models.KindEvent, nil))

	data, err := os.ReadFile(Path(dir, models.KindEvent))
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestWriteRecords_UnknownKind(t *testing.T) {
	err := WriteRecords(t.TempDir(), models.Kind(9), nil)
	assert.ErrorIs(t, err, models.ErrUnknownKind)
}
