package artifacts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miaoti/trainticket-fuzz/pkg/faults"
)

func TestStorePut(t *testing.T) {

	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	rec := &faults.TestRecord{
		Method:     "POST",
		Path:       "/api/v1/adminrouteservice/adminroute",
		StatusCode: 400,
	}
	require.NoError(t, store.Put(rec, "INSUFFICIENT_STATIONS_FAULT"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var dataFiles, descFiles []string
	for _, e := range entries {
		if strings.Contains(e.Name(), ".") {
			descFiles = append(descFiles, e.Name())
		} else {
			dataFiles = append(dataFiles, e.Name())
		}
	}
	require.Len(t, dataFiles, 1)
	assert.Len(t, descFiles, 4)

	data, err := os.ReadFile(filepath.Join(dir, dataFiles[0]))
	require.NoError(t, err)
	assert.Contains(t, string(data), "POST /api/v1/adminrouteservice/adminroute")

	fault, err := os.ReadFile(filepath.Join(dir, dataFiles[0]+".fault"))
	require.NoError(t, err)
	assert.Equal(t, "INSUFFICIENT_STATIONS_FAULT", string(fault))

	endpoint, err := os.ReadFile(filepath.Join(dir, dataFiles[0]+".endpoint"))
	require.NoError(t, err)
	assert.Equal(t, "POST /api/v1/adminrouteservice/adminroute", string(endpoint))

	code, err := os.ReadFile(filepath.Join(dir, dataFiles[0]+".code"))
	require.NoError(t, err)
	assert.Equal(t, "400", string(code))
}

func TestStorePutDeduplicates(t *testing.T) {

	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	rec := &faults.TestRecord{Method: "GET", Path: "/api/v1/x", StatusCode: 400}
	require.NoError(t, store.Put(rec, "A"))
	require.NoError(t, store.Put(rec, "A"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 5) // one record plus four descriptions
}

func TestStoreSurvivesReopen(t *testing.T) {

	dir := t.TempDir()
	rec := &faults.TestRecord{Method: "GET", Path: "/api/v1/x", StatusCode: 400}

	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Put(rec, "A"))

	// A fresh store over the same directory must not duplicate the record.
	reopened, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, reopened.Put(rec, "A"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 5)
}
