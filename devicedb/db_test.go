package devicedb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tangkong/hutch-python/errors"
)

func writeDB(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestOpenValidDatabase(t *testing.T) {
	path := writeDB(t, `[
		{"name": "im1l0", "device_class": "Imager", "prefix": "IM1L0:XTES", "beamline": "TMO", "active": true},
		{"name": "at2l0", "device_class": "Attenuator", "prefix": "AT2L0:XTES", "beamline": "TMO", "active": false, "load_level": "all"},
		{"name": "mr1k1", "device_class": "Motor", "prefix": "MR1K1:BEND", "beamline": "RIX", "active": true,
			"metadata": {"z": 731.5}}
	]`)

	client, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, path, client.Path())
	assert.Equal(t, 3, client.Len())
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}

func TestOpenRejectsSchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not an array", `{"name": "im1l0"}`},
		{"missing required field", `[{"name": "im1l0", "beamline": "TMO"}]`},
		{"empty name", `[{"name": "", "device_class": "Imager", "beamline": "TMO"}]`},
		{"unknown field", `[{"name": "im1l0", "device_class": "Imager", "beamline": "TMO", "extra": 1}]`},
		{"bad load level", `[{"name": "im1l0", "device_class": "Imager", "beamline": "TMO", "load_level": "everything"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(writeDB(t, tt.doc))
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestOpenRejectsMalformedJSON(t *testing.T) {
	_, err := Open(writeDB(t, `[{"name": "im1l0",`))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestSearch(t *testing.T) {
	client, err := Open(writeDB(t, `[
		{"name": "zebra", "device_class": "Motor", "beamline": "TMO", "active": true},
		{"name": "alpha", "device_class": "Motor", "beamline": "TMO", "active": true},
		{"name": "mid", "device_class": "Imager", "beamline": "TMO", "active": false},
		{"name": "other", "device_class": "Motor", "beamline": "RIX", "active": true}
	]`))
	require.NoError(t, err)

	t.Run("sorted by name", func(t *testing.T) {
		entries := client.Search(SearchOptions{})
		names := entryNames(entries)
		assert.Equal(t, []string{"alpha", "mid", "other", "zebra"}, names)
	})

	t.Run("beamline filter", func(t *testing.T) {
		entries := client.Search(SearchOptions{Beamlines: []string{"RIX"}})
		assert.Equal(t, []string{"other"}, entryNames(entries))
	})

	t.Run("active only", func(t *testing.T) {
		entries := client.Search(SearchOptions{Beamlines: []string{"TMO"}, ActiveOnly: true})
		assert.Equal(t, []string{"alpha", "zebra"}, entryNames(entries))
	})

	t.Run("no match", func(t *testing.T) {
		assert.Empty(t, client.Search(SearchOptions{Beamlines: []string{"XCS"}}))
	})
}

func TestBeamlines(t *testing.T) {
	client, err := Open(writeDB(t, `[
		{"name": "a", "device_class": "Motor", "beamline": "TMO", "active": true},
		{"name": "b", "device_class": "Motor", "beamline": "RIX", "active": true},
		{"name": "c", "device_class": "Motor", "beamline": "TMO", "active": true}
	]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"RIX", "TMO"}, client.Beamlines())
}

func entryNames(entries []Entry) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}
