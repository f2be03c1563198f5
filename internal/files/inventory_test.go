package files

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macrostress/internal/config"
	apperrors "macrostress/internal/errors"
	"macrostress/internal/ingest"
)

func testPaths(t *testing.T) *config.Paths {
	t.Helper()
	paths, err := config.ResolvePaths(config.Default().Paths, t.TempDir())
	require.NoError(t, err)
	return paths
}

func writeFile(t *testing.T, path string, modTime time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x,y\n"), 0o644))
	require.NoError(t, os.Chtimes(path, modTime, modTime))
}

func TestScan_EmptyWorkspace(t *testing.T) {
	paths := testPaths(t)

	inv, err := Scan(paths)
	require.NoError(t, err)
	assert.Equal(t, ingest.RawFiles(), inv.MissingRaw)
	assert.Len(t, inv.Raw, len(ingest.RawFiles()))
	assert.False(t, inv.RawComplete())
	assert.Nil(t, inv.MacroHistory)
	assert.Empty(t, inv.Outputs)
	assert.Nil(t, inv.LatestOutput)

	err = inv.RequireRaw()
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeLookup))
	assert.Contains(t, err.Error(), ingest.GDPFile)
}

func TestScan_PopulatedWorkspace(t *testing.T) {
	paths := testPaths(t)
	old := time.Now().Add(-time.Hour)
	for _, name := range ingest.RawFiles() {
		writeFile(t, filepath.Join(paths.RawDir, name), old)
	}
	writeFile(t, paths.MacroHistoryPath(), old)
	writeFile(t, filepath.Join(paths.OutputDir, "system_results.csv"), old)
	writeFile(t, filepath.Join(paths.OutputDir, "stress_test.xlsx"), time.Now())
	writeFile(t, filepath.Join(paths.OutputDir, "notes.txt"), time.Now())
	require.NoError(t, os.MkdirAll(filepath.Join(paths.OutputDir, "archive.csv"), 0o755))

	inv, err := Scan(paths)
	require.NoError(t, err)
	assert.True(t, inv.RawComplete())
	assert.NoError(t, inv.RequireRaw())
	for _, src := range inv.Raw {
		assert.True(t, src.Present, src.File)
		require.NotNil(t, src.Info)
	}
	require.NotNil(t, inv.MacroHistory)
	assert.Equal(t, ingest.MacroHistoryFile, inv.MacroHistory.Name)

	require.Len(t, inv.Outputs, 2, "only csv and xlsx regular files")
	assert.Equal(t, "stress_test.xlsx", inv.Outputs[0].Name)
	assert.Equal(t, "system_results.csv", inv.Outputs[1].Name)
	require.NotNil(t, inv.LatestOutput)
	assert.Equal(t, "stress_test.xlsx", inv.LatestOutput.Name)
}

func TestDiscovery_FindFiles(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "data", "b.CSV"), time.Now())
	writeFile(t, filepath.Join(base, "data", "a.csv"), time.Now())
	writeFile(t, filepath.Join(base, "data", "c.json"), time.Now())

	d := NewDiscovery(base)
	tests := []struct {
		name string
		exts []string
		want []string
	}{
		{"csv any case", []string{".csv"}, []string{"a.csv", "b.CSV"}},
		{"all files", nil, []string{"a.csv", "b.CSV", "c.json"}},
		{"no match", []string{".xlsx"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files, err := d.FindFiles("data", tt.exts...)
			require.NoError(t, err)
			var names []string
			for _, f := range files {
				names = append(names, f.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}

	files, err := d.FindFiles("missing")
	assert.NoError(t, err)
	assert.Empty(t, files)
}

func TestGetLatestFile(t *testing.T) {
	_, ok := GetLatestFile(nil)
	assert.False(t, ok)

	now := time.Now()
	latest, ok := GetLatestFile([]FileInfo{
		{Name: "a", ModTime: now.Add(-time.Minute)},
		{Name: "b", ModTime: now},
		{Name: "c", ModTime: now.Add(-time.Hour)},
	})
	require.True(t, ok)
	assert.Equal(t, "b", latest.Name)
}
