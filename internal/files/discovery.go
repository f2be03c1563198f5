package files

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	apperrors "macrostress/internal/errors"
)

// FileInfo represents information about a discovered file
type FileInfo struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Discovery lists files relative to a base directory.
type Discovery struct {
	basePath string
}

// NewDiscovery creates a new file discovery instance
func NewDiscovery(basePath string) *Discovery {
	return &Discovery{basePath: basePath}
}

func (d *Discovery) resolve(dir string) string {
	if filepath.IsAbs(dir) || d.basePath == "" {
		return dir
	}
	return filepath.Join(d.basePath, dir)
}

// FindFiles returns the regular files in dir whose extension matches one of
// exts (case-insensitive, with the dot), or every file when exts is empty.
// Results are sorted by name. A missing directory yields no files.
func (d *Discovery) FindFiles(dir string, exts ...string) ([]FileInfo, error) {
	fullPath := d.resolve(dir)
	entries, err := os.ReadDir(fullPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read directory "+fullPath, err)
	}

	var files []FileInfo
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !hasExt(entry.Name(), exts) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Name:    entry.Name(),
			Path:    filepath.Join(fullPath, entry.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Stat describes a single file, reporting false when it is absent or a
// directory.
func (d *Discovery) Stat(path string) (FileInfo, bool) {
	fullPath := d.resolve(path)
	info, err := os.Stat(fullPath)
	if err != nil || !info.Mode().IsRegular() {
		return FileInfo{}, false
	}
	return FileInfo{
		Name:    info.Name(),
		Path:    fullPath,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, true
}

func hasExt(name string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

// GetLatestFile returns the most recently modified file from a list
func GetLatestFile(files []FileInfo) (FileInfo, bool) {
	if len(files) == 0 {
		return FileInfo{}, false
	}
	latest := files[0]
	for _, file := range files[1:] {
		if file.ModTime.After(latest.ModTime) {
			latest = file
		}
	}
	return latest, true
}
