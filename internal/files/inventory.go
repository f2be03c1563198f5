package files

import (
	"path/filepath"

	"macrostress/internal/config"
	apperrors "macrostress/internal/errors"
	"macrostress/internal/ingest"
)

// RawSource reports whether one expected raw download is on disk.
type RawSource struct {
	File    string    `json:"file"`
	Present bool      `json:"present"`
	Info    *FileInfo `json:"info,omitempty"`
}

// Inventory is the state of the data and output directories.
type Inventory struct {
	RawDir       string      `json:"raw_dir"`
	Raw          []RawSource `json:"raw"`
	MissingRaw   []string    `json:"missing_raw"`
	MacroHistory *FileInfo   `json:"macro_history"`
	OutputDir    string      `json:"output_dir"`
	Outputs      []FileInfo  `json:"outputs"`
	LatestOutput *FileInfo   `json:"latest_output,omitempty"`
}

// RawComplete reports whether every raw file ingest needs is present.
func (inv *Inventory) RawComplete() bool {
	return len(inv.MissingRaw) == 0
}

// RequireRaw returns a Lookup error naming the missing raw files.
func (inv *Inventory) RequireRaw() error {
	if inv.RawComplete() {
		return nil
	}
	return apperrors.NewLookupError("raw files in "+inv.RawDir, inv.MissingRaw...).
		WithContext("hint", "run fetch first")
}

// Scan inspects the raw, processed and output directories. Missing
// directories count as empty.
func Scan(paths *config.Paths) (*Inventory, error) {
	d := NewDiscovery(paths.BaseDir)
	inv := &Inventory{
		RawDir:     paths.RawDir,
		Raw:        []RawSource{},
		MissingRaw: []string{},
		OutputDir:  paths.OutputDir,
	}

	for _, name := range ingest.RawFiles() {
		src := RawSource{File: name}
		if info, ok := d.Stat(filepath.Join(paths.RawDir, name)); ok {
			src.Present = true
			src.Info = &info
		} else {
			inv.MissingRaw = append(inv.MissingRaw, name)
		}
		inv.Raw = append(inv.Raw, src)
	}

	if info, ok := d.Stat(paths.MacroHistoryPath()); ok {
		inv.MacroHistory = &info
	}

	outputs, err := d.FindFiles(paths.OutputDir, ".csv", ".xlsx")
	if err != nil {
		return nil, err
	}
	if outputs == nil {
		outputs = []FileInfo{}
	}
	inv.Outputs = outputs
	if latest, ok := GetLatestFile(outputs); ok {
		inv.LatestOutput = &latest
	}
	return inv, nil
}
