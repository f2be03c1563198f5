package exporter

import (
	"encoding/csv"
	"log/slog"
	"os"
	"path/filepath"

	apperrors "macrostress/internal/errors"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter writes CSV files under an output directory.
type CSVWriter struct {
	dir string
}

// NewCSVWriter creates a writer rooted at dir. Relative file names passed to
// its methods are resolved against dir.
func NewCSVWriter(dir string) *CSVWriter {
	return &CSVWriter{dir: dir}
}

// Dir returns the output directory.
func (w *CSVWriter) Dir() string {
	return w.dir
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	Append    bool
	BOMPrefix bool // lets Excel detect UTF-8
}

// WriteCSV writes a CSV file and returns its full path.
func (w *CSVWriter) WriteCSV(name string, options WriteOptions) (string, error) {
	fullPath := w.resolvePath(name)

	slog.Debug("writing_csv",
		slog.String("file", name),
		slog.String("path", fullPath),
		slog.Int("records", len(options.Records)))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", apperrors.NewStorageError("failed to create directory", err)
	}

	_, statErr := os.Stat(fullPath)
	existed := statErr == nil

	flags := os.O_CREATE | os.O_WRONLY
	if options.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	file, err := os.OpenFile(fullPath, flags, 0644)
	if err != nil {
		return "", apperrors.NewStorageError("failed to open "+fullPath, err)
	}
	defer file.Close()

	fresh := !options.Append || !existed
	if options.BOMPrefix && fresh {
		if _, err := file.Write(utf8BOM); err != nil {
			return "", apperrors.NewStorageError("failed to write BOM", err)
		}
	}

	writer := csv.NewWriter(file)
	if fresh && len(options.Headers) > 0 {
		if err := writer.Write(options.Headers); err != nil {
			return "", apperrors.NewStorageError("failed to write headers", err)
		}
	}
	if err := writer.WriteAll(options.Records); err != nil {
		return "", apperrors.NewStorageError("failed to write records to "+fullPath, err)
	}
	return fullPath, nil
}

// WriteSimpleCSV replaces name with headers and records.
func (w *CSVWriter) WriteSimpleCSV(name string, headers []string, records [][]string) (string, error) {
	return w.WriteCSV(name, WriteOptions{
		Headers:   headers,
		Records:   records,
		BOMPrefix: true,
	})
}

// AppendToCSV appends records to name, writing headers first when the file is new.
func (w *CSVWriter) AppendToCSV(name string, headers []string, records [][]string) (string, error) {
	return w.WriteCSV(name, WriteOptions{
		Headers: headers,
		Records: records,
		Append:  true,
	})
}

// StreamWriter writes a CSV file one record at a time.
type StreamWriter struct {
	path   string
	file   *os.File
	writer *csv.Writer
}

// CreateStreamWriter creates name and writes the BOM and headers.
func (w *CSVWriter) CreateStreamWriter(name string, headers []string) (*StreamWriter, error) {
	fullPath := w.resolvePath(name)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, apperrors.NewStorageError("failed to create directory", err)
	}
	file, err := os.Create(fullPath)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to create "+fullPath, err)
	}
	if _, err := file.Write(utf8BOM); err != nil {
		file.Close()
		return nil, apperrors.NewStorageError("failed to write BOM", err)
	}

	writer := csv.NewWriter(file)
	if len(headers) > 0 {
		if err := writer.Write(headers); err != nil {
			file.Close()
			return nil, apperrors.NewStorageError("failed to write headers", err)
		}
	}
	return &StreamWriter{path: fullPath, file: file, writer: writer}, nil
}

// Path returns the full path of the stream's file.
func (s *StreamWriter) Path() string {
	return s.path
}

// WriteRecord writes a single record to the stream
func (s *StreamWriter) WriteRecord(record []string) error {
	return s.writer.Write(record)
}

// Close flushes and closes the stream writer
func (s *StreamWriter) Close() error {
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.file.Close()
		return apperrors.NewStorageError("failed to flush "+s.path, err)
	}
	return s.file.Close()
}

func (w *CSVWriter) resolvePath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(w.dir, name)
}
