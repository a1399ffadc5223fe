package dataset

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

var (
	// ErrMalformed wraps every failure to decode the contents of a source file.
	ErrMalformed = errors.New("malformed csv")

	ErrIsDirectory = errors.New("source path is a directory")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Read decodes a comma-delimited table whose first record is the header. Every
// data record must have as many fields as the header.
func Read(r io.Reader) (*Dataset, error) {
	br := bufio.NewReader(r)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
		if _, err := br.Discard(len(utf8BOM)); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
	}

	reader := csv.NewReader(br)
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: missing header row", ErrMalformed)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read header: %w", ErrMalformed, err)
	}

	var rows [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		rows = append(rows, record)
	}

	return &Dataset{Header: header, Rows: rows}, nil
}

// ReadFile loads a Dataset from path. Files ending in .gz or .zst are
// decompressed transparently.
func ReadFile(path string) (*Dataset, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrIsDirectory, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := decompressor(path, f)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	defer r.Close()

	return Read(r)
}

func decompressor(path string, f io.Reader) (io.ReadCloser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		return zr, nil
	case ".zst", ".zstd":
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open zstd stream: %w", err)
		}
		return zr.IOReadCloser(), nil
	default:
		return io.NopCloser(f), nil
	}
}

// Write encodes the header followed by every row. No index column is added.
func Write(w io.Writer, ds *Dataset) error {
	writer := csv.NewWriter(w)
	if err := writeRecord(w, writer, ds.Header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, row := range ds.Rows {
		if err := writeRecord(w, writer, row); err != nil {
			return fmt.Errorf("failed to write CSV records: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to write CSV records: %w", err)
	}
	return nil
}

// writeRecord writes a record consisting of one empty field as "" since
// csv.Writer emits a blank line for it, which readers skip.
func writeRecord(w io.Writer, writer *csv.Writer, record []string) error {
	if len(record) != 1 || record[0] != "" {
		return writer.Write(record)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\"\"\n")
	return err
}

// WriteFile writes ds to path, truncating any existing file.
func WriteFile(path string, ds *Dataset) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close CSV file: %w", cerr)
		}
	}()

	return Write(f, ds)
}
