package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/xuri/excelize/v2"

	"bikeshare-dashboard/internal/models"
)

// FileSource reads a table from a local file. The format follows the
// extension: .csv, .csv.gz, .csv.zst or .xlsx (first sheet).
type FileSource struct {
	path string
}

// NewFileSource creates a source for the file at path
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Name returns the file path
func (s *FileSource) Name() string {
	return s.path
}

// Fingerprint identifies the file version by absolute path, size and mtime
func (s *FileSource) Fingerprint(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	info, err := os.Stat(s.path)
	if err != nil {
		return "", &models.DataLoadError{Source: s.path, Message: "stat source", Err: err}
	}
	abs, err := filepath.Abs(s.path)
	if err != nil {
		abs = s.path
	}

	id := abs + "|" + strconv.FormatInt(info.Size(), 10) + "|" + strconv.FormatInt(info.ModTime().UnixNano(), 10)
	return strconv.FormatUint(xxhash.Sum64String(id), 16), nil
}

// Read parses every row of the file
func (s *FileSource) Read(ctx context.Context, grain models.Grain) ([]models.RawRentalRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		rows  [][]string
		lines []int
		err   error
	)
	if strings.EqualFold(filepath.Ext(s.path), ".xlsx") {
		rows, lines, err = s.readSheet()
	} else {
		rows, lines, err = s.readDelimited()
	}
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, &models.DataLoadError{Source: s.path, Message: "source is empty"}
	}
	return parseRows(s.path, grain, rows[0], rows[1:], lines[1:])
}

// readDelimited returns the records of the file with the line each starts on.
// The csv reader skips blank lines, so positions are taken from the reader.
func (s *FileSource) readDelimited() ([][]string, []int, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, nil, &models.DataLoadError{Source: s.path, Message: "open source", Err: err}
	}
	defer f.Close()

	r, closeFn, err := decompress(s.path, f)
	if err != nil {
		return nil, nil, &models.DataLoadError{Source: s.path, Message: "open compressed stream", Err: err}
	}
	defer closeFn()

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	var (
		rows  [][]string
		lines []int
	)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, &models.DataLoadError{Source: s.path, Message: "parse csv", Err: err}
		}
		line, _ := reader.FieldPos(0)
		rows = append(rows, row)
		lines = append(lines, line)
	}
	return rows, lines, nil
}

// readSheet returns the rows of the first sheet with their sheet row numbers
func (s *FileSource) readSheet() ([][]string, []int, error) {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, nil, &models.DataLoadError{Source: s.path, Message: "open workbook", Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, &models.DataLoadError{Source: s.path, Message: "workbook has no sheets"}
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, &models.DataLoadError{Source: s.path, Message: fmt.Sprintf("read sheet %q", sheets[0]), Err: err}
	}

	// GetRows keeps empty rows between filled ones, so the index is the row number
	lines := make([]int, len(rows))
	for i := range rows {
		lines[i] = i + 1
	}
	return rows, lines, nil
}

// decompress wraps r according to the compression suffix of path
func decompress(path string, r io.Reader) (io.Reader, func(), error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return gz, func() { gz.Close() }, nil
	case ".zst":
		dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, nil, err
		}
		return dec, dec.Close, nil
	default:
		return r, func() {}, nil
	}
}
