package feed

import (
	"compress/gzip"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"stop-importer/core/storage"
	"stop-importer/feature/stops/model"

	"github.com/minio/minio-go/v7"
	"github.com/paulmach/orb"
)

// Feed column names. Address and match columns are optional; the remaining
// ones must be present in the header.
const (
	colCounty     = "Landkreis"
	colCity       = "Gemeinde"
	colDistrict   = "Ortsteil"
	colName       = "Haltestelle"
	colAltName    = "Haltestelle_lang"
	colGlobalID   = "GlobaleId"
	colLat        = "zhv_lat"
	colLon        = "zhv_lon"
	colOSMID      = "osm_id"
	colMatchState = "match_state"
	colLines      = "linien"
	colMode       = "mode"
)

var requiredColumns = []string{colName, colGlobalID, colLat, colLon}

// Source supplies the raw bytes of a feed file. Open returns a fresh reader
// each call, so a run can consume the feed once per phase.
type Source interface {
	// Open returns a new reader over the feed file.
	Open(ctx context.Context) (io.ReadCloser, error)
	// Name returns the file or object name, used for logging and to detect
	// gzip compression by extension.
	Name() string
}

// FileSource reads the feed from the local filesystem.
type FileSource struct {
	Path string
}

func (s FileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open feed file: %w", err)
	}
	return f, nil
}

func (s FileSource) Name() string { return s.Path }

// ObjectSource reads the feed from an object storage bucket.
type ObjectSource struct {
	Client storage.Client
	Bucket string
	Object string
}

func (s ObjectSource) Open(ctx context.Context) (io.ReadCloser, error) {
	obj, err := s.Client.GetObject(ctx, s.Bucket, s.Object, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed object %s: %w", s.Object, err)
	}
	return obj, nil
}

func (s ObjectSource) Name() string { return s.Object }

// Stream is a lazy reader over the feed rows. It is consumed once; Open a
// new Stream for each pass.
type Stream struct {
	cr      *csv.Reader
	cols    map[string]int
	closers []io.Closer
	line    int
}

// Open starts reading the given source. Gzip-compressed feeds (by .gz
// extension) are decompressed transparently. The header row is consumed and
// validated immediately.
func Open(ctx context.Context, src Source) (*Stream, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}

	s := &Stream{closers: []io.Closer{rc}}

	var r io.Reader = rc
	if strings.HasSuffix(src.Name(), ".gz") {
		gz, err := gzip.NewReader(rc)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to open gzip feed %s: %w", src.Name(), err)
		}
		s.closers = append(s.closers, gz)
		r = gz
	}

	s.cr = csv.NewReader(r)
	// Feed exports occasionally ship ragged rows; missing cells read as "".
	s.cr.FieldsPerRecord = -1

	header, err := s.cr.Read()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to read feed header: %w", err)
	}
	s.line = 1

	s.cols = make(map[string]int, len(header))
	for i, name := range header {
		s.cols[strings.TrimSpace(name)] = i
	}
	for _, name := range requiredColumns {
		if _, ok := s.cols[name]; !ok {
			s.Close()
			return nil, fmt.Errorf("feed header is missing column %q", name)
		}
	}

	return s, nil
}

// Next returns the next feed record, or io.EOF when the feed is exhausted.
// A malformed coordinate is returned as a validation error; the caller is
// expected to abort the run on it.
func (s *Stream) Next() (*model.IncomingRecord, error) {
	row, err := s.cr.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read feed row: %w", err)
	}
	s.line++

	field := func(name string) string {
		i, ok := s.cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	lat, err := strconv.ParseFloat(field(colLat), 64)
	if err != nil {
		return nil, fmt.Errorf("line %d: latitude %q: %w", s.line, field(colLat), model.ErrInvalidRecord)
	}
	lon, err := strconv.ParseFloat(field(colLon), 64)
	if err != nil {
		return nil, fmt.Errorf("line %d: longitude %q: %w", s.line, field(colLon), model.ErrInvalidRecord)
	}

	return &model.IncomingRecord{
		County:     field(colCounty),
		City:       field(colCity),
		District:   field(colDistrict),
		Name:       field(colName),
		AltName:    field(colAltName),
		GlobalID:   field(colGlobalID),
		Location:   orb.Point{lon, lat},
		OSMID:      field(colOSMID),
		MatchState: field(colMatchState),
		Lines:      splitLines(field(colLines)),
		Mode:       field(colMode),
	}, nil
}

// Close releases the underlying readers.
func (s *Stream) Close() error {
	var firstErr error
	// Close in reverse order so the gzip reader drains before the file.
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// splitLines splits the comma-separated line list, dropping blanks.
func splitLines(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	lines := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			lines = append(lines, p)
		}
	}
	return lines
}
