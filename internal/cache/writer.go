// Package cache persists day records as one pretty-printed JSON file per date.
package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/weather-harvester/internal/harvest"
)

const (
	// DefaultDir is the cache location relative to the working directory.
	DefaultDir = ".data"

	contentType = "application/json; charset=utf-8"
)

// datePattern checks the file-name shape only. Composed dates such as
// 2017-02-29 come from a fixed calendar day across years and are kept as-is.
var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Mirror receives a copy of every cache file.
type Mirror interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Config captures the cache location.
type Config struct {
	// Dir is the directory holding <date>.json files.
	Dir string `mapstructure:"dir"`
}

// Writer writes DayRecords to <Dir>/<date>.json, overwriting any previous
// file for the same date.
type Writer struct {
	dir    string
	mirror Mirror
	logger *zap.Logger
}

// New creates a Writer. The directory is created on first write. A nil
// mirror disables mirroring.
func New(cfg Config, mirror Mirror, logger *zap.Logger) (*Writer, error) {
	dir := strings.TrimSpace(cfg.Dir)
	if dir == "" {
		return nil, fmt.Errorf("cache directory is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		dir:    dir,
		mirror: mirror,
		logger: logger,
	}, nil
}

// Dir returns the cache directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Path returns the file a record with the given date is written to.
func (w *Writer) Path(date string) string {
	return filepath.Join(w.dir, FileName(date))
}

// FileName is the cache file name for date.
func FileName(date string) string {
	return date + ".json"
}

// WriteDay stores every record of one day. All records are encoded and
// staged before any cache file is replaced, so a bad record leaves the
// directory untouched.
func (w *Writer) WriteDay(ctx context.Context, records []harvest.DayRecord) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}
	payloads := make([][]byte, len(records))
	for i, record := range records {
		if !datePattern.MatchString(record.Date) {
			return fmt.Errorf("record date %q: want YYYY-MM-DD", record.Date)
		}
		payload, err := Encode(record)
		if err != nil {
			return err
		}
		payloads[i] = payload
	}
	if err := os.MkdirAll(w.dir, 0o750); err != nil {
		return fmt.Errorf("create cache dir %s: %w", w.dir, err)
	}

	staged := make([]string, 0, len(records))
	committed := false
	defer func() {
		if committed {
			return
		}
		for _, tmp := range staged {
			_ = os.Remove(tmp)
		}
	}()
	for i, record := range records {
		if info, err := os.Stat(w.Path(record.Date)); err == nil && info.IsDir() {
			return fmt.Errorf("cache path %s is a directory", w.Path(record.Date))
		}
		tmp, err := w.stage(payloads[i])
		if err != nil {
			return fmt.Errorf("stage %s: %w", record.Date, err)
		}
		staged = append(staged, tmp)
	}
	for i, record := range records {
		target := w.Path(record.Date)
		if err := os.Rename(staged[i], target); err != nil {
			return fmt.Errorf("write cache file %s: %w", target, err)
		}
	}
	committed = true

	for i, record := range records {
		w.mirrorCopy(ctx, record.Date, payloads[i])
	}
	return nil
}

func (w *Writer) stage(payload []byte) (string, error) {
	f, err := os.CreateTemp(w.dir, ".staging-*.json")
	if err != nil {
		return "", err
	}
	name := f.Name()
	if _, err := f.Write(payload); err != nil {
		_ = f.Close()
		_ = os.Remove(name)
		return "", err
	}
	// #nosec G302 -- cache files are read by the site build.
	if err := f.Chmod(0o644); err != nil {
		_ = f.Close()
		_ = os.Remove(name)
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return "", err
	}
	return name, nil
}

// Encode renders record exactly as it is stored on disk: two-space indent,
// no HTML escaping, no trailing newline.
func Encode(record harvest.DayRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(record); err != nil {
		return nil, fmt.Errorf("marshal record %s: %w", record.Date, err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func (w *Writer) mirrorCopy(ctx context.Context, date string, payload []byte) {
	if w.mirror == nil {
		return
	}
	uri, err := w.mirror.PutObject(ctx, path.Clean(FileName(date)), contentType, bytes.NewReader(payload))
	if err != nil {
		w.logger.Warn("cache mirror upload failed", zap.String("date", date), zap.Error(err))
		return
	}
	w.logger.Debug("cache mirrored", zap.String("date", date), zap.String("uri", uri))
}
