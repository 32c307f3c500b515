package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

var (
	// ErrUnsupportedFormat is wrapped with the offending extension.
	ErrUnsupportedFormat = errors.New("unsupported file type")
	// ErrExtractorUnavailable means the format is known but no extractor was registered for it.
	ErrExtractorUnavailable = errors.New("no extractor registered for file type")
)

// Extractor turns the file at path into plain text.
type Extractor func(ctx context.Context, path string) (string, error)

// Loader is what the pipeline needs from a document loader.
type Loader interface {
	// Check fails with ErrUnsupportedFormat before any file is read.
	Check(path string) error
	Load(ctx context.Context, path string) (string, error)
}

// ExtensionLoader dispatches on the lower-cased file extension.
type ExtensionLoader struct {
	mu         sync.RWMutex
	extractors map[string]Extractor
}

// Formats that are accepted but need a binary extractor registered by the caller.
var externalFormats = []string{".pdf", ".doc", ".docx"}

func NewExtensionLoader() *ExtensionLoader {
	l := &ExtensionLoader{extractors: make(map[string]Extractor)}
	l.Register(".txt", loadText)
	l.Register(".csv", loadCSV)
	l.Register(".html", loadHTML)
	for _, ext := range externalFormats {
		l.extractors[ext] = nil
	}
	return l
}

// Register installs fn for ext (with or without the leading dot).
func (l *ExtensionLoader) Register(ext string, fn Extractor) {
	ext = normalizeExt(ext)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.extractors[ext] = fn
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func (l *ExtensionLoader) lookup(path string) (Extractor, string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	l.mu.RLock()
	fn, known := l.extractors[ext]
	l.mu.RUnlock()

	if !known {
		return nil, ext, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if fn == nil {
		return nil, ext, fmt.Errorf("%w: %q", ErrExtractorUnavailable, ext)
	}
	return fn, ext, nil
}

func (l *ExtensionLoader) Check(path string) error {
	_, _, err := l.lookup(path)
	return err
}

func (l *ExtensionLoader) Load(ctx context.Context, path string) (string, error) {
	fn, ext, err := l.lookup(path)
	if err != nil {
		return "", err
	}
	text, err := fn(ctx, path)
	if err != nil {
		return "", fmt.Errorf("load %s file %s: %w", ext, filepath.Base(path), err)
	}
	return text, nil
}

func loadText(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// loadCSV renders every row, header included, as one space separated line.
func loadCSV(_ context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var lines []string
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		lines = append(lines, strings.Join(record, " "))
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

// loadHTML keeps text nodes and drops script and style bodies.
func loadHTML(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return extractHTMLText(bytes.NewReader(data))
}

func extractHTMLText(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)
	var sb strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return strings.TrimSpace(sb.String()), nil
			}
			return "", z.Err()
		case html.StartTagToken:
			if name, _ := z.TagName(); isHiddenTag(string(name)) {
				skip++
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); isHiddenTag(string(name)) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				sb.Write(z.Text())
			}
		}
	}
}

func isHiddenTag(name string) bool {
	return name == "script" || name == "style"
}
