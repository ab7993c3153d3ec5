// Package loader reads documents from disk for ingestion.
package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

var ErrUnsupported = errors.New("unsupported document type")

// binaryFormats need a dedicated extractor and are refused rather than
// ingested as garbage.
var binaryFormats = map[string]struct{}{
	".pdf": {}, ".docx": {}, ".doc": {}, ".odt": {}, ".zip": {}, ".png": {}, ".jpg": {}, ".jpeg": {},
}

// TextLoader loads UTF-8 text files.
type TextLoader struct {
	// MaxBytes caps the file size. Zero means unlimited.
	MaxBytes int64
}

func NewTextLoader() *TextLoader { return &TextLoader{MaxBytes: 32 << 20} }

func (l *TextLoader) Load(path string) (string, error) {
	if _, ok := binaryFormats[strings.ToLower(filepath.Ext(path))]; ok {
		return "", fmt.Errorf("%s: %w", path, ErrUnsupported)
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s: is a directory", path)
	}
	if l.MaxBytes > 0 && info.Size() > l.MaxBytes {
		return "", fmt.Errorf("%s: %d bytes exceeds limit of %d", path, info.Size(), l.MaxBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%s: not valid UTF-8 text: %w", path, ErrUnsupported)
	}
	return strings.TrimPrefix(string(data), "\uFEFF"), nil
}
