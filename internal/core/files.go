package core

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// FileMeta is the metadata an upload is judged by. The bytes themselves are
// never inspected by the upload policy.
type FileMeta struct {
	Name     string
	Size     int64
	MimeType string
}

// File is a single binary blob selected for upload.
type File struct {
	FileMeta
	open func() (io.ReadCloser, error)
}

// NewFile wraps metadata and an opener for the file's content.
func NewFile(meta FileMeta, open func() (io.ReadCloser, error)) *File {
	return &File{FileMeta: meta, open: open}
}

// Open returns a reader over the file's bytes.
func (f *File) Open() (io.ReadCloser, error) {
	if f.open == nil {
		return nil, errors.New("file has no content")
	}
	return f.open()
}

// InspectFile builds a File from a path on disk, detecting its MIME type
// from the leading bytes since local files carry no declared type.
func InspectFile(path string) (*File, error) {
	p := filepath.Clean(path)
	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", p, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", p)
	}

	mt, err := mimetype.DetectFile(p)
	if err != nil {
		return nil, fmt.Errorf("detect type of %s: %w", p, err)
	}

	meta := FileMeta{
		Name:     info.Name(),
		Size:     info.Size(),
		MimeType: NormalizeMimeType(mt.String()),
	}
	return NewFile(meta, func() (io.ReadCloser, error) { return os.Open(p) }), nil
}

// SniffMimeType detects a MIME type from content. Used when a browser sends
// no usable Content-Type for the file part.
func SniffMimeType(open func() (io.ReadCloser, error)) (string, error) {
	rc, err := open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	mt, err := mimetype.DetectReader(rc)
	if err != nil {
		return "", err
	}
	return NormalizeMimeType(mt.String()), nil
}

// NormalizeMimeType lowercases a media type and drops its parameters.
func NormalizeMimeType(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if mediaType, _, err := mime.ParseMediaType(raw); err == nil {
		return mediaType
	}
	if i := strings.IndexByte(raw, ';'); i >= 0 {
		raw = raw[:i]
	}
	return strings.ToLower(strings.TrimSpace(raw))
}
