package core

import (
	"fmt"
	"strings"
)

// MaxFileSize is the largest accepted template file (5 MiB).
const MaxFileSize int64 = 5 * 1024 * 1024

// AcceptedMimeTypes lists the document types a template may be uploaded as.
var AcceptedMimeTypes = []string{
	"application/msword", // .doc
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document", // .docx
	"application/pdf", // .pdf
}

// Form field names, matching the multipart fields the store expects.
const (
	FieldName = "nama"
	FieldFile = "file"
)

type ValidationCode int

const (
	UnsupportedFormat ValidationCode = iota + 1
	FileTooLarge
	NameRequired
	FileRequired
)

func (c ValidationCode) String() string {
	switch c {
	case UnsupportedFormat:
		return "UnsupportedFormat"
	case FileTooLarge:
		return "FileTooLarge"
	case NameRequired:
		return "NameRequired"
	case FileRequired:
		return "FileRequired"
	default:
		return fmt.Sprintf("ValidationCode(%d)", int(c))
	}
}

// Message is the text shown next to the offending form field.
func (c ValidationCode) Message() string {
	switch c {
	case UnsupportedFormat:
		return "Format file harus .doc, .docx, atau .pdf"
	case FileTooLarge:
		return "Ukuran file maksimal 5MB"
	case NameRequired:
		return "Nama format surat harus diisi"
	case FileRequired:
		return "File harus dipilih"
	default:
		return "Input tidak valid"
	}
}

// ValidationError is a local, pre-submission failure bound to a form field.
type ValidationError struct {
	Field string
	Code  ValidationCode
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Code)
}

// ValidationErrors collects the field failures of one form submission.
type ValidationErrors []*ValidationError

func (errs ValidationErrors) Error() string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, "; ")
}

// Fields maps each failing field to its user-facing message.
func (errs ValidationErrors) Fields() map[string]string {
	out := make(map[string]string, len(errs))
	for _, e := range errs {
		if _, seen := out[e.Field]; !seen {
			out[e.Field] = e.Code.Message()
		}
	}
	return out
}

// Validate reports whether a file is acceptable for upload. The MIME type is
// checked before the size; the first failure wins.
func Validate(meta FileMeta) error {
	if !isAcceptedMimeType(meta.MimeType) {
		return &ValidationError{Field: FieldFile, Code: UnsupportedFormat}
	}
	if meta.Size > MaxFileSize {
		return &ValidationError{Field: FieldFile, Code: FileTooLarge}
	}
	return nil
}

// ValidateCandidate runs the whole upload form check: name, file presence,
// then the file policy. It returns nil when the candidate can be submitted.
func ValidateCandidate(c UploadCandidate) ValidationErrors {
	var errs ValidationErrors
	if strings.TrimSpace(c.Name) == "" {
		errs = append(errs, &ValidationError{Field: FieldName, Code: NameRequired})
	}
	if c.File == nil {
		errs = append(errs, &ValidationError{Field: FieldFile, Code: FileRequired})
	} else if err := Validate(c.File.FileMeta); err != nil {
		errs = append(errs, err.(*ValidationError))
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func isAcceptedMimeType(mimeType string) bool {
	for _, accepted := range AcceptedMimeTypes {
		if mimeType == accepted {
			return true
		}
	}
	return false
}
