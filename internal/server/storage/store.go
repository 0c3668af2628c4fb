package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"suratadmin/internal/core"
)

var ErrNotFound = errors.New("format surat not found")

// Template is a "format surat" as reported by the backing store.
type Template struct {
	ID             string    `json:"id"`
	Name           string    `json:"nama"`
	DownloadURL    string    `json:"downloadUrl"`
	TotalDownloads int64     `json:"totalDownloads"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// DownloadStatPoint is one month of download counts for a template.
type DownloadStatPoint struct {
	Month         string  `json:"month"`
	Year          int     `json:"year"`
	DownloadCount float64 `json:"downloadCount"`
}

// RoundedCount is the count as it may be displayed: whole units only.
func (p DownloadStatPoint) RoundedCount() int64 {
	return int64(math.Round(p.DownloadCount))
}

// Store is the templates backing store. It is the sole source of truth;
// callers never cache beyond their working set.
type Store interface {
	ListAll(ctx context.Context) ([]Template, error)
	Upload(ctx context.Context, name string, file *core.File) (*Template, error)
	Remove(ctx context.Context, id string) error
	GetStats(ctx context.Context, id string) ([]DownloadStatPoint, error)
	RecordDownload(ctx context.Context, id string) error
}

// StoreError is a non-success response from the backing store.
type StoreError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s failed with status %d: %s", e.Op, e.StatusCode, e.Message)
}

func (e *StoreError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

type tokenKey struct{}

// WithToken attaches the caller's bearer token to ctx so store requests are
// made on the caller's behalf.
func WithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFrom returns the bearer token attached by WithToken, if any.
func TokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}
