package api

import (
	"context"
	"errors"
	"html"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"suratadmin/internal/core"
	"suratadmin/internal/server/notify"
	"suratadmin/internal/server/service"
	"suratadmin/internal/server/session"
	"suratadmin/internal/server/storage"
)

// Handler contains the HTTP handlers for the admin console API.
type Handler struct {
	registry  *session.Registry
	inbox     notify.Inbox
	logger    *zap.Logger
	sanitizer *bluemonday.Policy
}

// NewHandler creates a handler serving consoles from registry.
func NewHandler(registry *session.Registry, inbox notify.Inbox, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		registry:  registry,
		inbox:     inbox,
		logger:    logger,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// console resolves the caller's console. ok is false when the response has
// already been written.
func (h *Handler) console(c echo.Context) (*service.Console, bool, error) {
	p := principalFrom(c)
	if p == nil {
		return nil, false, c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	console, active, err := h.registry.Console(c.Request().Context(), p)
	if err != nil {
		return nil, false, mapServiceError(c, err)
	}
	if !active {
		return nil, false, c.NoContent(http.StatusNoContent)
	}
	return console, true, nil
}

// HandleList handles GET /admin/surat.
// An optional "q" query parameter replaces the search text.
func (h *Handler) HandleList(c echo.Context) error {
	console, ok, err := h.console(c)
	if !ok {
		return err
	}

	if c.QueryParams().Has("q") {
		if err := console.SetQuery(c.QueryParam("q")); err != nil {
			return mapServiceError(c, err)
		}
	}
	return c.JSON(http.StatusOK, console.View())
}

// HandleRefresh handles POST /admin/surat/refresh.
func (h *Handler) HandleRefresh(c echo.Context) error {
	console, ok, err := h.console(c)
	if !ok {
		return err
	}

	// Store failures are reported through the notification inbox and the
	// previous collection stays in the view.
	err = console.Refresh(c.Request().Context())
	if errors.Is(err, service.ErrClosed) || errors.Is(err, service.ErrInactive) {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, console.View())
}

// HandleUpload handles POST /admin/surat.
// Accepts a multipart form with "nama" and "file" fields.
func (h *Handler) HandleUpload(c echo.Context) error {
	console, ok, err := h.console(c)
	if !ok {
		return err
	}

	name := h.cleanName(c.FormValue(core.FieldName))

	var file *core.File
	fileHeader, err := c.FormFile(core.FieldFile)
	switch {
	case err == nil:
		file, err = fileFromHeader(fileHeader)
		if err != nil {
			h.logger.Warn("failed to read uploaded file", zap.Error(err))
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "failed to read uploaded file"})
		}
	case errors.Is(err, http.ErrMissingFile):
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid multipart form"})
	}

	_ = console.SetFormName(name)
	_ = console.SelectFile(file)

	cand := core.UploadCandidate{Name: name, File: file}
	if file == nil {
		return mapServiceError(c, core.ValidateCandidate(cand))
	}

	created, err := console.SubmitUpload(c.Request().Context(), cand)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"data": created,
		"view": console.View(),
	})
}

// HandleDelete handles DELETE /admin/surat/:id.
func (h *Handler) HandleDelete(c echo.Context) error {
	console, ok, err := h.console(c)
	if !ok {
		return err
	}

	if err := console.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, console.View())
}

// HandleDownload handles GET /admin/surat/:id/download.
// Records the download and redirects to the stored file.
func (h *Handler) HandleDownload(c echo.Context) error {
	console, ok, err := h.console(c)
	if !ok {
		return err
	}

	tmpl, err := console.Lookup(c.Param("id"))
	if err != nil {
		return mapServiceError(c, err)
	}
	if tmpl.DownloadURL == "" {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "template has no file"})
	}

	var target string
	opener := service.OpenerFunc(func(_ context.Context, url string) error {
		target = url
		return nil
	})
	if err := console.Download(c.Request().Context(), tmpl, opener); err != nil {
		return mapServiceError(c, err)
	}
	return c.Redirect(http.StatusFound, target)
}

// HandleStats handles POST /admin/surat/:id/stats.
// Selects the template for the analytics panel.
func (h *Handler) HandleStats(c echo.Context) error {
	console, ok, err := h.console(c)
	if !ok {
		return err
	}

	if err := console.ShowStats(c.Request().Context(), c.Param("id")); err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, console.AnalyticsView())
}

// HandleNotifications handles GET /admin/notifications.
// Returns and clears the caller's pending notifications.
func (h *Handler) HandleNotifications(c echo.Context) error {
	p := principalFrom(c)
	if p == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	list, err := h.inbox.Drain(c.Request().Context(), p.ID)
	if err != nil {
		h.logger.Error("failed to drain notifications", zap.String("user_id", p.ID), zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "notifications unavailable"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": list})
}

// HandleDismissNotification handles DELETE /admin/notifications/:id.
func (h *Handler) HandleDismissNotification(c echo.Context) error {
	p := principalFrom(c)
	if p == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	found, err := h.inbox.Dismiss(c.Request().Context(), p.ID, c.Param("id"))
	if err != nil {
		h.logger.Error("failed to dismiss notification", zap.String("user_id", p.ID), zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "notifications unavailable"})
	}
	if !found {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "notification not found"})
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleHealth handles GET /health.
func (h *Handler) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"status":   "healthy",
		"consoles": h.registry.Len(),
	})
}

// cleanName strips markup from a submitted template name.
func (h *Handler) cleanName(raw string) string {
	return strings.TrimSpace(html.UnescapeString(h.sanitizer.Sanitize(raw)))
}

// fileFromHeader describes an uploaded part. Browsers that send no usable
// Content-Type get the type sniffed from the content.
func fileFromHeader(fh *multipart.FileHeader) (*core.File, error) {
	open := func() (io.ReadCloser, error) { return fh.Open() }

	mimeType := core.NormalizeMimeType(fh.Header.Get("Content-Type"))
	if mimeType == "" || mimeType == "application/octet-stream" {
		sniffed, err := core.SniffMimeType(open)
		if err != nil {
			return nil, err
		}
		mimeType = sniffed
	}

	return core.NewFile(core.FileMeta{
		Name:     fh.Filename,
		Size:     fh.Size,
		MimeType: mimeType,
	}, open), nil
}

// mapServiceError translates service-layer errors into appropriate HTTP responses.
func mapServiceError(c echo.Context, err error) error {
	var validation core.ValidationErrors
	var storeErr *storage.StoreError

	switch {
	case errors.As(err, &validation):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"error":  "validation failed",
			"fields": validation.Fields(),
		})
	case errors.Is(err, service.ErrInactive):
		return c.NoContent(http.StatusNoContent)
	case errors.Is(err, session.ErrInvalidToken):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid session"})
	case errors.Is(err, service.ErrClosed):
		return c.JSON(http.StatusGone, echo.Map{"error": "console closed, reload the page"})
	case errors.Is(err, service.ErrUploadInProgress):
		return c.JSON(http.StatusConflict, echo.Map{"error": "an upload is already in progress"})
	case errors.Is(err, service.ErrDeletionInProgress):
		return c.JSON(http.StatusConflict, echo.Map{"error": "template is already being deleted"})
	case errors.Is(err, service.ErrTemplateNotFound), errors.Is(err, storage.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "template not found"})
	case errors.As(err, &storeErr):
		return c.JSON(http.StatusBadGateway, echo.Map{"error": storeErr.Message})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
}
