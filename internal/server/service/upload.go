package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"suratadmin/internal/core"
	"suratadmin/internal/server/storage"
)

// SetFormName records the name typed into the upload form.
func (c *Console) SetFormName(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.readyLocked(); err != nil {
		return err
	}
	c.form.name = name
	return nil
}

// SelectFile records the file chosen in the upload form. A nil file clears
// the selection.
func (c *Console) SelectFile(file *core.File) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.readyLocked(); err != nil {
		return err
	}
	c.form.fileName = ""
	if file != nil {
		c.form.fileName = file.Name
	}
	return nil
}

// SubmitUpload validates and uploads a candidate, then reloads the
// collection and resets the form.
//
// A candidate without a file is ignored: it returns (nil, nil) and nothing
// is sent. Validation failures are returned as core.ValidationErrors and
// never reach the store. Store failures are notified and leave the
// collection and form untouched.
func (c *Console) SubmitUpload(ctx context.Context, cand core.UploadCandidate) (*storage.Template, error) {
	c.mu.Lock()
	if err := c.readyLocked(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.mu.Unlock()

	if cand.File == nil {
		return nil, nil
	}
	if errs := core.ValidateCandidate(cand); errs != nil {
		c.recorder.ObserveWorkflow(WorkflowUpload, OutcomeRejected)
		return nil, errs
	}

	c.mu.Lock()
	if c.uploading {
		c.mu.Unlock()
		return nil, ErrUploadInProgress
	}
	c.uploading = true
	c.mu.Unlock()

	name := strings.TrimSpace(cand.Name)
	created, err := c.store.Upload(c.storeCtx(ctx), name, cand.File)
	if err != nil {
		c.mu.Lock()
		c.uploading = false
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return nil, ErrClosed
		}

		c.recorder.ObserveWorkflow(WorkflowUpload, OutcomeFailure)
		c.logger.Error("failed to upload template",
			zap.String("name", name),
			zap.String("file", cand.File.Name),
			zap.Error(err),
		)
		c.notifyFailure(titleUploadFailed, msgUploadFailed, err)
		return nil, fmt.Errorf("upload template: %w", err)
	}

	seq, list, listErr := c.fetchAll(ctx)

	c.mu.Lock()
	c.uploading = false
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.loading = false
	if listErr == nil {
		c.list.Apply(seq, list)
	}
	c.form = formState{}
	c.mu.Unlock()

	if listErr != nil {
		c.logger.Error("failed to reload templates after upload", zap.Error(listErr))
		c.notifyFailure(titleLoadFailed, msgLoadFailed, listErr)
	}

	c.recorder.ObserveWorkflow(WorkflowUpload, OutcomeSuccess)
	c.logger.Info("template uploaded",
		zap.String("id", created.ID),
		zap.String("name", created.Name),
		zap.Int64("size", cand.File.Size),
	)
	c.notify(NotifySuccess, titleUploaded, msgUploaded)
	return created, nil
}

// Uploading reports whether a submission is in flight.
func (c *Console) Uploading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uploading
}
