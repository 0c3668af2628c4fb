package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"suratadmin/internal/server/storage"
)

// Opener retrieves a template's file for the user.
type Opener interface {
	Open(ctx context.Context, url string) error
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, url string) error

func (f OpenerFunc) Open(ctx context.Context, url string) error {
	return f(ctx, url)
}

// Download records a download event and opens the template's file.
//
// Tracking is best-effort: a failure is logged and the file is opened
// anyway. If the analytics panel shows this template, its statistics are
// reloaded afterwards.
func (c *Console) Download(ctx context.Context, t storage.Template, opener Opener) error {
	c.mu.Lock()
	if err := c.readyLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	if opener == nil {
		return errors.New("download: no opener")
	}

	trackCtx, cancel := context.WithTimeout(c.storeCtx(ctx), c.trackTimeout)
	err := c.store.RecordDownload(trackCtx, t.ID)
	cancel()
	if err != nil {
		c.recorder.ObserveWorkflow(WorkflowTracking, OutcomeFailure)
		c.logger.Warn("failed to record download",
			zap.String("id", t.ID),
			zap.Error(err),
		)
	} else {
		c.recorder.ObserveWorkflow(WorkflowTracking, OutcomeSuccess)
	}

	openErr := opener.Open(ctx, t.DownloadURL)

	c.mu.Lock()
	selected := !c.closed && c.analytics.selectedID == t.ID
	c.mu.Unlock()
	if selected {
		// Failures here are notified by loadStats.
		_ = c.loadStats(ctx, t.ID)
	}

	if openErr != nil {
		c.recorder.ObserveWorkflow(WorkflowDownload, OutcomeFailure)
		return fmt.Errorf("open %s: %w", t.DownloadURL, openErr)
	}
	c.recorder.ObserveWorkflow(WorkflowDownload, OutcomeSuccess)
	return nil
}
