package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Delete removes a template from the store and reloads the collection.
// Each id may have one deletion in flight; a second request for the same
// id returns ErrDeletionInProgress. Other ids are independent.
//
// If the analytics panel shows the deleted template, its selection and
// points are cleared together with the collection update.
func (c *Console) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	if err := c.readyLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if _, busy := c.deleting[id]; busy {
		c.mu.Unlock()
		c.recorder.ObserveWorkflow(WorkflowDelete, OutcomeRejected)
		return ErrDeletionInProgress
	}
	c.deleting[id] = struct{}{}
	c.mu.Unlock()

	if err := c.store.Remove(c.storeCtx(ctx), id); err != nil {
		c.mu.Lock()
		delete(c.deleting, id)
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return ErrClosed
		}

		c.recorder.ObserveWorkflow(WorkflowDelete, OutcomeFailure)
		c.logger.Error("failed to delete template", zap.String("id", id), zap.Error(err))
		c.notifyFailure(titleDeleteFailed, msgDeleteFailed, err)
		return fmt.Errorf("delete template %s: %w", id, err)
	}

	seq, list, listErr := c.fetchAll(ctx)

	c.mu.Lock()
	delete(c.deleting, id)
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if listErr == nil {
		c.list.Apply(seq, list)
	}
	if c.analytics.selectedID == id {
		c.analytics.clear()
	}
	c.mu.Unlock()

	if listErr != nil {
		c.logger.Error("failed to reload templates after delete", zap.Error(listErr))
		c.notifyFailure(titleLoadFailed, msgLoadFailed, listErr)
	}

	c.recorder.ObserveWorkflow(WorkflowDelete, OutcomeSuccess)
	c.logger.Info("template deleted", zap.String("id", id))
	c.notify(NotifySuccess, titleDeleted, msgDeleted)
	return nil
}
