package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"suratadmin/internal/server/storage"
)

// analyticsState is the statistics panel. seq identifies the latest fetch so
// that late results for a replaced or cleared selection are dropped.
type analyticsState struct {
	selectedID string
	points     []storage.DownloadStatPoint
	loading    bool
	seq        uint64
}

func (a *analyticsState) clear() {
	a.selectedID = ""
	a.points = nil
	a.loading = false
	a.seq++
}

// ShowStats selects a template for the analytics panel and loads its
// monthly download counts. When the store has no history, a single point
// for the current month carries the template's total downloads. On failure
// the points already shown are kept.
func (c *Console) ShowStats(ctx context.Context, id string) error {
	c.mu.Lock()
	if err := c.readyLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.analytics.selectedID = id
	c.mu.Unlock()

	return c.loadStats(ctx, id)
}

func (c *Console) loadStats(ctx context.Context, id string) error {
	c.mu.Lock()
	c.analytics.seq++
	seq := c.analytics.seq
	c.analytics.loading = true
	c.mu.Unlock()

	points, err := c.store.GetStats(c.storeCtx(ctx), id)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.analytics.seq != seq || c.analytics.selectedID != id {
		c.mu.Unlock()
		return nil
	}
	c.analytics.loading = false
	if err != nil {
		c.mu.Unlock()
		c.recorder.ObserveWorkflow(WorkflowStats, OutcomeFailure)
		c.logger.Error("failed to load download stats", zap.String("id", id), zap.Error(err))
		c.notifyFailure(titleStatsFailed, msgStatsFailed, err)
		return fmt.Errorf("get stats for %s: %w", id, err)
	}
	if len(points) == 0 {
		points = []storage.DownloadStatPoint{c.currentMonthPointLocked(id)}
	}
	c.analytics.points = points
	c.mu.Unlock()

	c.recorder.ObserveWorkflow(WorkflowStats, OutcomeSuccess)
	return nil
}

// currentMonthPointLocked stands in for an empty history: this month, with
// the template's total from the loaded collection (0 if it is not loaded).
func (c *Console) currentMonthPointLocked(id string) storage.DownloadStatPoint {
	var total int64
	if t, ok := c.list.Find(id); ok {
		total = t.TotalDownloads
	}
	now := c.now()
	return storage.DownloadStatPoint{
		Month:         c.monthName(now.Month()),
		Year:          now.Year(),
		DownloadCount: float64(total),
	}
}

// SelectedStats returns the analytics selection and a copy of its points.
func (c *Console) SelectedStats() (string, []storage.DownloadStatPoint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.analytics.selectedID, append([]storage.DownloadStatPoint(nil), c.analytics.points...)
}

// AnalyticsView returns the analytics panel alone.
func (c *Console) AnalyticsView() AnalyticsView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.analyticsViewLocked()
}

func (c *Console) analyticsViewLocked() AnalyticsView {
	a := c.analytics
	v := AnalyticsView{
		SelectedID: a.selectedID,
		Loading:    a.loading,
		Points:     make([]StatPointView, 0, len(a.points)),
	}
	if a.selectedID == "" {
		return v
	}
	if t, ok := c.list.Find(a.selectedID); ok {
		v.Name = t.Name
	}
	for _, p := range a.points {
		v.Points = append(v.Points, StatPointView{
			Month:         p.Month,
			Year:          p.Year,
			DownloadCount: p.RoundedCount(),
		})
	}
	if len(v.Points) == 0 && !a.loading {
		v.EmptyMessage = emptyNoStatsRecord
	}
	return v
}
