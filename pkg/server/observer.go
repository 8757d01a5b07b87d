package server

import (
	"context"
	"time"

	"github.com/RadteamBaoDA/ai4team-sub001/pkg/audit"
	"github.com/RadteamBaoDA/ai4team-sub001/pkg/guard"
	"github.com/RadteamBaoDA/ai4team-sub001/pkg/guard/cache"
	"github.com/RadteamBaoDA/ai4team-sub001/pkg/pipeline"
	"github.com/RadteamBaoDA/ai4team-sub001/pkg/telemetry/metrics"
)

// observer bridges pipeline events to metrics and the audit recorder.
// Either collaborator may be nil. Recording is asynchronous so the
// pipeline's hot path never waits on SQLite.
type observer struct {
	collector *metrics.Collector
	recorder  *audit.Recorder
	store     cache.Store
}

func (o *observer) ScanCompleted(direction guard.Direction, cached, allowed bool, elapsed time.Duration) {
	if o.collector == nil {
		return
	}
	o.collector.RecordScan(string(direction), cached, allowed, elapsed)
	o.collector.SetCacheEntries(o.store.Stats().Entries)
}

func (o *observer) RequestBlocked(ctx context.Context, req *pipeline.Request, blocked *pipeline.BlockedError) {
	if o.collector != nil {
		o.collector.RecordBlock(string(blocked.Direction))
	}
	if o.recorder == nil {
		return
	}
	// The hash covers the prompt that produced the block. Generated text
	// is never retained, not even as a digest of its own.
	o.recorder.Record(audit.Event{
		Direction:      string(blocked.Direction),
		ClientID:       req.ClientID,
		Path:           req.Path,
		ContentHash:    audit.HashContent(req.Prompt),
		Message:        blocked.Message,
		FailedScanners: blocked.Verdict.FailedScanners(),
	})
}
