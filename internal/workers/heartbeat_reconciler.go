package workers

import (
	"context"
	"log"
	"time"

	"trackhub-backend/internal/cache"
	"trackhub-backend/internal/storage"
)

// HeartbeatReconciler is the fallback sweep for deployments where Redis
// keyevent notifications are disabled. Every minute it compares each
// online integration's cached last-seen timestamp against the staleness
// threshold and marks overdue ones offline.
type HeartbeatReconciler struct {
	cache    cache.Client
	storage  *storage.Storage
	maxAge   time.Duration
	interval time.Duration
}

func NewHeartbeatReconciler(cacheClient cache.Client, storage *storage.Storage) *HeartbeatReconciler {
	return &HeartbeatReconciler{
		cache:    cacheClient,
		storage:  storage,
		maxAge:   90 * time.Second,
		interval: 60 * time.Second,
	}
}

func (r *HeartbeatReconciler) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.sweep(ctx)
			}
		}
	}()
	log.Println("INFO Heartbeat reconciler started")
}

func (r *HeartbeatReconciler) sweep(ctx context.Context) {
	ids, err := r.storage.ListIntegrationIDs(ctx)
	if err != nil {
		log.Printf("ERROR Reconciler list integrations error: %v", err)
		return
	}

	cutoff := time.Now().Add(-r.maxAge).UnixMilli()
	for _, id := range ids {
		lastSeen, err := r.cache.GetLastSeen(id)
		if err != nil {
			// Key missing or Redis unavailable; the DB sweep below
			// still covers the missing-key case.
			continue
		}
		if lastSeen >= cutoff {
			continue
		}
		if err := r.storage.MarkIntegrationOffline(ctx, id, time.UnixMilli(lastSeen)); err != nil {
			log.Printf("ERROR Reconciler mark offline error for %s: %v", id, err)
			continue
		}
		log.Printf("INFO Integration offline (reconciled): %s", id)
	}

	if err := r.storage.MarkStaleIntegrationsOffline(ctx, r.maxAge); err != nil {
		log.Printf("ERROR Reconciler stale sweep error: %v", err)
	}
}
