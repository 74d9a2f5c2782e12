package ingest

import (
	"context"
	"log"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/vmihailenco/msgpack/v5"

	"trackhub-backend/internal/cache"
	"trackhub-backend/internal/models"
	"trackhub-backend/internal/storage"
)

const heartbeatTTLSeconds = 90

// KVWatcher tracks integration agent presence through the INTEGRATIONS
// KV bucket and mirrors last-seen into Redis for the offline workers.
type KVWatcher struct {
	kv      nats.KeyValue
	storage *storage.Storage
	cache   cache.Client
	watcher nats.KeyWatcher
}

func NewKVWatcher(kv nats.KeyValue, storage *storage.Storage, cacheClient cache.Client) *KVWatcher {
	return &KVWatcher{kv: kv, storage: storage, cache: cacheClient}
}

// Start begins watching the INTEGRATIONS KV bucket.
func (w *KVWatcher) Start(ctx context.Context) error {
	watcher, err := w.kv.WatchAll()
	if err != nil {
		return err
	}
	w.watcher = watcher

	go w.watchLoop(ctx)
	go w.reconcileLoop(ctx)

	log.Println("INFO KV watcher started")
	return nil
}

func (w *KVWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case entry := <-w.watcher.Updates():
			if entry == nil {
				continue
			}
			w.handleEntry(entry)
		}
	}
}

func (w *KVWatcher) handleEntry(entry nats.KeyValueEntry) {
	integrationID := entry.Key()

	switch entry.Operation() {
	case nats.KeyValuePut:
		var hb models.HeartbeatMsg
		if err := msgpack.Unmarshal(entry.Value(), &hb); err != nil {
			log.Printf("ERROR KV unmarshal error for %s: %v", integrationID, err)
			return
		}

		integration, err := w.storage.GetIntegration(context.Background(), integrationID)
		if err != nil {
			log.Printf("ERROR KV lookup integration error: %v", err)
			return
		}
		if integration == nil {
			// Heartbeat for an id that never enrolled; ignore.
			log.Printf("WARN Heartbeat from unknown integration %s", integrationID)
			return
		}

		now := time.Now()
		integration.Hostname = hb.Hostname
		integration.Status = "online"
		integration.LastSeenAt = &now
		if err := w.storage.UpsertIntegration(context.Background(), integration); err != nil {
			log.Printf("ERROR KV upsert integration error: %v", err)
			return
		}

		if err := w.cache.SetLastSeen(integrationID, now.UnixMilli(), heartbeatTTLSeconds); err != nil {
			log.Printf("WARN KV cache last_seen error for %s: %v", integrationID, err)
		}
		if err := w.cache.SetStatus(integrationID, "online"); err != nil {
			log.Printf("WARN KV cache status error for %s: %v", integrationID, err)
		}

		log.Printf("INFO Integration heartbeat: %s (%s) uptime=%ds", integrationID, hb.Hostname, hb.Uptime)

	case nats.KeyValueDelete:
		if err := w.storage.MarkIntegrationOffline(context.Background(), integrationID, time.Now()); err != nil {
			log.Printf("ERROR KV delete integration error: %v", err)
			return
		}
		log.Printf("INFO Integration offline (graceful): %s", integrationID)

	case nats.KeyValuePurge:
		log.Printf("INFO Integration purged: %s", integrationID)
	}
}

// reconcileLoop periodically marks stale integrations as offline (TTL
// fallback).
func (w *KVWatcher) reconcileLoop(ctx context.Context) {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.storage.MarkStaleIntegrationsOffline(ctx, 90*time.Second); err != nil {
				log.Printf("ERROR Reconcile error: %v", err)
			}
		}
	}
}

// Stop gracefully stops the watcher.
func (w *KVWatcher) Stop() error {
	if w.watcher != nil {
		return w.watcher.Stop()
	}
	return nil
}
