package workers

import (
	"context"
	"log"
	"strings"
	"time"

	"trackhub-backend/internal/cache"
	"trackhub-backend/internal/storage"
)

const lastSeenKeyPrefix = "thb:integration:last_seen:"

// KeyeventWorker listens for Redis key-expiry events on the integration
// last-seen keys and marks the owning integration offline. Requires
// notify-keyspace-events to include "Ex"; when the subscription cannot be
// established the reconciler ticker remains the only offline path.
type KeyeventWorker struct {
	cache   cache.Client
	storage *storage.Storage
}

func NewKeyeventWorker(cacheClient cache.Client, storage *storage.Storage) *KeyeventWorker {
	return &KeyeventWorker{cache: cacheClient, storage: storage}
}

func (w *KeyeventWorker) Start(ctx context.Context) error {
	pubsub, err := w.cache.SubscribeExpired()
	if err != nil {
		return err
	}

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					log.Println("WARN Keyevent subscription closed")
					return
				}
				w.handleExpiry(msg.Payload)
			}
		}
	}()

	log.Println("INFO Redis keyevent worker started")
	return nil
}

func (w *KeyeventWorker) handleExpiry(key string) {
	if !strings.HasPrefix(key, lastSeenKeyPrefix) {
		return
	}
	integrationID := strings.TrimPrefix(key, lastSeenKeyPrefix)

	if err := w.storage.MarkIntegrationOffline(context.Background(), integrationID, time.Now()); err != nil {
		log.Printf("ERROR Keyevent mark offline error for %s: %v", integrationID, err)
		return
	}
	if err := w.cache.SetStatus(integrationID, "offline"); err != nil {
		log.Printf("WARN Keyevent cache status error for %s: %v", integrationID, err)
	}
	log.Printf("INFO Integration offline (heartbeat expired): %s", integrationID)
}
