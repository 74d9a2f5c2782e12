package ingest

import (
	"context"
	"log"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/vmihailenco/msgpack/v5"

	"trackhub-backend/internal/hub"
	"trackhub-backend/internal/models"
	"trackhub-backend/internal/services"
	"trackhub-backend/internal/storage"
)

// ActivityConsumer persists activity events published by the API and
// fans them out to connected board clients.
type ActivityConsumer struct {
	js      nats.JetStreamContext
	storage *storage.Storage
	hub     *hub.Hub
	slack   *services.SlackClient
	sub     *nats.Subscription
}

func NewActivityConsumer(js nats.JetStreamContext, storage *storage.Storage, boardHub *hub.Hub, slack *services.SlackClient) *ActivityConsumer {
	return &ActivityConsumer{js: js, storage: storage, hub: boardHub, slack: slack}
}

// Start begins consuming activity events from JetStream.
func (c *ActivityConsumer) Start(ctx context.Context) error {
	sub, err := c.js.PullSubscribe(
		"track.*.events.>",
		"activity-processor",
		nats.ManualAck(),
		nats.AckWait(30*time.Second),
		nats.MaxDeliver(3),
		nats.MaxAckPending(1000),
	)
	if err != nil {
		return err
	}
	c.sub = sub

	go consumeLoop(ctx, c.sub, c.processMessage)
	log.Println("INFO Activity consumer started")
	return nil
}

func (c *ActivityConsumer) processMessage(msg *nats.Msg) error {
	var event models.EventMsg
	if err := msgpack.Unmarshal(msg.Data, &event); err != nil {
		log.Printf("ERROR Unmarshal error (terminating): %v", err)
		msg.Term()
		return nil
	}

	record := &models.ActivityEvent{
		OrgID:     event.OrgID,
		ProjectID: event.ProjectID,
		ActorID:   event.ActorID,
		Kind:      event.Kind,
		EntityID:  event.EntityID,
		Summary:   event.Summary,
		CreatedAt: time.UnixMilli(event.TS),
	}
	if err := c.storage.CreateActivityEvent(context.Background(), record); err != nil {
		return err
	}

	c.hub.BroadcastOrg(event.OrgID, record)

	if event.Critical && c.slack != nil {
		if err := c.slack.SendActivityAlert(record); err != nil {
			log.Printf("WARN Slack notification error: %v", err)
		}
	}

	return nil
}

// Stop gracefully stops the consumer.
func (c *ActivityConsumer) Stop() error {
	if c.sub != nil {
		return c.sub.Drain()
	}
	return nil
}

// consumeLoop fetches in adaptively sized batches: it grows the batch
// while fetches come back full and shrinks it while they come back
// empty.
func consumeLoop(ctx context.Context, sub *nats.Subscription, process func(*nats.Msg) error) {
	fetchSize := 64
	minFetch := 8
	maxFetch := 512
	fullCount := 0
	emptyCount := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := sub.Fetch(fetchSize, nats.MaxWait(5*time.Second))
		if err != nil {
			if err != nats.ErrTimeout {
				log.Printf("WARN Fetch error: %v", err)
			}
			emptyCount++
			fullCount = 0
			if emptyCount >= 3 && fetchSize > minFetch {
				fetchSize /= 2
				if fetchSize < minFetch {
					fetchSize = minFetch
				}
				emptyCount = 0
			}
			continue
		}

		if len(msgs) == 0 {
			emptyCount++
			fullCount = 0
			if emptyCount >= 3 && fetchSize > minFetch {
				fetchSize /= 2
				if fetchSize < minFetch {
					fetchSize = minFetch
				}
				emptyCount = 0
			}
			continue
		}

		if len(msgs) == fetchSize {
			fullCount++
			emptyCount = 0
			if fullCount >= 3 && fetchSize < maxFetch {
				fetchSize *= 2
				if fetchSize > maxFetch {
					fetchSize = maxFetch
				}
				fullCount = 0
			}
		} else {
			fullCount = 0
			emptyCount = 0
		}

		for _, msg := range msgs {
			if err := process(msg); err != nil {
				log.Printf("WARN Process error: %v", err)
				msg.NakWithDelay(5 * time.Second)
				continue
			}
			msg.Ack()
		}
	}
}
