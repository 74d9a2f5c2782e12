package events

import (
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/vmihailenco/msgpack/v5"

	"trackhub-backend/internal/models"
)

// Publisher sends activity events onto JetStream. Publishing is best
// effort: a dropped event only loses a feed entry, never request state.
type Publisher struct {
	js nats.JetStreamContext
}

func NewPublisher(js nats.JetStreamContext) *Publisher {
	return &Publisher{js: js}
}

func (p *Publisher) Publish(orgID, actorID, kind, entityID, summary string, projectID *string) {
	p.publish(&models.EventMsg{
		V:         1,
		TS:        time.Now().UnixMilli(),
		OrgID:     orgID,
		ProjectID: projectID,
		ActorID:   actorID,
		Kind:      kind,
		EntityID:  entityID,
		Summary:   summary,
	})
}

// PublishCritical flags the event for Slack escalation by the activity
// consumer.
func (p *Publisher) PublishCritical(orgID, actorID, kind, entityID, summary string, projectID *string) {
	p.publish(&models.EventMsg{
		V:         1,
		TS:        time.Now().UnixMilli(),
		OrgID:     orgID,
		ProjectID: projectID,
		ActorID:   actorID,
		Kind:      kind,
		EntityID:  entityID,
		Summary:   summary,
		Critical:  true,
	})
}

func (p *Publisher) publish(event *models.EventMsg) {
	payload, err := msgpack.Marshal(event)
	if err != nil {
		log.Printf("WARN events: marshal %s: %v", event.Kind, err)
		return
	}

	subject := fmt.Sprintf("track.%s.events.%s", event.OrgID, event.Kind)
	if _, err := p.js.PublishAsync(subject, payload); err != nil {
		log.Printf("WARN events: publish %s: %v", subject, err)
	}
}
