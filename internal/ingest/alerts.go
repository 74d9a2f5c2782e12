package ingest

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/vmihailenco/msgpack/v5"

	"trackhub-backend/internal/models"
)

// alertStore is the slice of storage the alerts consumer touches.
type alertStore interface {
	GetIntegration(ctx context.Context, id string) (*models.Integration, error)
	CreateTicket(ctx context.Context, orgID, projectID, reporterID string, input models.CreateTicketInput) (*models.Ticket, error)
}

// alertPublisher feeds the automated ticket back into the activity
// pipeline so it reaches the feed, the board, and Slack.
type alertPublisher interface {
	PublishCritical(orgID, actorID, kind, entityID, summary string, projectID *string)
}

// AlertsConsumer turns integration alerts into automated tickets in the
// integration's project.
type AlertsConsumer struct {
	js      nats.JetStreamContext
	storage alertStore
	events  alertPublisher
	sub     *nats.Subscription
}

func NewAlertsConsumer(js nats.JetStreamContext, storage alertStore, events alertPublisher) *AlertsConsumer {
	return &AlertsConsumer{js: js, storage: storage, events: events}
}

// Start begins consuming integration alerts from JetStream.
func (c *AlertsConsumer) Start(ctx context.Context) error {
	sub, err := c.js.PullSubscribe(
		"track.*.ingest.>",
		"alerts-processor",
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
	log.Println("INFO Alerts consumer started")
	return nil
}

func (c *AlertsConsumer) processMessage(msg *nats.Msg) error {
	var alert models.AlertMsg
	if err := msgpack.Unmarshal(msg.Data, &alert); err != nil {
		log.Printf("ERROR Unmarshal error (terminating): %v", err)
		msg.Term()
		return nil
	}

	log.Printf("INFO Alert received: integration=%s severity=%s", alert.IntegrationID, alert.Severity)

	integration, err := c.storage.GetIntegration(context.Background(), alert.IntegrationID)
	if err != nil {
		return err
	}
	if integration == nil {
		// Unknown publisher; the credential should not have allowed
		// this subject. Terminate rather than redeliver.
		log.Printf("WARN Alert from unknown integration %s (terminating)", alert.IntegrationID)
		msg.Term()
		return nil
	}

	title := strings.TrimSpace(alert.Title)
	if title == "" {
		title = "Alert from " + integration.Name
	}
	body := strings.ReplaceAll(alert.Body, "\x00", "")

	ticket, err := c.storage.CreateTicket(
		context.Background(),
		integration.OrgID,
		integration.ProjectID,
		"",
		models.CreateTicketInput{
			Title:       title,
			Description: body,
			Status:      models.TicketStatusTodo,
			Priority:    alert.Priority(),
		},
	)
	if err != nil {
		return err
	}

	// System event, no acting user. Critical so the activity consumer
	// escalates it to Slack alongside the feed and board broadcast.
	projectID := integration.ProjectID
	c.events.PublishCritical(
		integration.OrgID,
		"",
		models.ActivityTicketCreated,
		ticket.ID,
		ticket.Key+" "+title+" (via "+integration.Name+")",
		&projectID,
	)

	log.Printf("INFO Automated ticket created: key=%s integration=%s", ticket.Key, alert.IntegrationID)
	return nil
}

// Stop gracefully stops the consumer.
func (c *AlertsConsumer) Stop() error {
	if c.sub != nil {
		return c.sub.Drain()
	}
	return nil
}
