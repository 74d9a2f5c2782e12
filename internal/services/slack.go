package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"trackhub-backend/internal/models"
)

type SlackClient struct {
	webhookURL string
	client     *http.Client
}

type SlackMessage struct {
	Blocks []Block `json:"blocks"`
}

type Block struct {
	Type     string        `json:"type"`
	Text     *Text         `json:"text,omitempty"`
	Elements []interface{} `json:"elements,omitempty"`
	Fields   []*Text       `json:"fields,omitempty"`
}

type Text struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

func NewSlackClient() *SlackClient {
	webhookURL := os.Getenv("SLACK_WEBHOOK_URL")
	return &SlackClient{
		webhookURL: webhookURL,
		client:     &http.Client{},
	}
}

// SendActivityAlert posts a critical activity event to the configured
// Slack webhook. A missing webhook URL is not an error.
func (c *SlackClient) SendActivityAlert(event *models.ActivityEvent) error {
	if c.webhookURL == "" {
		fmt.Println("No SLACK_WEBHOOK_URL configured, skipping alert")
		return nil
	}

	message := c.buildActivityMessage(event)
	return c.sendMessage(message)
}

func (c *SlackClient) buildActivityMessage(event *models.ActivityEvent) SlackMessage {
	emoji := "🚨"
	if event.Kind == models.ActivityTicketCreated {
		emoji = "🎫"
	}

	projectText := "—"
	if event.ProjectID != nil {
		projectText = *event.ProjectID
	}

	return SlackMessage{
		Blocks: []Block{
			{
				Type: "header",
				Text: &Text{
					Type:  "plain_text",
					Text:  fmt.Sprintf("%s %s", emoji, event.Summary),
					Emoji: true,
				},
			},
			{
				Type: "section",
				Fields: []*Text{
					{Type: "mrkdwn", Text: "*Event:*\n" + event.Kind},
					{Type: "mrkdwn", Text: "*Project:*\n" + projectText},
					{Type: "mrkdwn", Text: "*Entity:*\n" + event.EntityID},
					{Type: "mrkdwn", Text: "*Actor:*\n" + event.ActorID},
				},
			},
		},
	}
}

func (c *SlackClient) sendMessage(message SlackMessage) error {
	reqBody, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	resp, err := c.client.Post(c.webhookURL, "application/json", bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("post error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("slack error: %s", string(body))
	}

	return nil
}
