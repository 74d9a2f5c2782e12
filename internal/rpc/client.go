package rpc

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/vmihailenco/msgpack/v5"

	"trackhub-backend/internal/models"
)

var (
	ErrAgentOffline = errors.New("integration agent is offline")
	ErrTimeout      = errors.New("request timed out")
)

type Client struct {
	nc *nats.Conn
}

func NewClient(nc *nats.Conn) *Client {
	return &Client{nc: nc}
}

// Sync asks an integration agent to re-sync its source and waits for the
// result.
func (c *Client) Sync(integrationID string, timeoutMS int) (*models.SyncResponse, error) {
	req := models.SyncRequest{
		Action:    "sync",
		RequestID: uuid.New().String(),
		TimeoutMS: timeoutMS,
	}

	payload, err := msgpack.Marshal(&req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	timeout := time.Duration(timeoutMS)*time.Millisecond + 5*time.Second
	if timeoutMS <= 0 {
		timeout = 15 * time.Second
	}
	if timeout > 125*time.Second {
		timeout = 125 * time.Second
	}

	subject := fmt.Sprintf("track.%s.rpc", integrationID)
	msg, err := c.nc.Request(subject, payload, timeout)
	if err != nil {
		if errors.Is(err, nats.ErrNoResponders) {
			return nil, ErrAgentOffline
		}
		if errors.Is(err, nats.ErrTimeout) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("request: %w", err)
	}

	var resp models.SyncResponse
	if err := msgpack.Unmarshal(msg.Data, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return &resp, nil
}
