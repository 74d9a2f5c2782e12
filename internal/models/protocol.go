package models

// EventMsg is the wire format for activity events on JetStream
// (track.<org_id>.events.<kind>).
type EventMsg struct {
	V         int     `msgpack:"v"`
	TS        int64   `msgpack:"ts"`
	OrgID     string  `msgpack:"org_id"`
	ProjectID *string `msgpack:"project_id,omitempty"`
	ActorID   string  `msgpack:"actor_id"`
	Kind      string  `msgpack:"kind"`
	EntityID  string  `msgpack:"entity_id"`
	Summary   string  `msgpack:"summary"`
	Critical  bool    `msgpack:"critical,omitempty"`
}

// AlertMsg is the wire format for integration alerts on JetStream
// (track.<integration_id>.ingest.alerts). Alerts become automated
// tickets in the integration's project.
type AlertMsg struct {
	V             int                    `msgpack:"v"`
	TS            int64                  `msgpack:"ts"`
	IntegrationID string                 `msgpack:"integration_id"`
	Title         string                 `msgpack:"title"`
	Body          string                 `msgpack:"body"`
	Severity      string                 `msgpack:"severity"`
	Details       map[string]interface{} `msgpack:"details"`
}

// HeartbeatMsg is the wire format for integration KV heartbeat entries.
type HeartbeatMsg struct {
	V             int    `msgpack:"v"`
	IntegrationID string `msgpack:"integration_id"`
	Version       string `msgpack:"version"`
	Hostname      string `msgpack:"hostname"`
	Uptime        int64  `msgpack:"uptime"`
}

// SyncRequest is the RPC request sent to an integration agent
// (track.<integration_id>.rpc).
type SyncRequest struct {
	Action    string `msgpack:"action"`
	RequestID string `msgpack:"request_id"`
	TimeoutMS int    `msgpack:"timeout_ms,omitempty"`
}

// SyncResponse is the RPC response from an integration agent.
type SyncResponse struct {
	RequestID  string `msgpack:"request_id"`
	Success    bool   `msgpack:"success"`
	Synced     int    `msgpack:"synced,omitempty"`
	DurationMS int64  `msgpack:"duration_ms,omitempty"`
	Error      string `msgpack:"error,omitempty"`
}

// Priority maps the alert severity to a ticket priority. Unknown
// severities fall back to medium.
func (a *AlertMsg) Priority() string {
	switch a.Severity {
	case "critical":
		return TicketPriorityUrgent
	case "error":
		return TicketPriorityHigh
	case "warning":
		return TicketPriorityMedium
	case "info":
		return TicketPriorityLow
	}
	return TicketPriorityMedium
}
