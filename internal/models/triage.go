package models

// TriageSuggestion is the model-assisted triage result for a ticket.
// SuggestedPriority is one of the ticket priority values; SuggestedLabels
// are free-form label names that may or may not already exist in the
// organization.
type TriageSuggestion struct {
	Analysis          string   `json:"analysis"`
	SuggestedPriority string   `json:"suggested_priority"`
	SuggestedLabels   []string `json:"suggested_labels,omitempty"`
}
