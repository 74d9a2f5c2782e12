package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"trackhub-backend/internal/models"
)

type OpenRouterClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

type OpenRouterRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type OpenRouterResponse struct {
	ID      string   `json:"id"`
	Choices []Choice `json:"choices"`
}

type Choice struct {
	Message Message `json:"message"`
}

func NewOpenRouterClient() *OpenRouterClient {
	apiKey := os.Getenv("OPENROUTER_KEY")
	if apiKey == "" {
		apiKey = "dummy-key"
	}

	return &OpenRouterClient{
		apiKey:  apiKey,
		baseURL: "https://openrouter.ai/api/v1",
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

const systemPrompt = `You are an experienced engineering manager triaging issue tracker tickets.
Your goal is to read a ticket and suggest a priority and labels.

INPUT DATA:
You will receive a ticket containing:
1. Title
2. Description
3. Current status and priority

PRIORITY VALUES (pick exactly one):
- urgent: production is down, data loss, security incident
- high: a core workflow is broken with no workaround
- medium: broken with a workaround, or significant degradation
- low: cosmetic issues, nice-to-haves, internal tooling

LABEL SUGGESTIONS:
Suggest up to 3 short lowercase labels (e.g. "bug", "frontend", "performance", "security").
Only suggest labels that clearly apply.

OUTPUT FORMAT (Strict JSON only, no markdown):
{
  "analysis": "One or two sentences explaining the suggested priority.",
  "suggested_priority": "urgent" | "high" | "medium" | "low",
  "suggested_labels": ["label1", "label2"]
}`

func (c *OpenRouterClient) TriageTicket(ticket *models.Ticket) (*models.TriageSuggestion, error) {
	prompt := c.buildPrompt(ticket)

	req := OpenRouterRequest{
		Model: "qwen/qwen-2.5-coder-32b-instruct",
		Messages: []Message{
			{
				Role:    "system",
				Content: systemPrompt,
			},
			{
				Role:    "user",
				Content: prompt,
			},
		},
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal error: %w", err)
	}

	httpReq, err := http.NewRequest("POST", c.baseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request error: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("HTTP-Referer", "https://trackhub.local")
	httpReq.Header.Set("X-Title", "TrackHub")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return c.fallbackTriage(ticket), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		fmt.Printf("OpenRouter error: %s\n", string(body))
		return c.fallbackTriage(ticket), nil
	}

	var orResp OpenRouterResponse
	if err := json.NewDecoder(resp.Body).Decode(&orResp); err != nil {
		return c.fallbackTriage(ticket), nil
	}

	if len(orResp.Choices) == 0 {
		return c.fallbackTriage(ticket), nil
	}

	// The model may wrap the JSON in extra prose.
	jsonStr := extractJSON(orResp.Choices[0].Message.Content)

	var suggestion models.TriageSuggestion
	if err := json.Unmarshal([]byte(jsonStr), &suggestion); err != nil {
		return c.fallbackTriage(ticket), nil
	}

	if !models.ValidTicketPriority(suggestion.SuggestedPriority) {
		suggestion.SuggestedPriority = models.TicketPriorityMedium
	}

	return &suggestion, nil
}

func extractJSON(s string) string {
	start := -1
	end := -1
	depth := 0

	for i, c := range s {
		if c == '{' {
			if start == -1 {
				start = i
			}
			depth++
		} else if c == '}' {
			depth--
			if depth == 0 {
				end = i + 1
				break
			}
		}
	}

	if start >= 0 && end > start {
		return s[start:end]
	}
	return s
}

func (c *OpenRouterClient) buildPrompt(ticket *models.Ticket) string {
	var sb strings.Builder

	sb.WriteString("TICKET\n")
	sb.WriteString(fmt.Sprintf("Title: %s\n", ticket.Title))
	sb.WriteString(fmt.Sprintf("Status: %s\n", ticket.Status))
	sb.WriteString(fmt.Sprintf("Current priority: %s\n", ticket.Priority))

	if ticket.Description != "" {
		sb.WriteString("\n[DESCRIPTION]\n")
		sb.WriteString(ticket.Description)
		sb.WriteString("\n")
	}

	sb.WriteString("\nReturn JSON with your analysis, suggested priority and labels.")

	return sb.String()
}

func (c *OpenRouterClient) fallbackTriage(ticket *models.Ticket) *models.TriageSuggestion {
	analysis := "Triage service unavailable. Manual triage required."
	priority := models.TicketPriorityMedium
	var labels []string

	// Basic pattern matching when the model is unreachable.
	text := strings.ToLower(ticket.Title + " " + ticket.Description)

	switch {
	case strings.Contains(text, "data loss") || strings.Contains(text, "security") || strings.Contains(text, "outage"):
		analysis = "Title or description mentions an outage, data loss or a security issue."
		priority = models.TicketPriorityUrgent
	case strings.Contains(text, "crash") || strings.Contains(text, "broken") || strings.Contains(text, "cannot"):
		analysis = "Title or description suggests a broken workflow."
		priority = models.TicketPriorityHigh
	case strings.Contains(text, "typo") || strings.Contains(text, "cosmetic") || strings.Contains(text, "polish"):
		analysis = "Title or description suggests a cosmetic issue."
		priority = models.TicketPriorityLow
	}

	if strings.Contains(text, "bug") || strings.Contains(text, "error") || strings.Contains(text, "crash") {
		labels = append(labels, "bug")
	}
	if strings.Contains(text, "slow") || strings.Contains(text, "performance") {
		labels = append(labels, "performance")
	}

	return &models.TriageSuggestion{
		Analysis:          analysis,
		SuggestedPriority: priority,
		SuggestedLabels:   labels,
	}
}
