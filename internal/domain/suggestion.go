package domain

import "time"

// SuggestionRequest carries the item names already on an open ticket.
type SuggestionRequest struct {
	Items       []string   `json:"items" validate:"min=1,dive,required,max=120"`
	PromptCount int        `json:"prompt_count" validate:"gte=0"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
}

type Suggestion struct {
	Name       string  `json:"name"`
	Category   string  `json:"category"`
	Price      float64 `json:"price"`
	ReasonCode string  `json:"reason_code"`
	Confidence float64 `json:"confidence"`
}

type UIPolicy struct {
	Show            bool `json:"show"`
	CooldownSeconds int  `json:"cooldown_seconds"`
}

type SuggestionResponse struct {
	Suggestion *Suggestion `json:"suggestion,omitempty"`
	UIPolicy   UIPolicy    `json:"ui_policy"`
	LatencyMS  int64       `json:"latency_ms"`
}
