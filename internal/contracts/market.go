package contracts

import "time"

// SettlementPrice is one published daily price. The series is
// append-only and authoritative: once published, a (symbol, price_type,
// date) price never changes.
type SettlementPrice struct {
	Symbol    string    `json:"symbol"`
	PriceType string    `json:"price_type"`
	Date      time.Time `json:"date"`
	PriceUSD  float64   `json:"price_usd"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TimelineEvent is one audit-visible lifecycle event. The emitter
// guarantees at-most-once recording per idempotency key, so re-running
// a resumed pipeline never duplicates events.
type TimelineEvent struct {
	EventType      string                 `json:"event_type"`
	Subject        string                 `json:"subject"`
	CorrelationID  string                 `json:"correlation_id"`
	IdempotencyKey string                 `json:"idempotency_key"`
	Payload        map[string]interface{} `json:"payload,omitempty"`
	OccurredAt     time.Time              `json:"occurred_at"`
}

// Pipeline lifecycle event types
const (
	EventRunStarted   = "pipeline.run_started"
	EventRunCompleted = "pipeline.run_completed"
	EventRunFailed    = "pipeline.run_failed"
	EventRunResumed   = "pipeline.run_resumed"
)
