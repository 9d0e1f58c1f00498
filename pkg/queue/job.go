package queue

import (
	"encoding/json"
	"time"
)

// Job one queued unit of work keyed by video id
type Job struct {
	ID           string          `json:"id"`
	VideoID      string          `json:"videoId"`
	AttemptsMade int             `json:"attemptsMade"`
	MaxAttempts  int             `json:"maxAttempts"`
	Payload      json.RawMessage `json:"payload"`
	LastError    string          `json:"lastError,omitempty"`
	EnqueuedAt   time.Time       `json:"enqueuedAt"`
	FailedAt     *time.Time      `json:"failedAt,omitempty"`

	// Attempt 1-based number of the attempt being executed, set on dequeue
	Attempt int `json:"-"`
	// lease fencing token handed out by the dequeue that produced this attempt
	lease int64
}

// FinalAttempt report whether the running attempt is the last one allowed
func (j *Job) FinalAttempt() bool {
	return j.Attempt >= j.MaxAttempts
}

// Decode unmarshal the payload into v
func (j *Job) Decode(v interface{}) error {
	return json.Unmarshal(j.Payload, v)
}

// Stats job counts per set
type Stats struct {
	Waiting int64 `json:"waiting"`
	Delayed int64 `json:"delayed"`
	Active  int64 `json:"active"`
	Failed  int64 `json:"failed"`
}
