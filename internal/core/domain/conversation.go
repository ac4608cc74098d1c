package domain

import "time"

// Exchange is one stored question/answer pair of a chat session. History is
// keyed by the caller-provided session id; there is no ambient session state.
type Exchange struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Query       string    `json:"query"`
	Answer      string    `json:"answer"`
	SourceCount int       `json:"source_count"`
	CreatedAt   time.Time `json:"created_at"`
}
