package domain

import "time"

type AskOutcome string

const (
	// Submission admitted and a token handed out
	AskOutcomeAccepted AskOutcome = "accepted"
	// Submission refused because every client was leased
	AskOutcomeOverloaded AskOutcome = "overloaded"
	AskOutcomeCompleted  AskOutcome = "completed"
	AskOutcomeFailed     AskOutcome = "failed"
	// Answer arrived after its token was evicted
	AskOutcomeDropped AskOutcome = "dropped"
)

type AskEvent struct {
	Outcome AskOutcome
	At      time.Time
}
