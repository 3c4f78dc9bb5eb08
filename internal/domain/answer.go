package domain

// Answer is the terminal value stored for a token.
// Exactly one of Text and Failure is meaningful: a non-empty Failure marks a
// failed upstream call.
type Answer struct {
	Text    string
	Failure string
}

func (a Answer) Failed() bool {
	return a.Failure != ""
}

type PollStatus string

const (
	PollStatusOK      PollStatus = "ok"
	PollStatusPending PollStatus = "pending"
	PollStatusError   PollStatus = "error"
)

type PollResult struct {
	Status PollStatus
	Answer Answer
}
