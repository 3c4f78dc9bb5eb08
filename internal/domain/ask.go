package domain

type Verbosity string

const (
	VerbosityLow    Verbosity = "low"
	VerbosityMedium Verbosity = "medium"
	VerbosityHigh   Verbosity = "high"
)

// AskConfig is the fixed profile every question is sent with
type AskConfig struct {
	Model        string
	Instructions string
	Verbosity    Verbosity
}

const DefaultInstructions = "Short minimalistic answer to the question. 1-2 words unless the correct name naturally requires more. No punctuation, no extra explanation."

const DefaultQuestion = "Name a random well known actor."

const MaxQuestionLength = 2000
