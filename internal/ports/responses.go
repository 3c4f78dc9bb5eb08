package ports

import (
	"encoding/json"
	"net/http"

	"github.com/Amund211/askbox/internal/domain"
)

type askResponse struct {
	Status string `json:"status"`
	Token  string `json:"token,omitempty"`
	// Always present for an answered poll, even when empty
	Answer  *string `json:"answer,omitempty"`
	Message string  `json:"message,omitempty"`
}

const (
	statusOK           = "ok"
	statusPending      = "pending"
	statusOverloaded   = "overloaded"
	statusInvalidToken = "invalid_token"
	statusError        = "error"
)

var (
	internalErrorResponse = askResponse{Status: statusError, Message: "internal server error"}
	rateLimitedResponse   = askResponse{Status: statusError, Message: "rate limit exceeded"}
)

func errorResponse(message string) askResponse {
	return askResponse{Status: statusError, Message: message}
}

func pollResponse(result domain.PollResult) (int, askResponse) {
	switch result.Status {
	case domain.PollStatusOK:
		answer := result.Answer.Text
		return http.StatusOK, askResponse{Status: statusOK, Answer: &answer}
	case domain.PollStatusError:
		return http.StatusBadGateway, errorResponse(result.Answer.Failure)
	default:
		return http.StatusAccepted, askResponse{Status: statusPending}
	}
}

func writeResponse(w http.ResponseWriter, statusCode int, response askResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		// Only strings in the response, this can't fail
		statusCode = http.StatusInternalServerError
		data = []byte(`{"status":"error","message":"internal server error"}`)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(data)
}

func writeRateLimited(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, http.StatusTooManyRequests, rateLimitedResponse)
}
