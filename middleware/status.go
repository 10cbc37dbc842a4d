package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	goIdentity "github.com/MrEthical07/goIdentity"
)

// HTTPStatus maps an engine error to its HTTP status code.
func HTTPStatus(err error) int {
	switch goIdentity.Classify(err) {
	case goIdentity.StatusOK:
		return http.StatusOK
	case goIdentity.StatusVerificationRequired:
		return http.StatusForbidden
	case goIdentity.StatusClientError:
		return http.StatusBadRequest
	case goIdentity.StatusUnauthorized:
		return http.StatusUnauthorized
	case goIdentity.StatusNotFound:
		return http.StatusNotFound
	case goIdentity.StatusRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Success     bool     `json:"success"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// WriteError writes err as a JSON body with the status from [HTTPStatus]. Server
// errors are reported generically.
func WriteError(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	body := errorBody{Message: err.Error()}
	if status == http.StatusInternalServerError {
		body.Message = "internal server error"
	}
	var taken *goIdentity.UsernameTakenError
	if errors.As(err, &taken) {
		body.Suggestions = taken.Suggestions
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
