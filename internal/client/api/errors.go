package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/quipflip/quipflip-go/internal/common"
)

// errorBody is the shape of the platform's error responses. Some endpoints
// use "error", older ones use "detail".
type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// statusError maps a non-2xx response to a sentinel from internal/common,
// wrapped with the server's message so callers can both match with
// errors.Is and show something to the player.
func statusError(status int, body []byte) error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)
	msg := eb.Error
	if msg == "" {
		msg = eb.Detail
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	var sentinel error
	switch {
	case status == http.StatusUnauthorized:
		sentinel = common.ErrUnauthorized
	case status == http.StatusNotFound && strings.Contains(strings.ToLower(msg), "round"):
		sentinel = common.ErrRoundNotFound
	case status == http.StatusConflict || status == http.StatusNotFound:
		sentinel = common.ErrConflict
	case status == http.StatusUnprocessableEntity || status == http.StatusBadRequest:
		sentinel = common.ErrValidation
	case status == http.StatusTooManyRequests:
		sentinel = common.ErrRateLimited
	default:
		sentinel = common.ErrUnavailable
	}

	return fmt.Errorf("%s: %w", msg, sentinel)
}
