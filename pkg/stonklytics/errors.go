package stonklytics

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"stonklytics/internal/domain"
)

const maxErrorBody = 64 << 10

// decodeError turns a non-2xx response into a *domain.Error carrying the
// backend's message, or an empty message when the payload has none.
func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var payload ErrorResponse
	_ = json.Unmarshal(data, &payload)
	msg := strings.TrimSpace(payload.Error)
	if msg == "" {
		msg = strings.TrimSpace(payload.Detail)
	}

	kind := kindForStatus(resp.StatusCode)
	if kind == domain.KindValidation && isDuplicateMessage(msg) {
		kind = domain.KindConflict
	}

	return &domain.Error{
		Kind:    kind,
		Message: msg,
		Err:     &StatusError{Code: resp.StatusCode, Body: string(data)},
	}
}

func kindForStatus(code int) domain.Kind {
	switch code {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return domain.KindValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.KindUnauthenticated
	case http.StatusNotFound:
		return domain.KindNotFound
	case http.StatusConflict:
		return domain.KindConflict
	default:
		return domain.KindUpstream
	}
}

// The legacy add endpoint reports duplicates as 400.
func isDuplicateMessage(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "already in watchlist")
}

func transportError(err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return domain.WrapError(domain.KindNetwork, "Request timed out. Please try again.", err)
	}
	if errors.Is(err, context.Canceled) {
		return domain.WrapError(domain.KindNetwork, "Request cancelled", err)
	}
	return domain.WrapError(domain.KindNetwork, "Unable to reach the server. Please try again.", err)
}

// StatusError records the raw HTTP failure behind a *domain.Error.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return http.StatusText(e.Code)
}
