package apiclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrTimeout reports that a call exceeded the configured wall-clock budget.
	ErrTimeout = errors.New("request timed out")
	// ErrSessionExpired reports that credentials could not be recovered and
	// the session was cleared. The user has to log in again.
	ErrSessionExpired = errors.New("session expired, please log in again")
)

// Error is returned for every non-2xx response that the engine did not
// recover from. Error() is exactly the normalized server message.
type Error struct {
	Status  int
	Message string

	sessionExpired bool
}

func (e *Error) Error() string { return e.Message }

// Is lets a failed refresh carry the server message while still matching
// ErrSessionExpired.
func (e *Error) Is(target error) bool {
	return e.sessionExpired && target == ErrSessionExpired
}

// IsStatus reports whether err is an *Error with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == status
}

const maxMessageLength = 512

var messageFields = []string{"detail", "message", "error"}

// errorMessage picks the message for a failed response: a JSON string body or
// non-JSON text, then the detail, message and error fields, then the status
// text. fromBody is false when only the status text was available.
func errorMessage(status int, body []byte) (msg string, fromBody bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 {
		var payload any
		if err := json.Unmarshal(trimmed, &payload); err != nil {
			return truncate(string(trimmed)), true
		}
		switch v := payload.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				return truncate(v), true
			}
		case map[string]any:
			for _, field := range messageFields {
				if m := fieldMessage(v[field]); m != "" {
					return truncate(m), true
				}
			}
		}
	}
	if text := http.StatusText(status); text != "" {
		return text, false
	}
	return fmt.Sprintf("request failed with status %d", status), false
}

// fieldMessage flattens the shapes servers use for error fields, including
// validation lists of {"msg": ...} objects.
func fieldMessage(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if m := fieldMessage(item); m != "" {
				parts = append(parts, m)
			}
		}
		return strings.Join(parts, "; ")
	case map[string]any:
		if m, ok := v["msg"].(string); ok && strings.TrimSpace(m) != "" {
			return strings.TrimSpace(m)
		}
		if m, ok := v["message"].(string); ok && strings.TrimSpace(m) != "" {
			return strings.TrimSpace(m)
		}
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprint(value)
	}
	return string(encoded)
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxMessageLength {
		return s
	}
	return s[:maxMessageLength] + "..."
}
