package openaicompat

import (
	"encoding/json"
	"errors"

	"github.com/rhuss/modelapi/pkg/api"
)

// ExtractErrorMessage tries to parse body as a WireError and
// returns the error message if found.
func ExtractErrorMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var errResp WireError
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		return errResp.Error.Message
	}

	return ""
}

// BackendMessage returns the backend's own error message for a status
// error, falling back to the error text.
func BackendMessage(err error) string {
	var se *api.StatusError
	if errors.As(err, &se) {
		if msg := ExtractErrorMessage([]byte(se.Body)); msg != "" {
			return msg
		}
	}
	return err.Error()
}
