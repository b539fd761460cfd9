package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/loomml/loom/pkg/domain/task"
	"github.com/loomml/loom/pkg/utils/blob64"
)

// execution statuses the backend reports.
const (
	statusRunning = "running"
	statusDone    = "done"
	statusFailed  = "failed"
)

type deploymentRequest struct {
	Version string `json:"version"`
}

type executionRequest struct {
	Task    string      `json:"task"`
	Version string      `json:"version"`
	Inputs  task.Inputs `json:"inputs"`
}

type executionCreated struct {
	ID string `json:"id"`
}

type executionStatus struct {
	ID     string `json:"id"`
	Status string `json:"status"`

	// Error carries the failure reason when Status is failed.
	Error string `json:"error,omitempty"`

	Result *executionResult `json:"result,omitempty"`
}

type executionResult struct {
	// ModelObject is the gob-serialized model object, base64 on the wire.
	ModelObject blob64.Bytes `json:"model_object,omitempty"`

	Metrics map[string]any `json:"metrics,omitempty"`

	// Predictions is kept raw; its shape is the predictor's business.
	Predictions json.RawMessage `json:"predictions,omitempty"`
}

// unmarshal http response which has json content.
//
// Status codes out of 2xx become errors carrying the server's message.
// v may be nil when the payload does not matter.
func unmarshalJsonResponse(resp *http.Response, v any) error {
	if 200 <= resp.StatusCode && resp.StatusCode < 300 {
		if v == nil {
			io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return fmt.Errorf(
				"unexpected response: %w (status code = %d)", err, resp.StatusCode,
			)
		}
		return nil
	}

	body, _ := io.ReadAll(resp.Body)
	if msg, err := parseErrorMessage(body); err == nil {
		return fmt.Errorf("server error (status code = %d): %s", resp.StatusCode, msg)
	}
	return fmt.Errorf("server error (status code = %d): %s", resp.StatusCode, string(body))
}

func parseErrorMessage(body []byte) (string, error) {
	msg := struct {
		Message *string `json:"message"`
	}{}
	if err := json.Unmarshal(body, &msg); err != nil {
		return "", err
	}
	if msg.Message == nil {
		return "", fmt.Errorf("no message")
	}
	return *msg.Message, nil
}
