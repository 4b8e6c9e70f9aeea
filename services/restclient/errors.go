package restclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-dashboard/core"
)

// APIError is a non-2xx response of the backend.
// The backend answers either `{"error": "message"}` or a map of field errors.
type APIError struct {
	StatusCode int
	Message    string
	Fields     []core.FieldError
}

func (err *APIError) Error() string {
	return fmt.Sprintf("backend: %d %s", err.StatusCode, err.Message)
}

// NotFound lets callers that only know about errors detect a missing record.
func (err *APIError) NotFound() bool {
	return err.StatusCode == http.StatusNotFound
}

func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized) || errors.Cause(err) == ErrTokenExpired
}

func hasStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

func parseError(resp *resty.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode()}

	var body map[string]interface{}
	if err := json.Unmarshal(resp.Body(), &body); err == nil {
		if msg, ok := body["error"].(string); ok {
			apiErr.Message = msg
		} else {
			for fld, val := range body {
				if msg, ok := val.(string); ok {
					apiErr.Fields = append(apiErr.Fields, core.FieldError{Field: fld, Error: msg})
				}
			}
			sort.Slice(apiErr.Fields, func(i, j int) bool { return apiErr.Fields[i].Field < apiErr.Fields[j].Field })
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(apiErr.StatusCode)
	}
	return apiErr
}
