package jira

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Error is a non-2xx response from Jira.
type Error struct {
	StatusCode int
	Messages   []string
}

func (e *Error) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("jira: status %d", e.StatusCode)
	}
	return fmt.Sprintf("jira: status %d: %s", e.StatusCode, strings.Join(e.Messages, " "))
}

// errorBody is Jira's error envelope.
type errorBody struct {
	ErrorMessages   []string          `json:"errorMessages"`
	WarningMessages []string          `json:"warningMessages"`
	Errors          map[string]string `json:"errors"`
}

// newError builds an *Error from a response body. Bodies that are not
// Jira's JSON envelope are kept verbatim as the only message.
func newError(status int, body []byte) *Error {
	e := &Error{StatusCode: status}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		if s := strings.TrimSpace(string(body)); s != "" {
			e.Messages = []string{s}
		}
		return e
	}
	e.Messages = append(e.Messages, eb.ErrorMessages...)
	e.Messages = append(e.Messages, eb.WarningMessages...)
	fields := make([]string, 0, len(eb.Errors))
	for f := range eb.Errors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		e.Messages = append(e.Messages, f+": "+eb.Errors[f])
	}
	return e
}
