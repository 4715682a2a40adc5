package graph

import (
	"fmt"
	"strings"
)

// Error describes a failed Graph API call. StatusCode is zero when the request
// never got a response.
type Error struct {
	Op         string
	StatusCode int
	Status     string
	API        *APIError
	Body       string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("graph: ")
	b.WriteString(e.Op)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %s", e.Status)
	}
	switch {
	case e.API != nil:
		fmt.Fprintf(&b, ": %s (type=%s code=%d)", e.API.Message, e.API.Type, e.API.Code)
	case e.Body != "":
		fmt.Fprintf(&b, ": %s", e.Body)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}
