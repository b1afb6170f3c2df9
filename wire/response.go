package wire

import (
	"encoding/json"
	"fmt"
	"strings"
)

var statusText = map[int]string{
	200: "OK",
	400: "Bad Request",
	401: "Unauthorized",
	404: "Not Found",
	500: "Internal Server Error",
}

// Response is an outbound response ready for serialization.
type Response struct {
	StatusCode int
	Headers    []Header
	Body       []byte
}

// envelope is the fixed JSON response shape: data and error are null when
// unset.
type envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
	Error   any  `json:"error"`
}

// JSONSuccess builds a 200 response with data wrapped in the standard
// envelope.
func JSONSuccess(data any) *Response {
	return jsonResponse(200, envelope{Success: true, Data: data})
}

// JSONError builds an error response carrying message in the standard
// envelope.
func JSONError(statusCode int, message string) *Response {
	return jsonResponse(statusCode, envelope{Success: false, Error: message})
}

func jsonResponse(statusCode int, env envelope) *Response {
	body, err := json.Marshal(env)
	if err != nil {
		// Only reachable with an unmarshalable Data value.
		body = []byte(`{"success":false,"data":null,"error":"internal encoding failure"}`)
		statusCode = 500
	}
	return &Response{
		StatusCode: statusCode,
		Headers:    []Header{{Name: "Content-Type", Value: "application/json"}},
		Body:       body,
	}
}

// Marshal serializes the response: status line, headers including a computed
// Content-Length and Connection: close, blank line, body.
func (r *Response) Marshal() []byte {
	text, ok := statusText[r.StatusCode]
	if !ok {
		text = "Unknown"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", r.StatusCode, text)
	for _, h := range r.Headers {
		fmt.Fprintf(&b, "%s: %s\r\n", h.Name, h.Value)
	}
	fmt.Fprintf(&b, "Content-Length: %d\r\n", len(r.Body))
	b.WriteString("Connection: close\r\n\r\n")

	out := make([]byte, 0, b.Len()+len(r.Body))
	out = append(out, b.String()...)
	out = append(out, r.Body...)
	return out
}
