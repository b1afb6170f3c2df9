// Package wire implements the line-delimited HTTP-style framing used on the
// device transfer channel: stateless request parsing and response
// serialization over raw bytes, plus the JSON response envelope.
package wire

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrMalformedRequest is wrapped by every request parse failure.
var ErrMalformedRequest = errors.New("wire: malformed request")

var knownMethods = map[string]bool{
	"GET":     true,
	"POST":    true,
	"PUT":     true,
	"DELETE":  true,
	"HEAD":    true,
	"OPTIONS": true,
}

// Header is a single request header with its original casing preserved.
type Header struct {
	Name  string
	Value string
}

// Request is a parsed inbound request.
type Request struct {
	Method  string
	Path    string
	Query   map[string]string
	Headers []Header
	Body    []byte
}

// ParseRequest parses raw bytes structured as request-line, headers, blank
// line, body. The request line is "METHOD PATH" with an optional protocol
// token; query parameters are split off the path and percent-decoded.
// Malformed request lines and unknown methods return an error wrapping
// ErrMalformedRequest.
func ParseRequest(raw []byte) (*Request, error) {
	head, body, _ := strings.Cut(string(raw), "\r\n\r\n")
	lines := strings.Split(head, "\r\n")
	if len(lines) == 0 || lines[0] == "" {
		return nil, fmt.Errorf("%w: empty request", ErrMalformedRequest)
	}

	fields := strings.Fields(lines[0])
	if len(fields) < 2 {
		return nil, fmt.Errorf("%w: bad request line %q", ErrMalformedRequest, lines[0])
	}
	method := strings.ToUpper(fields[0])
	if !knownMethods[method] {
		return nil, fmt.Errorf("%w: unknown method %q", ErrMalformedRequest, fields[0])
	}

	path, query, err := splitTarget(fields[1])
	if err != nil {
		return nil, err
	}

	req := &Request{
		Method: method,
		Path:   path,
		Query:  query,
		Body:   []byte(body),
	}

	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: bad header line %q", ErrMalformedRequest, line)
		}
		req.Headers = append(req.Headers, Header{
			Name:  strings.TrimSpace(name),
			Value: strings.TrimSpace(value),
		})
	}

	return req, nil
}

// splitTarget separates the request target into path and decoded query
// parameters.
func splitTarget(target string) (string, map[string]string, error) {
	path, rawQuery, _ := strings.Cut(target, "?")
	query := make(map[string]string)
	if rawQuery == "" {
		return path, query, nil
	}

	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		decoded, err := url.QueryUnescape(value)
		if err != nil {
			return "", nil, fmt.Errorf("%w: bad query value %q", ErrMalformedRequest, value)
		}
		query[key] = decoded
	}
	return path, query, nil
}

// Header returns the value of the named header, matched case-insensitively.
func (r *Request) Header(name string) (string, bool) {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// BearerToken extracts the bearer token from the authorization header. The
// header name and the "Bearer " prefix are matched case-insensitively.
func (r *Request) BearerToken() (string, bool) {
	value, ok := r.Header("authorization")
	if !ok {
		return "", false
	}
	const prefix = "bearer "
	if len(value) <= len(prefix) || !strings.EqualFold(value[:len(prefix)], prefix) {
		return "", false
	}
	return value[len(prefix):], true
}
