package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/mutua-muvevi/kenix-commodities-sales-app-sub005/pkg/cache"
)

// Response is a handler's output captured in memory.
// It is the value shared between coalesced callers and the value stored in a cache backend.
type Response struct {
	// StatusCode is the HTTP status written by the handler
	StatusCode int `json:"status_code"`

	// Header holds the headers the handler set
	Header http.Header `json:"headers"`

	// Body is the full response body
	Body []byte `json:"body"`
}

// recorder is an http.ResponseWriter that buffers everything in memory,
// so the next handler's output can be inspected before it reaches the client.
type recorder struct {
	header      http.Header
	status      int
	body        bytes.Buffer
	wroteHeader bool
}

func newRecorder() *recorder {
	return &recorder{header: http.Header{}}
}

// Header implements http.ResponseWriter.
func (r *recorder) Header() http.Header {
	return r.header
}

// WriteHeader implements http.ResponseWriter. Only the first call counts.
func (r *recorder) WriteHeader(statusCode int) {
	if r.wroteHeader {
		return
	}
	r.wroteHeader = true
	r.status = statusCode
}

// Write implements http.ResponseWriter.
func (r *recorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.body.Write(b)
}

func (r *recorder) response() *Response {
	status := r.status
	if !r.wroteHeader {
		status = http.StatusOK
	}
	return &Response{
		StatusCode: status,
		Header:     r.header.Clone(),
		Body:       bytes.Clone(r.body.Bytes()),
	}
}

// capture runs next against an in-memory writer and returns what it produced.
func capture(next http.Handler, r *http.Request) *Response {
	rec := newRecorder()
	next.ServeHTTP(rec, r)
	return rec.response()
}

// replay writes resp to w. Headers already present on w are kept unless
// resp overrides them. resp itself is never modified.
func (resp *Response) replay(w http.ResponseWriter) {
	dst := w.Header()
	for key, values := range resp.Header {
		dst[key] = append([]string(nil), values...)
	}
	w.WriteHeader(resp.StatusCode)
	if len(resp.Body) > 0 {
		w.Write(resp.Body)
	}
}

// successful reports a 2xx status.
func (resp *Response) successful() bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// hasErrorIndicator reports a JSON object body that signals failure despite
// its status: {"success": false, ...} or a non-null "error" field.
func (resp *Response) hasErrorIndicator() bool {
	contentType := resp.Header.Get("Content-Type")
	trimmed := bytes.TrimSpace(resp.Body)
	if !strings.Contains(contentType, "json") && !bytes.HasPrefix(trimmed, []byte("{")) {
		return false
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return false
	}

	if raw, ok := fields["success"]; ok && string(bytes.TrimSpace(raw)) == "false" {
		return true
	}
	if raw, ok := fields["error"]; ok && string(bytes.TrimSpace(raw)) != "null" {
		return true
	}
	return false
}

// cacheable reports whether resp may be stored.
func (resp *Response) cacheable() bool {
	return resp.successful() && !resp.hasErrorIndicator()
}

func encodeResponse(resp *Response) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("marshal response: %w", err)
	}
	return data, nil
}

func decodeResponse(data []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", cache.ErrInvalidEntry, err)
	}
	if resp.StatusCode == 0 {
		return nil, fmt.Errorf("%w: missing status code", cache.ErrInvalidEntry)
	}
	if resp.Header == nil {
		resp.Header = http.Header{}
	}
	return &resp, nil
}

// readOnly reports whether r has no side effects and may be cached or coalesced.
func readOnly(r *http.Request) bool {
	return r.Method == http.MethodGet || r.Method == http.MethodHead
}
