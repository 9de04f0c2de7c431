package httpmw

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// MutableHeaders is the header set of a response that has not started yet.
// Once the response start is committed every mutation is a no-op that
// reports false.
type MutableHeaders struct {
	h    http.Header
	sent *bool
}

// Get returns all values of name joined with ", ", or "" when absent.
func (m MutableHeaders) Get(name string) string {
	return strings.Join(m.h.Values(name), ", ")
}

func (m MutableHeaders) Has(name string) bool {
	return len(m.h.Values(name)) > 0
}

// Set replaces every value of name.
func (m MutableHeaders) Set(name, value string) bool {
	if m.sent == nil || *m.sent {
		return false
	}
	m.h.Set(name, value)
	return true
}

// Append merges value into name: existing values are kept in order and the
// new one is joined after them with sep.
func (m MutableHeaders) Append(name, value, sep string) bool {
	if prior := m.Get(name); prior != "" {
		return m.Set(name, prior+sep+value)
	}
	return m.Set(name, value)
}

// StartFunc observes the response start: the final status and the headers
// about to be sent.
type StartFunc func(status int, h MutableHeaders)

// StartWriter runs a StartFunc exactly once, right before the response
// status and headers are committed. Informational 1xx responses pass
// through without triggering it.
type StartWriter struct {
	http.ResponseWriter
	onStart StartFunc
	status  int
	sent    bool
}

// WrapStart wraps w so fn sees the response start. Callers must invoke
// Finish after the inner handler returns.
func WrapStart(w http.ResponseWriter, fn StartFunc) *StartWriter {
	return &StartWriter{ResponseWriter: w, onStart: fn}
}

func (sw *StartWriter) start(status int) {
	if sw.sent {
		return
	}
	sw.status = status
	func() {
		// a faulty hook must never abort the response
		defer func() { _ = recover() }()
		if sw.onStart != nil {
			sw.onStart(status, MutableHeaders{h: sw.ResponseWriter.Header(), sent: &sw.sent})
		}
	}()
	sw.sent = true
}

func (sw *StartWriter) WriteHeader(code int) {
	if !sw.sent && code >= 200 {
		sw.start(code)
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *StartWriter) Write(b []byte) (int, error) {
	if !sw.sent {
		sw.WriteHeader(http.StatusOK)
	}
	return sw.ResponseWriter.Write(b)
}

// Flush commits the start if needed before flushing.
func (sw *StartWriter) Flush() {
	if !sw.sent {
		sw.WriteHeader(http.StatusOK)
	}
	if f, ok := sw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack hands the connection over; headers can no longer be changed.
func (sw *StartWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := sw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("underlying ResponseWriter does not implement http.Hijacker")
	}
	sw.sent = true
	return h.Hijack()
}

func (sw *StartWriter) Unwrap() http.ResponseWriter { return sw.ResponseWriter }

// Finish fires the hook for handlers that returned without writing; net/http
// will then send an implicit 200 with the mutated headers.
func (sw *StartWriter) Finish() {
	sw.start(http.StatusOK)
}

// Status is the committed status, or 0 if the response has not started.
func (sw *StartWriter) Status() int { return sw.status }

// Sent reports whether the response start has been committed.
func (sw *StartWriter) Sent() bool { return sw.sent }
