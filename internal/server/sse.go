package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jonathan/resume-topics/internal/types"
)

const (
	eventSnapshot = "snapshot"
	eventComplete = "complete"
	eventError    = "error"
)

var errStreamingUnsupported = errors.New("streaming not supported")

// statusStream writes active-generation snapshots as Server-Sent Events. Events carry an
// increasing id; a snapshot identical to the previous one is replaced by a keep-alive comment.
type statusStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	seq     int
	last    []byte
}

// newStatusStream sets the event-stream headers and advertises retry as the reconnect delay
func newStatusStream(w http.ResponseWriter, retry time.Duration) (*statusStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errStreamingUnsupported
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	st := &statusStream{w: w, flusher: flusher}
	if _, err := fmt.Fprintf(w, "retry: %d\n\n", retry.Milliseconds()); err != nil {
		return nil, err
	}
	flusher.Flush()
	return st, nil
}

// snapshot sends snap unless it matches the last one sent
func (st *statusStream) snapshot(snap types.ActiveGenerations) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if st.last != nil && bytes.Equal(data, st.last) {
		return st.write(": keep-alive\n\n")
	}
	st.last = data
	return st.event(eventSnapshot, data)
}

// complete sends the settlement event with the final, empty snapshot
func (st *statusStream) complete(snap types.ActiveGenerations) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return st.event(eventComplete, data)
}

func (st *statusStream) fail(message string) error {
	data, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return err
	}
	return st.event(eventError, data)
}

func (st *statusStream) event(name string, data []byte) error {
	st.seq++
	return st.write(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", st.seq, name, data))
}

func (st *statusStream) write(frame string) error {
	if _, err := st.w.Write([]byte(frame)); err != nil {
		return err
	}
	st.flusher.Flush()
	return nil
}
