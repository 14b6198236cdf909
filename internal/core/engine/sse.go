package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// EventWriter frames server-sent events onto a response, flushing after each
// one so tokens reach the client as they are produced.
type EventWriter struct {
	w       io.Writer
	flusher http.Flusher
}

func NewEventWriter(w io.Writer) *EventWriter {
	ew := &EventWriter{w: w}
	if f, ok := w.(http.Flusher); ok {
		ew.flusher = f
	}
	return ew
}

// Send writes one `event: <name>\ndata: <json>\n\n` frame.
func (ew *EventWriter) Send(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(ew.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	if ew.flusher != nil {
		ew.flusher.Flush()
	}
	return nil
}

// StreamQuery drives one chat request through the SSE protocol:
// start -> token* -> done|error, with exactly one terminal event.
//
// The start frame goes out before any retrieval work so the client's
// connection is confirmed open. Tokens already sent are never retracted; a
// trailing error aborts an otherwise-valid partial answer.
func StreamQuery(ctx context.Context, ew *EventWriter, qe *QueryEngine, question string) {
	if err := ew.Send("start", map[string]bool{"ok": true}); err != nil {
		return
	}

	resp, err := qe.QueryStream(ctx, question, func(token string) error {
		return ew.Send("token", map[string]string{"delta": token})
	})
	if err != nil {
		_ = ew.Send("error", map[string]string{"message": err.Error()})
		return
	}
	_ = ew.Send("done", resp)
}
