package httpapi

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rlaxogns100-oss/uniroad-agent/internal/orchestrator"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/logger"
)

const heartbeatInterval = 15 * time.Second

// streamEvents writes the teacher's SSE header set plus a 15s heartbeat
// comment line between events, but frames each payload as a bare
// `data: <json>\n\n` line (spec §6 "SSE event framing"): the event's own
// "type" field carries what the teacher's hub encoded as a separate
// "event: message" line, since this stream only ever emits one message
// kind (Event) rather than the hub's many named user-notification events.
func streamEvents(c *gin.Context, events <-chan orchestrator.Event, log *logger.Logger) {
	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(interface{ Flush() })
	if !ok {
		c.AbortWithStatus(500)
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev, open := <-events:
			if !open {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				log.Warn("sse: failed to marshal event", "error", err.Error())
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", strings.ReplaceAll(string(payload), "\n", ""))
			flusher.Flush()
			if ev.Type == orchestrator.EventDone || ev.Type == orchestrator.EventError {
				return
			}
		}
	}
}
