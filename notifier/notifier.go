// Package notifier publishes resource lifecycle events. Events go out on NATS
// subjects so that subscription processing, remote CSEs, and the websocket
// event feed can react without coupling to the dispatcher.
package notifier

import (
	"encoding/json"
	"log/slog"

	"github.com/c360/cse/metric"
	"github.com/c360/cse/resource"
)

// Subjects for resource lifecycle events.
const (
	SubjectResourceCreated = "cse.resource.created"
	SubjectResourceUpdated = "cse.resource.updated"
	SubjectResourceDeleted = "cse.resource.deleted"
)

// Publisher is the transport the notifier publishes on.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Event is the serialized lifecycle event payload.
type Event struct {
	Event    string         `json:"event"`
	RI       string         `json:"ri"`
	Type     int            `json:"ty"`
	SRN      string         `json:"srn,omitempty"`
	Resource map[string]any `json:"resource,omitempty"`
}

// Notifier publishes lifecycle events. Publishing is best-effort; a failed
// publish is logged and dropped, never surfaced to the request that caused it.
type Notifier struct {
	publisher Publisher
	logger    *slog.Logger
	metrics   *metric.Metrics
}

// New creates a Notifier. The metrics argument is optional.
func New(publisher Publisher, logger *slog.Logger, metrics *metric.Metrics) *Notifier {
	return &Notifier{publisher: publisher, logger: logger, metrics: metrics}
}

// ResourceCreated publishes a creation event.
func (n *Notifier) ResourceCreated(r *resource.Resource) {
	n.publish(SubjectResourceCreated, "created", r)
}

// ResourceUpdated publishes an update event.
func (n *Notifier) ResourceUpdated(r *resource.Resource) {
	n.publish(SubjectResourceUpdated, "updated", r)
}

// ResourceDeleted publishes a deletion event. The payload carries the
// resource's last known state.
func (n *Notifier) ResourceDeleted(r *resource.Resource) {
	n.publish(SubjectResourceDeleted, "deleted", r)
}

func (n *Notifier) publish(subject, event string, r *resource.Resource) {
	payload := Event{
		Event:    event,
		RI:       r.RI(),
		Type:     int(r.Type()),
		SRN:      r.StructuredPath(),
		Resource: r.Attributes(),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		n.logger.Error("failed to serialize lifecycle event", "event", event, "ri", r.RI(), "error", err)
		return
	}
	if err := n.publisher.Publish(subject, data); err != nil {
		n.logger.Warn("failed to publish lifecycle event", "subject", subject, "ri", r.RI(), "error", err)
		return
	}
	if n.metrics != nil {
		n.metrics.NotificationsPublished.WithLabelValues(event).Inc()
	}
}
