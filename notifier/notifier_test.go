package notifier

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/cse/resource"
)

type capturedMessage struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	messages []capturedMessage
	fail     bool
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	if p.fail {
		return errors.New("connection lost")
	}
	p.messages = append(p.messages, capturedMessage{subject: subject, data: data})
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testResource(t *testing.T) *resource.Resource {
	t.Helper()
	r, err := resource.FromAttributes(map[string]any{
		"ty": int(resource.TypeCNT), "ri": "cnt1", "rn": "sensor", "pi": "cb0",
	})
	require.NoError(t, err)
	r.SetStructuredPath("cse-in/sensor")
	return r
}

func TestLifecycleEventSubjectsAndPayload(t *testing.T) {
	pub := &fakePublisher{}
	n := New(pub, testLogger(), nil)
	r := testResource(t)

	n.ResourceCreated(r)
	n.ResourceUpdated(r)
	n.ResourceDeleted(r)

	require.Len(t, pub.messages, 3)
	assert.Equal(t, SubjectResourceCreated, pub.messages[0].subject)
	assert.Equal(t, SubjectResourceUpdated, pub.messages[1].subject)
	assert.Equal(t, SubjectResourceDeleted, pub.messages[2].subject)

	var event Event
	require.NoError(t, json.Unmarshal(pub.messages[0].data, &event))
	assert.Equal(t, "created", event.Event)
	assert.Equal(t, "cnt1", event.RI)
	assert.Equal(t, int(resource.TypeCNT), event.Type)
	assert.Equal(t, "cse-in/sensor", event.SRN)
	assert.Equal(t, "sensor", event.Resource["rn"])
}

func TestPublishFailureIsSwallowed(t *testing.T) {
	pub := &fakePublisher{fail: true}
	n := New(pub, testLogger(), nil)

	// Must not panic or surface the error; lifecycle events are best-effort.
	n.ResourceCreated(testResource(t))
	assert.Empty(t, pub.messages)
}
