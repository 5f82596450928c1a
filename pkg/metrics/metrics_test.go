package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncReceived("group")
		m.IncPublished("user")
		m.IncPublishFailure()
		m.IncError()
		m.IncStateTransition("connected")
		m.SetRoomMembers("demo", 3)
		m.IncRelayed("members")
	})
}

func TestMetrics_Collect(t *testing.T) {
	m := New()
	m.IncReceived("group")
	m.IncReceived("group")
	m.IncReceived("members")
	m.SetRoomMembers("demo", 2)

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "lanchat_client_messages_received_count")
	assert.Contains(t, names, "lanchat_room_members")

	var body []byte
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err = io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `lanchat_client_messages_received_count{kind="group"} 2`)
	assert.Contains(t, string(body), `lanchat_room_members{room="demo"} 2`)
}
