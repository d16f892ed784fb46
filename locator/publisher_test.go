package locator

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRun() EstimateRun {
	result := NewEstimator(DefaultParams(), nil).EstimateRecords(paradiseRecords(), nil)
	return EstimateRun{
		RunID:      "run-1",
		ComputedAt: time.Unix(1541658600, 0),
		Result:     result,
	}
}

func TestNewPublisher(t *testing.T) {
	t.Setenv("MQTT_PUBLISH_PREFIX", "")

	p := NewPublisher(nil, "")
	assert.Equal(t, "firesight", p.publishPrefix)
	assert.Equal(t, byte(0), p.qos)
	assert.True(t, p.retain)
	assert.Equal(t, "firesight/estimate", p.Topic())

	assert.Equal(t, "fire/estimate", NewPublisher(nil, "fire").Topic())

	t.Setenv("MQTT_PUBLISH_PREFIX", "env")
	assert.Equal(t, "env/estimate", NewPublisher(nil, "fire").Topic())
}

func TestPublisher_SetQoS(t *testing.T) {
	p := NewPublisher(nil, "x")
	p.SetQoS(2)
	assert.Equal(t, byte(2), p.qos)
	p.SetQoS(3)
	assert.Equal(t, byte(2), p.qos, "invalid QoS is ignored")

	p.SetRetain(false)
	assert.False(t, p.retain)
}

func TestNewEstimateMessage(t *testing.T) {
	msg := NewEstimateMessage(testRun())

	assert.Equal(t, "run-1", msg.RunID)
	assert.Equal(t, int64(1541658600), msg.Timestamp)
	assert.Equal(t, OutcomeOK, msg.Outcome)
	require.NotNil(t, msg.Estimate)
	assert.Equal(t, 3, msg.Observations)
	assert.Equal(t, 0, msg.Rejected)
	assert.Equal(t, []string{"a", "b", "c"}, msg.Contributors)
	assert.True(t, msg.InsideHull)

	empty := NewEstimateMessage(EstimateRun{Result: Result{Outcome: OutcomeInsufficientObservations}})
	assert.Nil(t, empty.Estimate)
	assert.Empty(t, empty.Contributors)
}

func TestPublisher_WithMock(t *testing.T) {
	t.Setenv("MQTT_PUBLISH_PREFIX", "")
	m := NewMockClient()
	m.SetConnected(true)

	p := NewPublisher(m, "test")
	require.NoError(t, p.PublishEstimate(testRun()))

	published := m.Published()
	require.Len(t, published, 1)
	assert.Equal(t, "test/estimate", published[0].Topic)
	assert.True(t, published[0].Retain)
	assert.Equal(t, byte(0), published[0].QoS)

	var msg EstimateMessage
	require.NoError(t, json.Unmarshal(published[0].Payload, &msg))
	assert.Equal(t, "run-1", msg.RunID)
	require.NotNil(t, msg.Estimate)
	assert.InDelta(t, 39.823426, msg.Estimate.Lat, 1e-6)
}

func TestPublisher_PublishesMissingEstimate(t *testing.T) {
	m := NewMockClient()
	m.SetConnected(true)

	p := NewPublisher(m, "test")
	run := EstimateRun{RunID: "r", Result: Result{Outcome: OutcomeNoIntersections}}
	require.NoError(t, p.PublishEstimate(run))

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(m.Published()[0].Payload, &raw))
	assert.Nil(t, raw["estimate"])
	assert.Equal(t, "no_intersections", raw["outcome"])
}

func TestPublisher_WithMock_NotConnected(t *testing.T) {
	m := NewMockClient()
	p := NewPublisher(m, "test")

	err := p.PublishEstimate(testRun())
	assert.EqualError(t, err, "MQTT client not connected")

	assert.Error(t, NewPublisher(nil, "test").PublishEstimate(testRun()))
}

func TestPublisher_WithMock_PublishError(t *testing.T) {
	m := NewMockClient()
	m.SetConnected(true)
	m.SetPublishError(errors.New("broker full"))

	err := NewPublisher(m, "test").PublishEstimate(testRun())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker full")
}
