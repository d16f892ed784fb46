package locator

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// EstimateMessage is the payload published to {prefix}/estimate.
type EstimateMessage struct {
	RunID        string    `json:"runId"`
	Timestamp    int64     `json:"timestamp"`
	Outcome      Outcome   `json:"outcome"`
	Estimate     *Estimate `json:"estimate"`
	Observations int       `json:"observations"`
	Rejected     int       `json:"rejected"`
	Contributors []string  `json:"contributors,omitempty"`
	InsideHull   bool      `json:"insideHull"`
}

// NewEstimateMessage summarizes an estimation run for publishing.
func NewEstimateMessage(run EstimateRun) EstimateMessage {
	msg := EstimateMessage{
		RunID:        run.RunID,
		Timestamp:    run.ComputedAt.Unix(),
		Outcome:      run.Result.Outcome,
		Estimate:     run.Result.Estimate,
		Observations: len(run.Result.Observations),
		Rejected:     len(run.Result.Rejected),
		InsideHull:   run.Result.InsideHull,
	}
	if sel := run.Result.Selection; sel != nil {
		for _, idx := range sel.Contributors {
			if idx >= 0 && idx < len(run.Result.Observations) {
				msg.Contributors = append(msg.Contributors, run.Result.Observations[idx].ID)
			}
		}
	}
	return msg
}

// Publisher publishes estimation results to MQTT.
type Publisher struct {
	client        mqtt.Client
	publishPrefix string
	qos           byte
	retain        bool
}

// NewPublisher creates a publisher. The topic prefix comes from
// MQTT_PUBLISH_PREFIX, then prefix, then "firesight".
func NewPublisher(client mqtt.Client, prefix string) *Publisher {
	return &Publisher{
		client:        client,
		publishPrefix: envOr("MQTT_PUBLISH_PREFIX", prefix, "firesight"),
		qos:           0,
		retain:        true, // late subscribers see the current estimate
	}
}

// Topic returns the estimate topic.
func (p *Publisher) Topic() string {
	return fmt.Sprintf("%s/estimate", p.publishPrefix)
}

// PublishEstimate publishes one estimation run.
func (p *Publisher) PublishEstimate(run EstimateRun) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	payload, err := json.Marshal(NewEstimateMessage(run))
	if err != nil {
		return fmt.Errorf("marshaling estimate: %w", err)
	}

	topic := p.Topic()
	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}

	if e := run.Result.Estimate; e != nil {
		log.Printf("[MQTT] published estimate %s: %.6f, %.6f", run.RunID, e.Lat, e.Lon)
	} else {
		log.Printf("[MQTT] published estimate %s: no location (%s)", run.RunID, run.Result.Outcome)
	}
	return nil
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2)
func (p *Publisher) SetQoS(qos byte) {
	if qos <= 2 {
		p.qos = qos
	}
}

// SetRetain sets whether published messages should be retained by the broker
func (p *Publisher) SetRetain(retain bool) {
	p.retain = retain
}
