package feed

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/paulmach/orb"

	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/config"
	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/metrics"
	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/tracker"
)

// collarReading is the JSON payload a GPS collar publishes on
// ranch/<entity>/position.
type collarReading struct {
	EntityID  string    `json:"entity_id"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
}

// MQTTFeed subscribes to collar position topics and forwards decoded
// samples to the ingest queue.
type MQTTFeed struct {
	client mqtt.Client
	topic  string
	submit SubmitFunc
}

// NewMQTTFeed connects to the broker and subscribes. The returned
// feed runs until Close.
func NewMQTTFeed(conf config.MQTTConf, submit SubmitFunc) (*MQTTFeed, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(conf.Broker)
	opts.SetClientID(conf.ClientID)
	opts.SetUsername(conf.Username)
	opts.SetPassword(conf.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		slog.Warn("mqtt connection lost", "err", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect mqtt broker %s: %w", conf.Broker, token.Error())
	}

	f := &MQTTFeed{client: client, topic: conf.Topic, submit: submit}
	if token := client.Subscribe(conf.Topic, 1, f.handle); token.Wait() && token.Error() != nil {
		client.Disconnect(250)
		return nil, fmt.Errorf("subscribe %s: %w", conf.Topic, token.Error())
	}
	slog.Info("mqtt feed subscribed", "broker", conf.Broker, "topic", conf.Topic)
	return f, nil
}

func (f *MQTTFeed) handle(_ mqtt.Client, msg mqtt.Message) {
	var r collarReading
	if err := json.Unmarshal(msg.Payload(), &r); err != nil {
		metrics.SamplesRejected.WithLabelValues("decode").Inc()
		slog.Warn("mqtt payload decode failed", "topic", msg.Topic(), "err", err)
		return
	}
	if r.EntityID == "" {
		r.EntityID = entityFromTopic(msg.Topic())
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	sample := tracker.Sample{
		EntityID:  r.EntityID,
		Position:  orb.Point{r.Lng, r.Lat},
		Timestamp: r.Timestamp,
	}
	if !f.submit(sample) {
		metrics.SamplesRejected.WithLabelValues("queue_full").Inc()
		slog.Warn("ingest queue full, mqtt sample dropped", "entity_id", r.EntityID)
	}
}

// entityFromTopic extracts the collar id from ranch/<id>/position.
func entityFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) >= 2 {
		return parts[1]
	}
	return ""
}

// Close unsubscribes and disconnects.
func (f *MQTTFeed) Close() {
	if token := f.client.Unsubscribe(f.topic); token.Wait() && token.Error() != nil {
		slog.Warn("mqtt unsubscribe failed", "err", token.Error())
	}
	f.client.Disconnect(250)
}
