package broadcast

import (
	"context"
	"fmt"
	"strings"

	"github.com/burnspe2144/env-reporting-backend/internal/domain"

	json "github.com/goccy/go-json"
)

// Publisher is the part of the MQTT client the broadcaster needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// MQTTBroadcaster publishes to <prefix>/<project_number>/<event>.
type MQTTBroadcaster struct {
	publisher Publisher
	prefix    string
	qos       byte
}

func NewMQTTBroadcaster(publisher Publisher, prefix string, qos int) *MQTTBroadcaster {
	if qos < 0 || qos > 2 {
		qos = 1
	}
	return &MQTTBroadcaster{publisher: publisher, prefix: strings.TrimSuffix(prefix, "/"), qos: byte(qos)}
}

var _ Broadcaster = (*MQTTBroadcaster)(nil)

// Topic returns the topic an event is published on.
func (b *MQTTBroadcaster) Topic(event domain.LayerEvent) string {
	project := event.ProjectNumber
	if project == "" {
		project = "_"
	}
	// MQTT wildcards and separators are not allowed inside a level
	project = strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(project)
	return fmt.Sprintf("%s/%s/%s", b.prefix, project, event.Name)
}

func (b *MQTTBroadcaster) Publish(_ context.Context, event domain.LayerEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.publisher.Publish(b.Topic(event), b.qos, false, payload)
}
