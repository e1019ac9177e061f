// 文件: pkg/eventbus/nats_consumer.go
// NatsIngress is the mirror of NatsPublisher: it subscribes to the
// agent.events.* subjects another instance published to and re-publishes
// each event onto this instance's local Bus. Unlike Kafka, the NATS
// subject only carries the room category (account vs. user), not the
// specific id, so re-ingested events are republished unscoped and rely
// on wsgateway's own per-connection filtering downstream.

package eventbus

import (
	"encoding/json"
	"fmt"

	"github.com/itrader/agent/pkg/nats"
)

type NatsIngress struct {
	subscriber *nats.Subscriber
	bus        *Bus
}

func NewNatsIngress(url string, bus *Bus) (*NatsIngress, error) {
	ing := &NatsIngress{bus: bus}
	subscriber, err := nats.NewSubscriber(url, ing.handle)
	if err != nil {
		return nil, fmt.Errorf("eventbus: new nats subscriber: %w", err)
	}
	if err := subscriber.Subscribe(natsSubjectPrefix + "account", natsSubjectPrefix + "user"); err != nil {
		subscriber.Close()
		return nil, fmt.Errorf("eventbus: subscribe agent.events: %w", err)
	}
	ing.subscriber = subscriber
	return ing, nil
}

func (ing *NatsIngress) handle(subject string, data []byte) error {
	var wire struct {
		Type      Type  `json:"type"`
		Data      any   `json:"data"`
		Timestamp int64 `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	ing.bus.Publish(New(wire.Type, Room{}, wire.Data, wire.Timestamp))
	return nil
}

func (ing *NatsIngress) Close() error {
	return ing.subscriber.Close()
}
