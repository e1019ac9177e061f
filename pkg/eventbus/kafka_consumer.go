// 文件: pkg/eventbus/kafka_consumer.go
// KafkaIngress is the mirror of KafkaPublisher: it consumes the
// agent.events topic another instance published to and re-publishes
// each event onto this instance's local Bus, so every replica's
// wsgateway Hub sees the same event stream regardless of which
// instance originally handled the tick that produced it.

package eventbus

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/itrader/agent/pkg/kafka"
)

type KafkaIngress struct {
	consumer *kafka.Consumer
	bus      *Bus
}

// NewKafkaIngress joins groupID's consumer group on brokers and starts
// forwarding agent.events into bus. groupID must be unique per
// deployment (not per instance): sharing it across every replica's
// ingress keeps each event delivered exactly once into the cluster,
// which then fans it out locally to every websocket client of whichever
// instance received it.
func NewKafkaIngress(brokers []string, groupID string, bus *Bus) (*KafkaIngress, error) {
	cfg := kafka.DefaultConsumerConfig(brokers, groupID, []string{kafkaTopic})
	ing := &KafkaIngress{bus: bus}
	consumer, err := kafka.NewConsumer(cfg, ing.handle)
	if err != nil {
		return nil, fmt.Errorf("eventbus: new kafka consumer: %w", err)
	}
	ing.consumer = consumer
	consumer.Start()
	return ing, nil
}

func (ing *KafkaIngress) handle(topic string, partition int32, offset int64, key, value []byte) error {
	var wire struct {
		Type      Type  `json:"type"`
		Data      any   `json:"data"`
		Timestamp int64 `json:"timestamp"`
	}
	if err := json.Unmarshal(value, &wire); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	ing.bus.Publish(New(wire.Type, roomFromKey(string(key)), wire.Data, wire.Timestamp))
	return nil
}

// roomFromKey inverts wireMessage.Key so a re-ingested event lands back
// in the same room it was published from.
func roomFromKey(key string) Room {
	if rest, ok := strings.CutPrefix(key, "account:"); ok {
		if id, err := strconv.ParseInt(rest, 10, 64); err == nil {
			return Room{Account: id}
		}
	}
	if rest, ok := strings.CutPrefix(key, "user:"); ok {
		return Room{User: rest}
	}
	return Room{}
}

func (ing *KafkaIngress) Close() error {
	if err := ing.consumer.Stop(); err != nil {
		log.Printf("[EventBus] kafka ingress stop: %v", err)
		return err
	}
	return nil
}
