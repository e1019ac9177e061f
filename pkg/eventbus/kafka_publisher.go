// 文件: pkg/eventbus/kafka_publisher.go
// KafkaPublisher fans Bus events out to Kafka for out-of-process
// consumers, the same dual-backend shape as the fund ledger's
// EventPublisher/NatsEventPublisher pair.

package eventbus

import (
	"fmt"
	"log"
	"strconv"

	"github.com/itrader/agent/pkg/kafka"
)

const kafkaTopic = "agent.events"

// wireMessage adapts an Event to kafka.Message: one topic for every
// event, partitioned by room so ordering is preserved within a room.
type wireMessage struct{ Event }

func (m wireMessage) Topic() string { return kafkaTopic }

func (m wireMessage) Key() string {
	if m.Room().Account != 0 {
		return "account:" + strconv.FormatInt(m.Room().Account, 10)
	}
	return "user:" + m.Room().User
}

func (m wireMessage) Value() ([]byte, error) { return m.Marshal() }

type KafkaPublisher struct {
	producer *kafka.Producer
}

func NewKafkaPublisher(brokers []string) (*KafkaPublisher, error) {
	cfg := kafka.DefaultProducerConfig(brokers)
	producer, err := kafka.NewProducer(cfg)
	if err != nil {
		return nil, fmt.Errorf("eventbus: new kafka producer: %w", err)
	}
	return &KafkaPublisher{producer: producer}, nil
}

func (p *KafkaPublisher) Publish(e Event) error {
	return p.producer.Send(wireMessage{e})
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// Forward subscribes to bus and publishes every event to Kafka until
// the subscription is cancelled via bus.Unsubscribe.
func (p *KafkaPublisher) Forward(bus *Bus) {
	sub := bus.Subscribe()
	go func() {
		for e := range sub.Events() {
			if err := p.Publish(e); err != nil {
				log.Printf("[EventBus] kafka publish failed: %v", err)
			}
		}
	}()
}
