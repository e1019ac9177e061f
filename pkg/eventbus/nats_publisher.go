// 文件: pkg/eventbus/nats_publisher.go
// NatsPublisher is the lightweight alternative to KafkaPublisher, the
// same choice pkg/fund offers between EventPublisher and
// NatsEventPublisher: NATS for local/dev, Kafka for production fan-out.

package eventbus

import (
	"fmt"
	"log"

	"github.com/itrader/agent/pkg/nats"
)

const natsSubjectPrefix = "agent.events."

func subjectFor(e Event) string {
	if e.Room().Account != 0 {
		return natsSubjectPrefix + "account"
	}
	return natsSubjectPrefix + "user"
}

type NatsPublisher struct {
	publisher *nats.Publisher
}

func NewNatsPublisher(url string) (*NatsPublisher, error) {
	publisher, err := nats.NewPublisher(url)
	if err != nil {
		return nil, fmt.Errorf("eventbus: new nats publisher: %w", err)
	}
	return &NatsPublisher{publisher: publisher}, nil
}

func (p *NatsPublisher) Publish(e Event) error {
	return p.publisher.Publish(subjectFor(e), e)
}

func (p *NatsPublisher) Close() error {
	p.publisher.Close()
	return nil
}

func (p *NatsPublisher) Forward(bus *Bus) {
	sub := bus.Subscribe()
	go func() {
		for e := range sub.Events() {
			if err := p.Publish(e); err != nil {
				log.Printf("[EventBus] nats publish failed: %v", err)
			}
		}
	}()
}
