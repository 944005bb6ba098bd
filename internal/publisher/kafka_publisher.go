package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	log "github.com/sirupsen/logrus"

	"donation-service/internal/domain"
)

// SettledPublisher announces committed settlements to the receipt pipeline.
type SettledPublisher interface {
	PublishSettled(ctx context.Context, event domain.SettledEvent) error
}

type KafkaPublisher struct {
	producer *kafka.Producer
	topic    string
}

func NewKafkaPublisher(producer *kafka.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishSettled(ctx context.Context, event domain.SettledEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal settled event: %w", err)
	}

	deliveryChan := make(chan kafka.Event, 1)
	err = p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &p.topic, Partition: kafka.PartitionAny},
		Key:            []byte(event.DonationID),
		Value:          payload,
	}, deliveryChan)
	if err != nil {
		return fmt.Errorf("failed to produce settled event: %w", err)
	}

	select {
	case ev := <-deliveryChan:
		m, ok := ev.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected delivery event type %T", ev)
		}
		if m.TopicPartition.Error != nil {
			return fmt.Errorf("settled event delivery failed: %w", m.TopicPartition.Error)
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	log.WithFields(log.Fields{
		"donation_id": event.DonationID,
		"topic":       p.topic,
	}).Info("Published settled event")
	return nil
}

func (p *KafkaPublisher) Close() {
	p.producer.Flush(5000)
	p.producer.Close()
}
