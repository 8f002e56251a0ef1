package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/asquebay/print-queue-service/internal/model"
)

// Producer отправляет события о заданиях в кафку
// ключ сообщения равен ID получателя, события одного пользователя попадают в одну партицию
type Producer struct {
	writer *kafka.Writer
}

// NewProducer создает новый экземпляр продюсера
func NewProducer(brokers []string, topic string) (*Producer, error) {
	const op = "transport.kafka.NewProducer"

	if len(brokers) == 0 {
		return nil, fmt.Errorf("%s: kafka producer requires at least one broker", op)
	}
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			RequiredAcks:           kafka.RequireAll,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
	}, nil
}

// Publish сериализует событие и пишет его в топик
func (p *Producer) Publish(ctx context.Context, event model.PrintJobEvent) error {
	const op = "transport.kafka.Producer.Publish"

	msg, err := encodeEvent(event)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("%s: failed to write message: %w", op, err)
	}
	return nil
}

// Close дожидается отправки буфера и закрывает соединения
func (p *Producer) Close() error {
	return p.writer.Close()
}

func encodeEvent(event model.PrintJobEvent) (kafka.Message, error) {
	if err := event.Validate(); err != nil {
		return kafka.Message{}, fmt.Errorf("invalid event: %w", err)
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal event: %w", err)
	}

	return kafka.Message{
		Key:   []byte(event.ReceiverIDs[0]),
		Value: value,
		Time:  event.OccurredAt,
	}, nil
}
