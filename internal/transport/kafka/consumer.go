package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/asquebay/print-queue-service/internal/model"
)

// NotificationCreator — это интерфейс, который абстрагирует консьюмер
// от конкретной реализации сервисного слоя
type NotificationCreator interface {
	CreatePrintjobNotification(ctx context.Context, event model.PrintJobEvent) (model.Notification, error)
}

// Consumer доставляет события о заданиях из кафки в хранилище уведомлений
type Consumer struct {
	reader  *kafka.Reader
	service NotificationCreator
	log     *slog.Logger
}

// NewConsumer создает новый экземпляр консьюмера
func NewConsumer(brokers []string, topic, groupID string, service NotificationCreator, log *slog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   topic,
		// новая группа читает топик с начала, чтобы не потерять события, отправленные до её создания
		StartOffset: kafka.FirstOffset,
	})

	return &Consumer{
		reader:  reader,
		service: service,
		log:     log,
	}
}

// Run запускает цикл чтения сообщений из Kafka
// эта функция блокирующая, поэтому она запускается в отдельной горутине
func (c *Consumer) Run(ctx context.Context) {
	log := c.log.With(slog.String("component", "kafka_consumer"))
	log.Info("Kafka consumer started")

	for {
		// FetchMessage блокирует до тех пор, пока не придет новое сообщение или не возникнет ошибка
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			// если контекст был отменен во время ожидания, это нормальное завершение
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				log.Info("Context cancelled, stopping consumer.")
				return
			}
			// если ридер был закрыт, тоже выходим
			if errors.Is(err, io.EOF) {
				log.Info("Kafka reader closed")
				return
			}
			log.Error("failed to fetch message", slog.String("error", err.Error()))
			continue // пробуем снова
		}

		log.Debug("received message", slog.String("topic", msg.Topic), slog.Int("partition", msg.Partition), slog.Int64("offset", msg.Offset))

		// 1. Пытаемся обработать
		if err := c.handleMessage(ctx, msg); err != nil {
			log.Error("failed to handle message", slog.String("error", err.Error()))
			// сообщение НЕ подтверждаем — пусть Kafka отдаст его снова
			continue
		}

		// 2. Всё прошло — фиксируем offset
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			log.Error("failed to commit message", slog.String("error", err.Error()))
		}
	}
}

// handleMessage парсит и обрабатывает одно сообщение
// nil означает, что сообщение можно подтвердить
func (c *Consumer) handleMessage(ctx context.Context, msg kafka.Message) error {
	var event model.PrintJobEvent

	if err := json.Unmarshal(msg.Value, &event); err != nil {
		// перечитывать битое сообщение бессмысленно
		c.log.Warn("failed to unmarshal message, skipping", slog.String("error", err.Error()))
		return nil
	}

	if err := event.Validate(); err != nil {
		c.log.Warn("message validation failed, skipping",
			slog.String("error", err.Error()),
			slog.String("printjob_id", event.PrintJobID),
		)
		return nil
	}

	n, err := c.service.CreatePrintjobNotification(ctx, event)
	if err != nil {
		// задание или получатель удалены: повтор ничего не изменит
		if errors.Is(err, model.ErrNotFound) || errors.Is(err, model.ErrInvalidArgument) {
			c.log.Warn("notification rejected, skipping",
				slog.String("error", err.Error()),
				slog.String("printjob_id", event.PrintJobID),
			)
			return nil
		}
		return err
	}

	c.log.Info("notification delivered",
		slog.String("notification_id", n.ID),
		slog.String("printjob_id", event.PrintJobID),
	)
	return nil
}

// gracefull shutdown консьюмера
func (c *Consumer) Close() error {
	c.log.Info("Closing kafka consumer")
	return c.reader.Close()
}
