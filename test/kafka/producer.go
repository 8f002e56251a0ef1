// этот код не зависит от приложения,
// и нужен только для ручной проверки доставки уведомлений через кафку
// usage: go run ./test/kafka <printjob_id> <user_id> [message]
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/segmentio/kafka-go"
)

// event повторяет формат события, которое пишет диспетчер
type event struct {
	Type        string    `json:"type"`
	PrintJobID  string    `json:"printjob_id"`
	ReceiverIDs []string  `json:"receiver_ids"`
	Message     string    `json:"message"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func main() {
	// конфигурация из config.yaml
	brokerAddress := "localhost:9092"
	topic := "printjob.events"

	if len(os.Args) < 3 {
		log.Fatalf("usage: %s <printjob_id> <user_id> [message]", os.Args[0])
	}

	msg := event{
		Type:        "printjob.completed",
		PrintJobID:  os.Args[1],
		ReceiverIDs: []string{os.Args[2]},
		Message:     "Your document test.pdf is printed by printer at H6-101",
		OccurredAt:  time.Now().UTC(),
	}
	if len(os.Args) > 3 {
		msg.Message = os.Args[3]
	}

	value, err := json.Marshal(msg)
	if err != nil {
		log.Fatalf("Failed to marshal event: %v", err)
	}

	// настройки писателя (producer-а)
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokerAddress),
		Topic:    topic,
		Balancer: &kafka.Hash{},
	}
	defer writer.Close()

	log.Println("Sending event to Kafka...")
	err = writer.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(os.Args[2]),
			Value: value,
		},
	)
	if err != nil {
		log.Fatalf("Failed to write message: %v", err)
	}
	fmt.Println("Event sent successfully!")
}
