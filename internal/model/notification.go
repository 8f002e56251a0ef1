package model

import (
	"time"
)

// EventType описывает тип события о задании
type EventType string

const (
	EventPrintJobCompleted EventType = "printjob.completed"
	EventPrintJobFailed    EventType = "printjob.failed"
)

// PrintJobEvent представляет сообщение, которое диспетчер отдаёт в канал уведомлений
type PrintJobEvent struct {
	Type        EventType `json:"type" validate:"required,oneof=printjob.completed printjob.failed"`
	PrintJobID  string    `json:"printjob_id" validate:"required"`
	ReceiverIDs []string  `json:"receiver_ids" validate:"required,gt=0,dive,required"`
	Message     string    `json:"message" validate:"required"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func (e *PrintJobEvent) Validate() error {
	return validate.Struct(e)
}

// Notification представляет сохранённое уведомление пользователю
type Notification struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Message     string    `json:"message"`
	ReceiverIDs []string  `json:"receiver_ids"`
	PrintJobID  string    `json:"printjob_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

const NotificationTypeNotify = "notify"
