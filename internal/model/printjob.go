package model

import (
	"time"
)

// PrintJobStatus описывает состояние задания печати
type PrintJobStatus string

const (
	PrintJobInQueue    PrintJobStatus = "in_queue"
	PrintJobProcessing PrintJobStatus = "processing"
	PrintJobComplete   PrintJobStatus = "complete"
	PrintJobFailed     PrintJobStatus = "failed"
)

// Finished сообщает, что задание больше не может стоять в очереди
func (s PrintJobStatus) Finished() bool {
	return s == PrintJobComplete || s == PrintJobFailed
}

func (s PrintJobStatus) Valid() bool {
	switch s {
	case PrintJobInQueue, PrintJobProcessing, PrintJobComplete, PrintJobFailed:
		return true
	}
	return false
}

// PrintJob представляет принятое задание на печать документа на конкретном принтере
// File, User и Printer заполняются только для отображения
type PrintJob struct {
	ID        string         `json:"id"`
	FileID    string         `json:"file_id"`
	UserID    string         `json:"user_id"`
	PrinterID string         `json:"printer_id"`
	PageSize  []float64      `json:"page_size"`
	Copies    int            `json:"copies"`
	NumPages  int            `json:"num_pages"`
	Duplex    bool           `json:"duplex"`
	Status    PrintJobStatus `json:"print_status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`

	File    *File       `json:"file,omitempty"`
	User    *User       `json:"user,omitempty"`
	Printer *PrinterRef `json:"printer,omitempty"`
}

// CreatePrintJobRequest содержит тело POST /printjob
type CreatePrintJobRequest struct {
	FileID    string    `json:"file_id" validate:"required"`
	UserID    string    `json:"user_id" validate:"required"`
	PrinterID string    `json:"printer_id" validate:"required"`
	PageSize  []float64 `json:"page_size,omitempty" validate:"omitempty,len=2,dive,gt=0,lte=100000"`
	Duplex    *bool     `json:"duplex,omitempty"`
	Copies    int       `json:"copies" validate:"gte=0"`
}

func (r *CreatePrintJobRequest) Validate() error {
	return validate.Struct(r)
}

// PrintJobFilter задаёт фильтр выборки заданий, пустые поля не учитываются
type PrintJobFilter struct {
	UserID    string
	FileID    string
	PrinterID string
	Status    PrintJobStatus
	From      *time.Time
	To        *time.Time
}

// EnqueueResult содержит результат постановки задания в очередь принтера
type EnqueueResult struct {
	Position     int
	Printer      Printer
	WasAvailable bool
}

// SubmitResult содержит ответ на POST /printjob
type SubmitResult struct {
	Message  string        `json:"message"`
	PrintJob PrintJob      `json:"printJob"`
	Position int           `json:"position"`
	Printer  PrinterSimple `json:"printer"`
}
