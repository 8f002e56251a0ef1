package model

import (
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
)

// PrinterStatus описывает состояние принтера
type PrinterStatus string

const (
	PrinterAvailable     PrinterStatus = "available"
	PrinterBusy          PrinterStatus = "busy"
	PrinterInMaintenance PrinterStatus = "in_maintenance"
)

// Printer представляет физическое устройство вместе с его очередью заданий
// порядок Queue значим: голова очереди печатается следующей
type Printer struct {
	ID        string        `json:"id"`
	Location  string        `json:"location"`
	Code      string        `json:"code"`
	Status    PrinterStatus `json:"status"`
	Queue     []string      `json:"queue"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// PrinterSimple содержит сокращённое представление принтера для ответа на постановку в очередь
type PrinterSimple struct {
	ID       string        `json:"id"`
	Code     string        `json:"code"`
	Location string        `json:"location"`
	Status   PrinterStatus `json:"status"`
	Queue    []string      `json:"queue"`
}

// PrinterRef содержит ссылку на принтер без очереди, чтобы задание не ссылалось само на себя
type PrinterRef struct {
	ID       string `json:"id"`
	Code     string `json:"code"`
	Location string `json:"location"`
}

func (p Printer) Simple() PrinterSimple {
	return PrinterSimple{
		ID:       p.ID,
		Code:     p.Code,
		Location: p.Location,
		Status:   p.Status,
		Queue:    slices.Clone(p.Queue),
	}
}

func (p Printer) Ref() *PrinterRef {
	return &PrinterRef{ID: p.ID, Code: p.Code, Location: p.Location}
}

// Position возвращает позицию задания в очереди или -1
func (p Printer) Position(jobID string) int {
	return slices.Index(p.Queue, jobID)
}

// SettleStatus пересчитывает статус по содержимому очереди
// обслуживание имеет приоритет и не снимается автоматически
func (p *Printer) SettleStatus() {
	if p.Status == PrinterInMaintenance {
		return
	}
	if len(p.Queue) == 0 {
		p.Status = PrinterAvailable
		return
	}
	p.Status = PrinterBusy
}

// CreatePrinterRequest содержит запрос оператора на регистрацию принтера
type CreatePrinterRequest struct {
	Location string `json:"location" validate:"required"`
	Code     string `json:"code" validate:"required"`
}

// SetMaintenanceRequest включает или снимает режим обслуживания
type SetMaintenanceRequest struct {
	InMaintenance *bool `json:"in_maintenance" validate:"required"`
}

// PrinterFilter задаёт фильтр для поиска принтеров
type PrinterFilter struct {
	Location string
	Code     string
}

var validate = validator.New()

func (r *CreatePrinterRequest) Validate() error {
	return validate.Struct(r)
}

func (r *SetMaintenanceRequest) Validate() error {
	return validate.Struct(r)
}

// QueueHead содержит результат чтения головы очереди под блокировкой
type QueueHead struct {
	JobID  string
	Empty  bool
	Paused bool
}
