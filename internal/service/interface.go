package service

import (
	"context"

	"github.com/asquebay/print-queue-service/internal/model"
)

// PrinterRepository определяет контракт реестра принтеров
// все изменения статуса и очереди выполняются под блокировкой строки принтера
type PrinterRepository interface {
	CreatePrinters(ctx context.Context, printers []model.Printer) error
	GetPrinter(ctx context.Context, id string) (model.Printer, error)
	SearchPrinters(ctx context.Context, filter model.PrinterFilter) ([]model.Printer, error)
	Enqueue(ctx context.Context, jobID, printerID string) (model.EnqueueResult, error)
	SetMaintenance(ctx context.Context, printerID string, on bool) (model.Printer, error)
}

// PrintJobRepository определяет контракт хранилища заданий
// Admit атомарно списывает квоту пользователя и сохраняет задание, возвращая остаток квоты
type PrintJobRepository interface {
	Admit(ctx context.Context, job model.PrintJob) (model.PrintJob, int, error)
	GetPrintJob(ctx context.Context, id string) (model.PrintJob, error)
	SearchPrintJobs(ctx context.Context, filter model.PrintJobFilter) ([]model.PrintJob, error)
}

// UserProvider абстрагирует внешнюю службу квот, диспетчеру нужно только чтение
type UserProvider interface {
	GetUser(ctx context.Context, id string) (model.User, error)
}

// FileProvider абстрагирует внешнюю службу метаданных файлов
type FileProvider interface {
	GetFile(ctx context.Context, id string) (model.File, error)
}

// NotificationRepository определяет контракт хранилища уведомлений
type NotificationRepository interface {
	CreateNotification(ctx context.Context, n model.Notification) error
	ListNotificationsForUser(ctx context.Context, userID string) ([]model.Notification, error)
	ListNotifications(ctx context.Context) ([]model.Notification, error)
}

// NotificationCache определяет контракт для in-memory кэша уведомлений по пользователям
type NotificationCache interface {
	Add(n model.Notification)
	Get(userID string) ([]model.Notification, bool)
	Set(userID string, items []model.Notification)
	LoadAll(items []model.Notification)
}

// Dispatcher будит цикл обработки очереди принтера
type Dispatcher interface {
	Start(printerID string)
}
