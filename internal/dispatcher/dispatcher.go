// Package dispatcher разгребает очереди принтеров
// на каждый принтер приходится ровно один worker, который спит, пока его не разбудят
package dispatcher

import (
	"context"
	"time"

	"github.com/asquebay/print-queue-service/internal/model"
)

// Registry описывает операции реестра принтеров, нужные циклу
// каждая операция выполняется в своей транзакции под блокировкой строки принтера
type Registry interface {
	ListPrinterIDs(ctx context.Context) ([]string, error)
	PeekHead(ctx context.Context, printerID string) (model.QueueHead, error)
	PopOrphan(ctx context.Context, printerID, jobID string) (model.Printer, error)
	FinishHead(ctx context.Context, printerID, jobID string, status model.PrintJobStatus) (model.Printer, error)
}

// JobStore отвечает за чтение задания и отметку о начале печати
type JobStore interface {
	GetPrintJob(ctx context.Context, id string) (model.PrintJob, error)
	UpdatePrintJobStatus(ctx context.Context, id string, status model.PrintJobStatus) error
}

// Device печатает одно задание, блокируясь до конца печати или отмены ctx
type Device interface {
	Print(ctx context.Context, job model.PrintJob) error
}

// Notifier принимает события о завершении заданий
type Notifier interface {
	Publish(ctx context.Context, event model.PrintJobEvent) error
}

// Lease гарантирует, что очередь принтера разгребает только один процесс
// повторный Acquire тем же держателем продлевает аренду
type Lease interface {
	Acquire(ctx context.Context, printerID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, printerID string) error
}

// Options задаёт политику повторов цикла
type Options struct {
	MaxRetries int
	RetryDelay time.Duration
	MaxBackoff time.Duration
	LeaseRetry time.Duration
	LeaseTTL   time.Duration
}

// NopLease подходит для единственного процесса и всегда успешна
type NopLease struct{}

func (NopLease) Acquire(context.Context, string, time.Duration) (bool, error) { return true, nil }

func (NopLease) Release(context.Context, string) error { return nil }

// Backoff возвращает задержку перед n-й повторной попыткой: base·2^n, но не больше limit
func Backoff(base, limit time.Duration, n int) time.Duration {
	if base <= 0 {
		return 0
	}
	if n < 0 {
		n = 0
	}
	if n > 30 {
		n = 30
	}
	d := base * time.Duration(1<<uint(n))
	if limit > 0 && (d > limit || d <= 0) {
		d = limit
	}
	return d
}

// sleep ждёт d или отмены ctx, false означает отмену
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
