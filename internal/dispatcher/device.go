package dispatcher

import (
	"context"
	"time"

	"github.com/asquebay/print-queue-service/internal/model"
)

// SimulatedDevice имитирует печать задержкой, пропорциональной числу листов
type SimulatedDevice struct {
	perPage time.Duration
}

func NewSimulatedDevice(perPage time.Duration) *SimulatedDevice {
	return &SimulatedDevice{perPage: perPage}
}

// Estimate оценивает, сколько займёт печать задания
func (d *SimulatedDevice) Estimate(job model.PrintJob) time.Duration {
	return time.Duration(job.NumPages) * d.perPage
}

func (d *SimulatedDevice) Print(ctx context.Context, job model.PrintJob) error {
	t := time.NewTimer(d.Estimate(job))
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
