package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/asquebay/print-queue-service/internal/model"
)

// State описывает состояние цикла принтера
type State int32

const (
	// StateIdle: цикл ждёт сигнала
	StateIdle State = iota
	// StateDraining: цикл разгребает очередь
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDraining:
		return "draining"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

const releaseTimeout = 5 * time.Second

// worker ведёт цикл одного принтера
type worker struct {
	sup       *Supervisor
	printerID string
	signal    chan struct{}
	state     atomic.Int32
	log       *slog.Logger
}

func newWorker(sup *Supervisor, printerID string) *worker {
	return &worker{
		sup:       sup,
		printerID: printerID,
		signal:    make(chan struct{}, 1),
		log:       sup.log.With(slog.String("printer_id", printerID)),
	}
}

// wake не блокируется: если сигнал уже ждёт, второй не нужен
func (w *worker) wake() {
	select {
	case w.signal <- struct{}{}:
	default:
	}
}

func (w *worker) State() State {
	return State(w.state.Load())
}

func (w *worker) run(ctx context.Context) {
	defer w.sup.wg.Done()

	for {
		w.state.Store(int32(StateIdle))

		select {
		case <-ctx.Done():
			return
		case <-w.signal:
		}

		w.state.Store(int32(StateDraining))
		w.drain(ctx)
	}
}

// drain крутит шаги цикла, пока очередь не опустеет
func (w *worker) drain(ctx context.Context) {
	ok, err := w.sup.lease.Acquire(ctx, w.printerID, w.sup.opts.LeaseTTL)
	if err != nil || !ok {
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			w.log.Warn("failed to acquire dispatch lease", slog.String("error", err.Error()))
		} else {
			w.log.Debug("dispatch lease is held by another process")
		}
		time.AfterFunc(w.sup.opts.LeaseRetry, w.wake)
		return
	}

	leaseCtx, lost := w.keepLease(ctx)
	defer func() {
		lost()
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if err := w.sup.lease.Release(rctx, w.printerID); err != nil {
			w.log.Warn("failed to release dispatch lease", slog.String("error", err.Error()))
		}
	}()

	failures := 0
	for leaseCtx.Err() == nil {
		more, err := w.step(leaseCtx)
		if err != nil {
			if leaseCtx.Err() != nil {
				break
			}
			delay := Backoff(w.sup.opts.RetryDelay, w.sup.opts.MaxBackoff, failures)
			failures++
			w.log.Warn("dispatch step failed, backing off",
				slog.String("error", err.Error()),
				slog.Duration("delay", delay),
			)
			if !sleep(leaseCtx, delay) {
				break
			}
			continue
		}

		failures = 0
		if !more {
			return
		}
	}

	// аренду потеряли посреди очереди: пробуем забрать её позже
	if ctx.Err() == nil {
		w.log.Warn("dispatch lease lost, loop will retry")
		time.AfterFunc(w.sup.opts.LeaseRetry, w.wake)
	}
}

// keepLease продлевает аренду, пока идёт разгребание очереди
// при потере аренды возвращённый контекст отменяется
func (w *worker) keepLease(ctx context.Context) (context.Context, context.CancelFunc) {
	leaseCtx, cancel := context.WithCancel(ctx)

	ttl := w.sup.opts.LeaseTTL
	if ttl <= 0 {
		return leaseCtx, cancel
	}

	go func() {
		ticker := time.NewTicker(ttl / 3)
		defer ticker.Stop()

		for {
			select {
			case <-leaseCtx.Done():
				return
			case <-ticker.C:
				ok, err := w.sup.lease.Acquire(leaseCtx, w.printerID, ttl)
				if leaseCtx.Err() != nil {
					return
				}
				if err != nil {
					// аренда действует до истечения ttl, пробуем на следующем тике
					w.log.Warn("failed to extend dispatch lease", slog.String("error", err.Error()))
					continue
				}
				if !ok {
					cancel()
					return
				}
			}
		}
	}()

	return leaseCtx, cancel
}

// step обрабатывает голову очереди, more=false означает, что цикл можно усыпить
func (w *worker) step(ctx context.Context) (more bool, err error) {
	const op = "dispatcher.worker.step"

	// 1. Голова очереди
	head, err := w.sup.registry.PeekHead(ctx, w.printerID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			w.log.Warn("printer is gone, loop stays idle")
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if head.Paused {
		w.log.Info("printer is in maintenance, loop paused")
		return false, nil
	}
	if head.Empty {
		return false, nil
	}

	log := w.log.With(slog.String("printjob_id", head.JobID))

	// 2. Само задание
	job, err := w.sup.jobs.GetPrintJob(ctx, head.JobID)
	if errors.Is(err, model.ErrNotFound) {
		err = fmt.Errorf("%w: %w", model.ErrOrphanedJob, err)
	}
	if err == nil && job.Status.Finished() {
		err = fmt.Errorf("%w: printjob is already %s", model.ErrOrphanedJob, job.Status)
	}
	if errors.Is(err, model.ErrOrphanedJob) {
		log.Warn("dropping orphaned queue entry", slog.String("error", err.Error()))
		if _, err := w.sup.registry.PopOrphan(ctx, w.printerID, head.JobID); err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	// 3. Печать
	if job.Status != model.PrintJobProcessing {
		if err := w.sup.jobs.UpdatePrintJobStatus(ctx, job.ID, model.PrintJobProcessing); err != nil {
			log.Warn("failed to mark printjob as processing", slog.String("error", err.Error()))
		}
	}

	status := model.PrintJobComplete
	if err := w.print(ctx, job); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		log.Error("printjob failed, moving it out of the queue",
			slog.String("error", err.Error()),
			slog.Int("attempts", w.sup.opts.MaxRetries+1),
		)
		status = model.PrintJobFailed
	}

	// 4. Снимаем с головы очереди
	printer, err := w.finish(ctx, job.ID, status)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrHeadMismatch):
			log.Error("queue head changed while printing", slog.String("error", err.Error()))
			return true, nil
		case errors.Is(err, model.ErrNotFound):
			log.Warn("printer is gone after printing")
			return false, nil
		}
		return false, err
	}

	log.Info("printjob finished", slog.String("status", string(status)), slog.Int("queue_len", len(printer.Queue)))

	// 5. Уведомление, его потеря ничего не откатывает
	w.notify(ctx, job, printer, status)

	return true, nil
}

// print повторяет печать до MaxRetries раз с нарастающей задержкой
func (w *worker) print(ctx context.Context, job model.PrintJob) error {
	var err error
	for attempt := 0; attempt <= w.sup.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if !sleep(ctx, Backoff(w.sup.opts.RetryDelay, w.sup.opts.MaxBackoff, attempt-1)) {
				return ctx.Err()
			}
		}

		if err = w.sup.device.Print(ctx, job); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.log.Warn("print attempt failed",
			slog.String("printjob_id", job.ID),
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()),
		)
	}
	return err
}

// finish повторяет FinishHead, пока хранилище не ответит
// напечатанное задание нельзя потерять, поэтому сдаёмся только на постоянных ошибках
func (w *worker) finish(ctx context.Context, jobID string, status model.PrintJobStatus) (model.Printer, error) {
	for n := 0; ; n++ {
		p, err := w.sup.registry.FinishHead(ctx, w.printerID, jobID, status)
		if err == nil {
			return p, nil
		}
		if errors.Is(err, model.ErrHeadMismatch) || errors.Is(err, model.ErrNotFound) {
			return model.Printer{}, err
		}

		delay := Backoff(w.sup.opts.RetryDelay, w.sup.opts.MaxBackoff, n)
		w.log.Warn("failed to finish printjob, retrying",
			slog.String("printjob_id", jobID),
			slog.String("error", err.Error()),
			slog.Duration("delay", delay),
		)
		if !sleep(ctx, delay) {
			return model.Printer{}, ctx.Err()
		}
	}
}

func (w *worker) notify(ctx context.Context, job model.PrintJob, printer model.Printer, status model.PrintJobStatus) {
	fileName := job.FileID
	if job.File != nil && job.File.Name != "" {
		fileName = job.File.Name
	}

	event := model.PrintJobEvent{
		Type:        model.EventPrintJobCompleted,
		PrintJobID:  job.ID,
		ReceiverIDs: []string{job.UserID},
		Message:     fmt.Sprintf("Your document %s is printed by printer at %s", fileName, printer.Location),
		OccurredAt:  time.Now().UTC(),
	}
	if status == model.PrintJobFailed {
		event.Type = model.EventPrintJobFailed
		event.Message = fmt.Sprintf("Your document %s could not be printed by printer at %s", fileName, printer.Location)
	}

	if err := w.sup.notifier.Publish(ctx, event); err != nil {
		w.log.Warn("failed to publish printjob event",
			slog.String("printjob_id", job.ID),
			slog.String("error", err.Error()),
		)
	}
}
