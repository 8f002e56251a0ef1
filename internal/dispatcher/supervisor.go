package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Supervisor владеет таблицей worker-ов: не больше одного на принтер
type Supervisor struct {
	registry Registry
	jobs     JobStore
	device   Device
	notifier Notifier
	lease    Lease
	opts     Options
	log      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	workers map[string]*worker
	stopped bool
}

// New создаёт супервизор, worker-ы запускаются лениво через Start
func New(registry Registry, jobs JobStore, device Device, notifier Notifier, lease Lease, opts Options, log *slog.Logger) *Supervisor {
	if lease == nil {
		lease = NopLease{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		registry: registry,
		jobs:     jobs,
		device:   device,
		notifier: notifier,
		lease:    lease,
		opts:     opts,
		log:      log.With(slog.String("component", "dispatcher")),
		ctx:      ctx,
		cancel:   cancel,
		workers:  make(map[string]*worker),
	}
}

// Start будит цикл принтера, при первом вызове создаёт для него worker
// вызывать можно сколько угодно раз: лишние сигналы схлопываются
func (s *Supervisor) Start(printerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	w, ok := s.workers[printerID]
	if !ok {
		w = newWorker(s, printerID)
		s.workers[printerID] = w
		s.wg.Add(1)
		go w.run(s.ctx)
	}
	w.wake()
}

// Resume запускает циклы всех известных принтеров, вызывается при старте процесса
func (s *Supervisor) Resume(ctx context.Context) error {
	const op = "dispatcher.Supervisor.Resume"
	log := s.log.With(slog.String("op", op))

	ids, err := s.registry.ListPrinterIDs(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for _, id := range ids {
		s.Start(id)
	}

	log.Info("dispatch loops resumed", slog.Int("printers", len(ids)))
	return nil
}

// State возвращает состояние цикла принтера, false означает, что цикл ещё не запускался
func (s *Supervisor) State(printerID string) (State, bool) {
	s.mu.Lock()
	w, ok := s.workers[printerID]
	s.mu.Unlock()

	if !ok {
		return StateIdle, false
	}
	return w.State(), true
}

// Shutdown останавливает все циклы и ждёт их завершения
// прерванное задание остаётся в голове очереди и будет напечатано при следующем запуске
func (s *Supervisor) Shutdown(ctx context.Context) error {
	const op = "dispatcher.Supervisor.Shutdown"

	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("dispatch loops stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}
}
