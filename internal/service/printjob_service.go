package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/asquebay/print-queue-service/internal/lib/pagecount"
	"github.com/asquebay/print-queue-service/internal/model"
)

// PrintJobService инкапсулирует приём заданий и постановку их в очередь
type PrintJobService struct {
	jobs       PrintJobRepository
	printers   PrinterRepository
	users      UserProvider
	files      FileProvider
	dispatcher Dispatcher
	standard   pagecount.Size
	log        *slog.Logger
}

// NewPrintJobService создаёт новый экземпляр сервиса заданий
func NewPrintJobService(
	jobs PrintJobRepository,
	printers PrinterRepository,
	users UserProvider,
	files FileProvider,
	dispatcher Dispatcher,
	standard pagecount.Size,
	log *slog.Logger,
) *PrintJobService {
	return &PrintJobService{
		jobs:       jobs,
		printers:   printers,
		users:      users,
		files:      files,
		dispatcher: dispatcher,
		standard:   standard,
		log:        log,
	}
}

// Submit принимает задание: считает листы, списывает квоту и сохраняет задание в статусе in_queue
// очередь принтера здесь не трогается, для этого есть Enqueue
func (s *PrintJobService) Submit(ctx context.Context, req model.CreatePrintJobRequest) (model.PrintJob, error) {
	const op = "service.PrintJobService.Submit"
	log := s.log.With(
		slog.String("op", op),
		slog.String("user_id", req.UserID),
		slog.String("printer_id", req.PrinterID),
		slog.String("file_id", req.FileID),
	)

	if err := req.Validate(); err != nil {
		return model.PrintJob{}, fmt.Errorf("%s: %w", op, model.Invalidf("%s", err.Error()))
	}

	// 1. Проверяем, что все участники существуют
	user, err := s.users.GetUser(ctx, req.UserID)
	if err != nil {
		return model.PrintJob{}, fmt.Errorf("%s: %w", op, err)
	}
	printer, err := s.printers.GetPrinter(ctx, req.PrinterID)
	if err != nil {
		return model.PrintJob{}, fmt.Errorf("%s: %w", op, err)
	}
	file, err := s.files.GetFile(ctx, req.FileID)
	if err != nil {
		return model.PrintJob{}, fmt.Errorf("%s: %w", op, err)
	}

	// 2. Подставляем значения по умолчанию и считаем листы
	job := model.PrintJob{
		ID:        uuid.NewString(),
		FileID:    file.ID,
		UserID:    user.ID,
		PrinterID: printer.ID,
		PageSize:  req.PageSize,
		Copies:    req.Copies,
		Duplex:    true,
		Status:    model.PrintJobInQueue,
	}
	if len(job.PageSize) == 0 {
		job.PageSize = []float64{s.standard[0], s.standard[1]}
	}
	if req.Duplex != nil {
		job.Duplex = *req.Duplex
	}
	if job.Copies == 0 {
		job.Copies = 1
	}

	job.NumPages, err = pagecount.Calculate(file.TotalPages, job.PageSize, job.Duplex, job.Copies, s.standard)
	if err != nil {
		return model.PrintJob{}, fmt.Errorf("%s: %w", op, err)
	}

	// 3. Быстрый отказ без транзакции, окончательно квоту проверяет Admit
	if user.AvailablePages < job.NumPages {
		return model.PrintJob{}, fmt.Errorf("%s: %w", op, &model.QuotaError{Required: job.NumPages, Available: user.AvailablePages})
	}

	// 4. Списываем квоту и сохраняем задание одной транзакцией
	stored, remaining, err := s.jobs.Admit(ctx, job)
	if err != nil {
		if !errors.Is(err, model.ErrQuotaExceeded) && !errors.Is(err, model.ErrNotFound) {
			log.Error("failed to admit printjob", slog.String("error", err.Error()))
		}
		return model.PrintJob{}, fmt.Errorf("%s: %w", op, err)
	}

	user.AvailablePages = remaining
	stored.User = &user
	stored.File = &file
	stored.Printer = printer.Ref()

	log.Info("printjob admitted",
		slog.String("printjob_id", stored.ID),
		slog.Int("num_pages", stored.NumPages),
		slog.Int("available_pages", remaining),
	)
	return stored, nil
}

// Enqueue ставит принятое задание в очередь принтера
// диспетчер будится только если задание встало первым в очередь свободного принтера
func (s *PrintJobService) Enqueue(ctx context.Context, job model.PrintJob) (model.SubmitResult, error) {
	const op = "service.PrintJobService.Enqueue"
	log := s.log.With(slog.String("op", op), slog.String("printjob_id", job.ID), slog.String("printer_id", job.PrinterID))

	res, err := s.printers.Enqueue(ctx, job.ID, job.PrinterID)
	if err != nil {
		return model.SubmitResult{}, fmt.Errorf("%s: %w", op, err)
	}

	if res.Position == 0 && res.WasAvailable {
		s.dispatcher.Start(job.PrinterID)
	}

	log.Info("printjob enqueued", slog.Int("position", res.Position))

	return model.SubmitResult{
		Message:  "success",
		PrintJob: job,
		Position: res.Position,
		Printer:  res.Printer.Simple(),
	}, nil
}

// RetryEnqueue повторяет постановку в очередь для уже принятого задания
// нужен, если процесс упал между приёмом и постановкой
func (s *PrintJobService) RetryEnqueue(ctx context.Context, id string) (model.SubmitResult, error) {
	const op = "service.PrintJobService.RetryEnqueue"

	job, err := s.jobs.GetPrintJob(ctx, id)
	if err != nil {
		return model.SubmitResult{}, fmt.Errorf("%s: %w", op, err)
	}

	res, err := s.Enqueue(ctx, job)
	if err != nil {
		return model.SubmitResult{}, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

func (s *PrintJobService) GetPrintJob(ctx context.Context, id string) (model.PrintJob, error) {
	const op = "service.PrintJobService.GetPrintJob"

	job, err := s.jobs.GetPrintJob(ctx, id)
	if err != nil {
		return model.PrintJob{}, fmt.Errorf("%s: %w", op, err)
	}
	return job, nil
}

func (s *PrintJobService) SearchPrintJobs(ctx context.Context, filter model.PrintJobFilter) ([]model.PrintJob, error) {
	const op = "service.PrintJobService.SearchPrintJobs"

	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%s: %w", op, model.Invalidf("unknown print_status %q", filter.Status))
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, fmt.Errorf("%s: %w", op, model.Invalidf("date range end is before its start"))
	}

	jobs, err := s.jobs.SearchPrintJobs(ctx, filter)
	if err != nil {
		s.log.Error("failed to search printjobs", slog.String("op", op), slog.String("error", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return jobs, nil
}
