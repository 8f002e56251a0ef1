package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/asquebay/print-queue-service/internal/model"
)

// PrinterService отвечает за администрирование принтеров
type PrinterService struct {
	printers   PrinterRepository
	dispatcher Dispatcher
	log        *slog.Logger
}

func NewPrinterService(printers PrinterRepository, dispatcher Dispatcher, log *slog.Logger) *PrinterService {
	return &PrinterService{
		printers:   printers,
		dispatcher: dispatcher,
		log:        log,
	}
}

// CreatePrinters регистрирует пачку принтеров, пачка сохраняется целиком или никак
func (s *PrinterService) CreatePrinters(ctx context.Context, reqs []model.CreatePrinterRequest) ([]model.Printer, error) {
	const op = "service.PrinterService.CreatePrinters"
	log := s.log.With(slog.String("op", op))

	if len(reqs) == 0 {
		return nil, fmt.Errorf("%s: %w", op, model.Invalidf("at least one printer is required"))
	}

	seen := make(map[string]struct{}, len(reqs))
	printers := make([]model.Printer, 0, len(reqs))
	for i := range reqs {
		if err := reqs[i].Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", op, model.Invalidf("printer #%d: %s", i, err.Error()))
		}
		if _, dup := seen[reqs[i].Code]; dup {
			return nil, fmt.Errorf("%s: %w", op, model.Invalidf("printer %s is listed twice", reqs[i].Code))
		}
		seen[reqs[i].Code] = struct{}{}

		printers = append(printers, model.Printer{
			ID:       uuid.NewString(),
			Location: reqs[i].Location,
			Code:     reqs[i].Code,
			Status:   model.PrinterAvailable,
			Queue:    []string{},
		})
	}

	if err := s.printers.CreatePrinters(ctx, printers); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	created := make([]model.Printer, 0, len(printers))
	for _, p := range printers {
		stored, err := s.printers.GetPrinter(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		created = append(created, stored)
		s.dispatcher.Start(p.ID)
	}

	log.Info("printers created", slog.Int("count", len(created)))
	return created, nil
}

func (s *PrinterService) GetPrinter(ctx context.Context, id string) (model.Printer, error) {
	const op = "service.PrinterService.GetPrinter"

	p, err := s.printers.GetPrinter(ctx, id)
	if err != nil {
		return model.Printer{}, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

func (s *PrinterService) SearchPrinters(ctx context.Context, filter model.PrinterFilter) ([]model.Printer, error) {
	const op = "service.PrinterService.SearchPrinters"

	printers, err := s.printers.SearchPrinters(ctx, filter)
	if err != nil {
		s.log.Error("failed to search printers", slog.String("op", op), slog.String("error", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return printers, nil
}

// SetMaintenance ставит принтер на обслуживание или возвращает в работу
// после снятия обслуживания цикл диспетчера будится, чтобы доработать очередь
func (s *PrinterService) SetMaintenance(ctx context.Context, id string, on bool) (model.Printer, error) {
	const op = "service.PrinterService.SetMaintenance"
	log := s.log.With(slog.String("op", op), slog.String("printer_id", id))

	p, err := s.printers.SetMaintenance(ctx, id, on)
	if err != nil {
		return model.Printer{}, fmt.Errorf("%s: %w", op, err)
	}

	if !on {
		s.dispatcher.Start(id)
	}

	log.Info("printer maintenance changed", slog.Bool("in_maintenance", on), slog.String("status", string(p.Status)))
	return p, nil
}
