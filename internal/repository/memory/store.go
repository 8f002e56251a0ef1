// Package memory реализует хранилище в памяти процесса
// повторяет транзакционную семантику postgres-репозиториев: каждая операция атомарна под общим мьютексом
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/asquebay/print-queue-service/internal/model"
)

// Store хранит принтеры, задания, пользователей, файлы и уведомления
type Store struct {
	mu            sync.Mutex
	printers      map[string]*model.Printer
	jobs          map[string]*model.PrintJob
	users         map[string]*model.User
	files         map[string]*model.File
	notifications []model.Notification
	now           func() time.Time
}

// New создаёт пустое хранилище
func New() *Store {
	return &Store{
		printers: make(map[string]*model.Printer),
		jobs:     make(map[string]*model.PrintJob),
		users:    make(map[string]*model.User),
		files:    make(map[string]*model.File),
		now:      time.Now,
	}
}

// PutUser добавляет или заменяет пользователя
// учётные записи ведёт внешняя система, здесь это нужно для локального запуска и тестов
func (s *Store) PutUser(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = &u
}

// PutFile добавляет или заменяет метаданные файла
func (s *Store) PutFile(f model.File) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[f.ID] = &f
}

// DeletePrintJob удаляет задание в обход реестра, очередь принтера не трогается
func (s *Store) DeletePrintJob(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
}

// GetUser реализует чтение квоты пользователя
func (s *Store) GetUser(_ context.Context, id string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return model.User{}, model.NotFoundf("user with id %s not found", id)
	}
	return *u, nil
}

// GetFile реализует чтение метаданных файла
func (s *Store) GetFile(_ context.Context, id string) (model.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[id]
	if !ok {
		return model.File{}, model.NotFoundf("file with id %s not found", id)
	}
	return *f, nil
}

// CreatePrinters сохраняет принтеры одной пачкой, код принтера уникален
func (s *Store) CreatePrinters(_ context.Context, printers []model.Printer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	codes := make(map[string]struct{}, len(s.printers))
	for _, p := range s.printers {
		codes[p.Code] = struct{}{}
	}
	for _, p := range printers {
		if _, exists := codes[p.Code]; exists {
			return model.Invalidf("printer %s already exists", p.Code)
		}
		codes[p.Code] = struct{}{}
	}

	now := s.now()
	for _, p := range printers {
		p.Queue = slices.Clone(p.Queue)
		if p.Queue == nil {
			p.Queue = []string{}
		}
		p.CreatedAt, p.UpdatedAt = now, now
		s.printers[p.ID] = &p
	}
	return nil
}

func (s *Store) GetPrinter(_ context.Context, id string) (model.Printer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.printers[id]
	if !ok {
		return model.Printer{}, model.NotFoundf("printer with id %s not found", id)
	}
	return clonePrinter(p), nil
}

func (s *Store) SearchPrinters(_ context.Context, filter model.PrinterFilter) ([]model.Printer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := []model.Printer{}
	for _, p := range s.printers {
		if filter.Location != "" && p.Location != filter.Location {
			continue
		}
		if filter.Code != "" && p.Code != filter.Code {
			continue
		}
		result = append(result, clonePrinter(p))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result, nil
}

func (s *Store) ListPrinterIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.printers))
	for id := range s.printers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Enqueue добавляет задание в хвост очереди принтера
// повторный вызов для задания, которое уже в очереди, возвращает его текущую позицию
func (s *Store) Enqueue(_ context.Context, jobID, printerID string) (model.EnqueueResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.printers[printerID]
	if !ok {
		return model.EnqueueResult{}, model.NotFoundf("printer with id %s not found", printerID)
	}
	if p.Status == model.PrinterInMaintenance {
		return model.EnqueueResult{}, model.Unavailablef("the selected printer is currently unavailable")
	}

	job, ok := s.jobs[jobID]
	if !ok {
		return model.EnqueueResult{}, model.NotFoundf("printjob with id %s not found", jobID)
	}
	if err := checkEnqueueable(*job, printerID); err != nil {
		return model.EnqueueResult{}, err
	}

	wasAvailable := p.Status == model.PrinterAvailable
	if pos := p.Position(jobID); pos >= 0 {
		return model.EnqueueResult{Position: pos, Printer: clonePrinter(p), WasAvailable: false}, nil
	}

	position := len(p.Queue)
	p.Queue = append(p.Queue, jobID)
	p.SettleStatus()
	p.UpdatedAt = s.now()

	return model.EnqueueResult{Position: position, Printer: clonePrinter(p), WasAvailable: wasAvailable}, nil
}

// PeekHead читает голову очереди, пустая очередь переводит принтер в available
func (s *Store) PeekHead(_ context.Context, printerID string) (model.QueueHead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.printers[printerID]
	if !ok {
		return model.QueueHead{}, model.NotFoundf("printer with id %s not found", printerID)
	}
	if p.Status == model.PrinterInMaintenance {
		return model.QueueHead{Paused: true}, nil
	}
	if len(p.Queue) == 0 {
		if p.Status != model.PrinterAvailable {
			p.Status = model.PrinterAvailable
			p.UpdatedAt = s.now()
		}
		return model.QueueHead{Empty: true}, nil
	}
	return model.QueueHead{JobID: p.Queue[0]}, nil
}

// PopOrphan снимает с головы очереди задание, которого больше нет
func (s *Store) PopOrphan(_ context.Context, printerID, jobID string) (model.Printer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.printers[printerID]
	if !ok {
		return model.Printer{}, model.NotFoundf("printer with id %s not found", printerID)
	}
	if len(p.Queue) > 0 && p.Queue[0] == jobID {
		p.Queue = p.Queue[1:]
		p.SettleStatus()
		p.UpdatedAt = s.now()
	}
	return clonePrinter(p), nil
}

// FinishHead снимает задание с головы очереди и фиксирует его итоговый статус
func (s *Store) FinishHead(_ context.Context, printerID, jobID string, status model.PrintJobStatus) (model.Printer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.printers[printerID]
	if !ok {
		return model.Printer{}, model.NotFoundf("printer with id %s not found", printerID)
	}
	if len(p.Queue) == 0 || p.Queue[0] != jobID {
		return model.Printer{}, fmt.Errorf("printer %s, job %s: %w", printerID, jobID, model.ErrHeadMismatch)
	}

	now := s.now()
	p.Queue = p.Queue[1:]
	p.SettleStatus()
	p.UpdatedAt = now

	if job, ok := s.jobs[jobID]; ok {
		job.Status = status
		job.UpdatedAt = now
	}
	return clonePrinter(p), nil
}

// SetMaintenance включает или снимает режим обслуживания
func (s *Store) SetMaintenance(_ context.Context, printerID string, on bool) (model.Printer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.printers[printerID]
	if !ok {
		return model.Printer{}, model.NotFoundf("printer with id %s not found", printerID)
	}
	if on {
		p.Status = model.PrinterInMaintenance
	} else {
		p.Status = model.PrinterAvailable
		p.SettleStatus()
	}
	p.UpdatedAt = s.now()
	return clonePrinter(p), nil
}

// Admit списывает квоту и сохраняет задание за один шаг
func (s *Store) Admit(_ context.Context, job model.PrintJob) (model.PrintJob, int, error) {
	if job.NumPages < 1 {
		return model.PrintJob{}, 0, model.Invalidf("printjob must take at least one page, got %d", job.NumPages)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[job.UserID]
	if !ok {
		return model.PrintJob{}, 0, model.NotFoundf("user with id %s not found", job.UserID)
	}
	if _, ok := s.files[job.FileID]; !ok {
		return model.PrintJob{}, 0, model.NotFoundf("file with id %s not found", job.FileID)
	}
	if _, ok := s.printers[job.PrinterID]; !ok {
		return model.PrintJob{}, 0, model.NotFoundf("printer with id %s not found", job.PrinterID)
	}
	if u.AvailablePages < job.NumPages {
		return model.PrintJob{}, 0, &model.QuotaError{Required: job.NumPages, Available: u.AvailablePages}
	}

	u.AvailablePages -= job.NumPages

	now := s.now()
	stored := job
	stored.PageSize = slices.Clone(job.PageSize)
	stored.CreatedAt, stored.UpdatedAt = now, now
	stored.File, stored.User, stored.Printer = nil, nil, nil
	s.jobs[stored.ID] = &stored

	return stored, u.AvailablePages, nil
}

func (s *Store) GetPrintJob(_ context.Context, id string) (model.PrintJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return model.PrintJob{}, model.NotFoundf("printjob with id %s not found", id)
	}
	return s.hydrate(job), nil
}

func (s *Store) UpdatePrintJobStatus(_ context.Context, id string, status model.PrintJobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return model.NotFoundf("printjob with id %s not found", id)
	}
	job.Status = status
	job.UpdatedAt = s.now()
	return nil
}

func (s *Store) SearchPrintJobs(_ context.Context, filter model.PrintJobFilter) ([]model.PrintJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := []model.PrintJob{}
	for _, job := range s.jobs {
		if !matchJob(job, filter) {
			continue
		}
		result = append(result, s.hydrate(job))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *Store) CreateNotification(_ context.Context, n model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.PrintJobID != "" {
		if _, ok := s.jobs[n.PrintJobID]; !ok {
			return model.NotFoundf("printjob with id %s not found", n.PrintJobID)
		}
	}
	var missing []string
	for _, id := range n.ReceiverIDs {
		if _, ok := s.users[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return model.NotFoundf("the following user IDs do not exist: %s", strings.Join(missing, ", "))
	}

	n.ReceiverIDs = slices.Clone(n.ReceiverIDs)
	s.notifications = append(s.notifications, n)
	return nil
}

func (s *Store) ListNotificationsForUser(_ context.Context, userID string) ([]model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := []model.Notification{}
	for i := len(s.notifications) - 1; i >= 0; i-- {
		if slices.Contains(s.notifications[i].ReceiverIDs, userID) {
			result = append(result, s.notifications[i])
		}
	}
	return result, nil
}

func (s *Store) ListNotifications(_ context.Context) ([]model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.notifications), nil
}

// hydrate прикладывает к заданию короткие представления файла, пользователя и принтера
func (s *Store) hydrate(job *model.PrintJob) model.PrintJob {
	out := *job
	out.PageSize = slices.Clone(job.PageSize)
	if f, ok := s.files[job.FileID]; ok {
		file := *f
		out.File = &file
	}
	if u, ok := s.users[job.UserID]; ok {
		user := *u
		out.User = &user
	}
	if p, ok := s.printers[job.PrinterID]; ok {
		out.Printer = p.Ref()
	}
	return out
}

func checkEnqueueable(job model.PrintJob, printerID string) error {
	if job.PrinterID != printerID {
		return model.Invalidf("printjob %s belongs to printer %s", job.ID, job.PrinterID)
	}
	if job.Status.Finished() {
		return model.Invalidf("printjob %s is already %s", job.ID, job.Status)
	}
	return nil
}

func matchJob(job *model.PrintJob, f model.PrintJobFilter) bool {
	switch {
	case f.UserID != "" && job.UserID != f.UserID:
		return false
	case f.FileID != "" && job.FileID != f.FileID:
		return false
	case f.PrinterID != "" && job.PrinterID != f.PrinterID:
		return false
	case f.Status != "" && job.Status != f.Status:
		return false
	case f.From != nil && job.CreatedAt.Before(*f.From):
		return false
	case f.To != nil && job.CreatedAt.After(*f.To):
		return false
	}
	return true
}

func clonePrinter(p *model.Printer) model.Printer {
	out := *p
	out.Queue = slices.Clone(p.Queue)
	if out.Queue == nil {
		out.Queue = []string{}
	}
	return out
}
