package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/asquebay/print-queue-service/internal/model"
)

// PrintJobService определяет интерфейс сервиса заданий, нужный хэндлеру
type PrintJobService interface {
	Submit(ctx context.Context, req model.CreatePrintJobRequest) (model.PrintJob, error)
	Enqueue(ctx context.Context, job model.PrintJob) (model.SubmitResult, error)
	RetryEnqueue(ctx context.Context, id string) (model.SubmitResult, error)
	GetPrintJob(ctx context.Context, id string) (model.PrintJob, error)
	SearchPrintJobs(ctx context.Context, filter model.PrintJobFilter) ([]model.PrintJob, error)
}

// PrinterService определяет интерфейс администрирования принтеров
type PrinterService interface {
	CreatePrinters(ctx context.Context, reqs []model.CreatePrinterRequest) ([]model.Printer, error)
	GetPrinter(ctx context.Context, id string) (model.Printer, error)
	SearchPrinters(ctx context.Context, filter model.PrinterFilter) ([]model.Printer, error)
	SetMaintenance(ctx context.Context, id string, on bool) (model.Printer, error)
}

// NotificationLister отдаёт уведомления пользователя
type NotificationLister interface {
	ListForUser(ctx context.Context, userID string) ([]model.Notification, error)
}

// Handler обрабатывает HTTP-запросы
type Handler struct {
	jobs     PrintJobService
	printers PrinterService
	notify   NotificationLister
	log      *slog.Logger
	router   chi.Router
}

// NewHandler создает новый экземпляр Handler
func NewHandler(jobs PrintJobService, printers PrinterService, notify NotificationLister, log *slog.Logger) *Handler {
	h := &Handler{
		jobs:     jobs,
		printers: printers,
		notify:   notify,
		log:      log.With(slog.String("component", "http")),
		router:   chi.NewRouter(),
	}
	h.registerRoutes()
	return h
}

// ServeHTTP делает Handler совместимым с http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// registerRoutes регистрирует все эндпоинты
func (h *Handler) registerRoutes() {
	h.router.Use(middleware.RequestID)
	h.router.Use(middleware.Recoverer)

	h.router.Get("/healthz", h.healthz)

	h.router.Post("/printjob", h.createPrintJob)
	h.router.Get("/printjob", h.searchPrintJobs)
	h.router.Get("/printjob/{id}", h.getPrintJob)
	h.router.Post("/printjob/{id}/enqueue", h.enqueuePrintJob)

	h.router.Post("/printer", h.createPrinters)
	h.router.Get("/printer", h.searchPrinters)
	h.router.Get("/printer/{id}", h.getPrinter)
	h.router.Patch("/printer/{id}/maintenance", h.setMaintenance)

	h.router.Get("/notify/user/{user_id}", h.listNotifications)
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// createPrintJob принимает задание и сразу ставит его в очередь
func (h *Handler) createPrintJob(w http.ResponseWriter, r *http.Request) {
	var req model.CreatePrintJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	job, err := h.jobs.Submit(r.Context(), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	result, err := h.jobs.Enqueue(r.Context(), job)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, result)
}

func (h *Handler) enqueuePrintJob(w http.ResponseWriter, r *http.Request) {
	result, err := h.jobs.RetryEnqueue(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

func (h *Handler) getPrintJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.GetPrintJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, job)
}

func (h *Handler) searchPrintJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := model.PrintJobFilter{
		UserID:    q.Get("user_id"),
		FileID:    q.Get("file_id"),
		PrinterID: q.Get("printer_id"),
		Status:    model.PrintJobStatus(q.Get("print_status")),
	}

	from, to, err := parseDateRange(q["date"])
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.From, filter.To = from, to

	jobs, err := h.jobs.SearchPrintJobs(r.Context(), filter)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, jobs)
}

func (h *Handler) createPrinters(w http.ResponseWriter, r *http.Request) {
	var reqs []model.CreatePrinterRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		h.respondError(w, http.StatusBadRequest, "request body must be an array of printers")
		return
	}

	printers, err := h.printers.CreatePrinters(r.Context(), reqs)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, printers)
}

func (h *Handler) getPrinter(w http.ResponseWriter, r *http.Request) {
	p, err := h.printers.GetPrinter(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, p)
}

func (h *Handler) searchPrinters(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	printers, err := h.printers.SearchPrinters(r.Context(), model.PrinterFilter{
		Location: q.Get("location"),
		Code:     q.Get("code"),
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, printers)
}

func (h *Handler) setMaintenance(w http.ResponseWriter, r *http.Request) {
	var req model.SetMaintenanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		h.handleError(w, r, err)
		return
	}

	p, err := h.printers.SetMaintenance(r.Context(), chi.URLParam(r, "id"), *req.InMaintenance)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, p)
}

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	items, err := h.notify.ListForUser(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, items)
}

// handleError переводит ошибку домена в HTTP-статус
// неизвестные ошибки логируются и отдаются клиенту без подробностей
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var verr validator.ValidationErrors

	switch {
	case errors.Is(err, model.ErrNotFound):
		h.respondError(w, http.StatusNotFound, publicMessage(err, "not found"))
	case errors.Is(err, model.ErrQuotaExceeded),
		errors.Is(err, model.ErrInvalidArgument),
		errors.Is(err, model.ErrUnavailable):
		h.respondError(w, http.StatusBadRequest, publicMessage(err, "bad request"))
	case errors.As(err, &verr):
		h.respondError(w, http.StatusBadRequest, verr.Error())
	default:
		h.log.Error("internal server error",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
		h.respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

func publicMessage(err error, fallback string) string {
	if msg := model.PublicMessage(err); msg != "" {
		return msg
	}
	return fallback
}

const dateLayout = "2006-01-02"

// parseDateRange разбирает date=start&date=end или date=start,end
// границы включительные: от начала первого дня до конца последнего
func parseDateRange(values []string) (*time.Time, *time.Time, error) {
	var parts []string
	for _, v := range values {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
	}

	switch len(parts) {
	case 0:
		return nil, nil, nil
	case 2:
	default:
		return nil, nil, errors.New("date must be a range of two days: date=YYYY-MM-DD&date=YYYY-MM-DD")
	}

	start, err := time.Parse(dateLayout, parts[0])
	if err != nil {
		return nil, nil, errors.New("invalid start date, expected YYYY-MM-DD")
	}
	end, err := time.Parse(dateLayout, parts[1])
	if err != nil {
		return nil, nil, errors.New("invalid end date, expected YYYY-MM-DD")
	}
	end = end.Add(24*time.Hour - time.Millisecond)

	return &start, &end, nil
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("failed to marshal JSON response", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "internal server error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(response)
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
