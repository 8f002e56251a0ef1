package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/asquebay/print-queue-service/internal/model"
)

// NotificationService сохраняет уведомления о заданиях и отдаёт их пользователям
type NotificationService struct {
	repo  NotificationRepository
	cache NotificationCache
	log   *slog.Logger
}

// NewNotificationService создаёт новый экземпляр сервиса уведомлений
func NewNotificationService(repo NotificationRepository, cache NotificationCache, log *slog.Logger) *NotificationService {
	return &NotificationService{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

// Publish доставляет событие в процессе, без брокера
// используется как приёмник уведомлений, когда кафка не настроена
func (s *NotificationService) Publish(ctx context.Context, event model.PrintJobEvent) error {
	const op = "service.NotificationService.Publish"

	if _, err := s.CreatePrintjobNotification(ctx, event); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CreatePrintjobNotification сохраняет уведомление о задании
// сначала пишем в БД, и только в случае успеха обновляем кэш
func (s *NotificationService) CreatePrintjobNotification(ctx context.Context, event model.PrintJobEvent) (model.Notification, error) {
	const op = "service.NotificationService.CreatePrintjobNotification"
	log := s.log.With(slog.String("op", op), slog.String("printjob_id", event.PrintJobID))

	if err := event.Validate(); err != nil {
		return model.Notification{}, fmt.Errorf("%s: %w", op, model.Invalidf("%s", err.Error()))
	}

	createdAt := event.OccurredAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	n := model.Notification{
		ID:          uuid.NewString(),
		Type:        model.NotificationTypeNotify,
		Message:     event.Message,
		ReceiverIDs: event.ReceiverIDs,
		PrintJobID:  event.PrintJobID,
		CreatedAt:   createdAt.UTC(),
	}

	// 1. Сохраняем в БД
	if err := s.repo.CreateNotification(ctx, n); err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			log.Error("failed to save notification", slog.String("error", err.Error()))
		}
		return model.Notification{}, fmt.Errorf("%s: %w", op, err)
	}

	// 2. Обновляем кэш
	s.cache.Add(n)
	log.Info("notification created", slog.String("notification_id", n.ID), slog.String("type", string(event.Type)))

	return n, nil
}

// ListForUser возвращает уведомления пользователя, новые первыми
// сначала ищет в кэше, и только если там нет — обращается к БД
func (s *NotificationService) ListForUser(ctx context.Context, userID string) ([]model.Notification, error) {
	const op = "service.NotificationService.ListForUser"
	log := s.log.With(slog.String("op", op), slog.String("user_id", userID))

	if items, found := s.cache.Get(userID); found {
		log.Debug("notifications found in cache")
		return items, nil
	}

	items, err := s.repo.ListNotificationsForUser(ctx, userID)
	if err != nil {
		log.Error("failed to list notifications", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.cache.Set(userID, items)
	log.Debug("notifications loaded from repository and cached", slog.Int("count", len(items)))

	return items, nil
}

// RestoreCache восстанавливает состояние кэша из базы данных при старте
func (s *NotificationService) RestoreCache(ctx context.Context) error {
	const op = "service.NotificationService.RestoreCache"
	log := s.log.With(slog.String("op", op))

	log.Info("starting cache restoration from database")

	items, err := s.repo.ListNotifications(ctx)
	if err != nil {
		log.Error("failed to get all notifications from repository", slog.String("error", err.Error()))
		return fmt.Errorf("%s: %w", op, err)
	}

	s.cache.LoadAll(items)

	log.Info("cache restored successfully", slog.Int("notifications_count", len(items)))
	return nil
}
