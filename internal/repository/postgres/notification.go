package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/asquebay/print-queue-service/internal/model"
)

// NotificationRepository хранит уведомления пользователям
type NotificationRepository struct {
	db *pgxpool.Pool
}

func NewNotificationRepository(db *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// CreateNotification сохраняет уведомление, все получатели должны существовать
func (r *NotificationRepository) CreateNotification(ctx context.Context, n model.Notification) error {
	const op = "repository.postgres.notification.CreateNotification"

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer tx.Rollback(ctx)

	// на массив receiver_ids внешний ключ на него не повесить, поэтому проверяем вручную
	rows, err := tx.Query(ctx,
		"SELECT r FROM unnest($1::uuid[]) AS r WHERE NOT EXISTS (SELECT 1 FROM users u WHERE u.id = r)",
		n.ReceiverIDs,
	)
	var missing []string
	if err == nil {
		missing, err = pgx.CollectRows(rows, pgx.RowTo[string])
	}
	if err != nil {
		if pgCode(err) == codeInvalidText {
			return fmt.Errorf("%s: %w", op, model.NotFoundf("the following user IDs do not exist: %s", strings.Join(n.ReceiverIDs, ", ")))
		}
		return fmt.Errorf("%s: failed to check receivers: %w", op, err)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s: %w", op, model.NotFoundf("the following user IDs do not exist: %s", strings.Join(missing, ", ")))
	}

	var printJobID any
	if n.PrintJobID != "" {
		printJobID = n.PrintJobID
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO notifications (id, type, message, printjob_id, receiver_ids, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		n.ID, n.Type, n.Message, printJobID, n.ReceiverIDs, n.CreatedAt,
	)
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return fmt.Errorf("%s: %w", op, model.NotFoundf("printjob with id %s not found", n.PrintJobID))
		}
		return fmt.Errorf("%s: failed to insert notification: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}
	return nil
}

// ListNotificationsForUser возвращает уведомления пользователя, новые первыми
func (r *NotificationRepository) ListNotificationsForUser(ctx context.Context, userID string) ([]model.Notification, error) {
	const op = "repository.postgres.notification.ListNotificationsForUser"

	rows, err := r.db.Query(ctx, `
		SELECT id, type, message, COALESCE(printjob_id::text, ''), receiver_ids, created_at
		FROM notifications
		WHERE $1::uuid = ANY(receiver_ids)
		ORDER BY created_at DESC`, userID)
	if err != nil {
		if pgCode(err) == codeInvalidText {
			return []model.Notification{}, nil
		}
		return nil, fmt.Errorf("%s: failed to query notifications: %w", op, err)
	}

	items, err := collectNotifications(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return items, nil
}

// ListNotifications используется для восстановления кэша при старте
func (r *NotificationRepository) ListNotifications(ctx context.Context) ([]model.Notification, error) {
	const op = "repository.postgres.notification.ListNotifications"

	rows, err := r.db.Query(ctx, `
		SELECT id, type, message, COALESCE(printjob_id::text, ''), receiver_ids, created_at
		FROM notifications
		ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to query notifications: %w", op, err)
	}

	items, err := collectNotifications(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return items, nil
}

func collectNotifications(rows pgx.Rows) ([]model.Notification, error) {
	defer rows.Close()

	items := []model.Notification{}
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.Type, &n.Message, &n.PrintJobID, &n.ReceiverIDs, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification row: %w", err)
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
