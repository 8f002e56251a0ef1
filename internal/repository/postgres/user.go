package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/asquebay/print-queue-service/internal/model"
)

// AccountRepository читает пользователей и файлы
// обе таблицы ведут внешние службы, сервис их только читает
type AccountRepository struct {
	db *pgxpool.Pool
}

func NewAccountRepository(db *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) GetUser(ctx context.Context, id string) (model.User, error) {
	const op = "repository.postgres.user.GetUser"

	var u model.User
	err := r.db.QueryRow(ctx, "SELECT id, name, available_pages FROM users WHERE id = $1", id).
		Scan(&u.ID, &u.Name, &u.AvailablePages)
	if err != nil {
		if isNoRows(err) {
			return model.User{}, fmt.Errorf("%s: %w", op, model.NotFoundf("user with id %s not found", id))
		}
		return model.User{}, fmt.Errorf("%s: failed to query user: %w", op, err)
	}
	return u, nil
}

func (r *AccountRepository) GetFile(ctx context.Context, id string) (model.File, error) {
	const op = "repository.postgres.user.GetFile"

	var f model.File
	err := r.db.QueryRow(ctx, "SELECT id, name, total_pages, mime_type, path FROM files WHERE id = $1", id).
		Scan(&f.ID, &f.Name, &f.TotalPages, &f.MimeType, &f.Path)
	if err != nil {
		if isNoRows(err) {
			return model.File{}, fmt.Errorf("%s: %w", op, model.NotFoundf("file with id %s not found", id))
		}
		return model.File{}, fmt.Errorf("%s: failed to query file: %w", op, err)
	}
	return f, nil
}
