package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/asquebay/print-queue-service/internal/model"
)

// PrintJobRepository хранит задания печати и списывает квоту пользователей
type PrintJobRepository struct {
	db *pgxpool.Pool
	sq squirrel.StatementBuilderType
}

// NewPrintJobRepository создает новый экземпляр репозитория
func NewPrintJobRepository(db *pgxpool.Pool) *PrintJobRepository {
	return &PrintJobRepository{
		db: db,
		sq: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Admit списывает страницы с квоты пользователя и сохраняет задание в одной транзакции
// условный UPDATE не даёт двум параллельным заданиям увести квоту в минус
func (r *PrintJobRepository) Admit(ctx context.Context, job model.PrintJob) (model.PrintJob, int, error) {
	const op = "repository.postgres.printjob.Admit"

	if job.NumPages < 1 {
		return model.PrintJob{}, 0, fmt.Errorf("%s: %w", op, model.Invalidf("printjob must take at least one page, got %d", job.NumPages))
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return model.PrintJob{}, 0, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer tx.Rollback(ctx)

	// 1. списываем квоту
	var remaining int
	err = tx.QueryRow(ctx, `
		UPDATE users SET available_pages = available_pages - $1
		WHERE id = $2 AND available_pages >= $1
		RETURNING available_pages`,
		job.NumPages, job.UserID,
	).Scan(&remaining)
	if err != nil {
		if !isNoRows(err) {
			return model.PrintJob{}, 0, fmt.Errorf("%s: failed to charge quota: %w", op, err)
		}
		// строк нет: либо пользователя нет, либо не хватает страниц
		return model.PrintJob{}, 0, fmt.Errorf("%s: %w", op, r.quotaFailure(ctx, tx, job))
	}

	// 2. сохраняем задание
	sql, args, err := r.sq.Insert("print_jobs").
		Columns("id", "file_id", "user_id", "printer_id", "page_size", "copies", "num_pages", "duplex", "print_status").
		Values(job.ID, job.FileID, job.UserID, job.PrinterID, job.PageSize, job.Copies, job.NumPages, job.Duplex, job.Status).
		Suffix("RETURNING created_at, updated_at").
		ToSql()
	if err != nil {
		return model.PrintJob{}, 0, fmt.Errorf("%s: failed to build printjob insert query: %w", op, err)
	}

	stored := job
	stored.File, stored.User, stored.Printer = nil, nil, nil
	if err := tx.QueryRow(ctx, sql, args...).Scan(&stored.CreatedAt, &stored.UpdatedAt); err != nil {
		switch pgCode(err) {
		case codeForeignKeyViolation, codeInvalidText:
			return model.PrintJob{}, 0, fmt.Errorf("%s: %w", op, model.NotFoundf("file or printer for printjob %s not found", job.ID))
		case codeCheckViolation:
			return model.PrintJob{}, 0, fmt.Errorf("%s: %w", op, model.Invalidf("printjob %s violates %s", job.ID, constraintName(err)))
		}
		return model.PrintJob{}, 0, fmt.Errorf("%s: failed to insert printjob: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.PrintJob{}, 0, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}
	return stored, remaining, nil
}

func (r *PrintJobRepository) quotaFailure(ctx context.Context, tx pgx.Tx, job model.PrintJob) error {
	var available int
	err := tx.QueryRow(ctx, "SELECT available_pages FROM users WHERE id = $1", job.UserID).Scan(&available)
	if err != nil {
		if isNoRows(err) {
			return model.NotFoundf("user with id %s not found", job.UserID)
		}
		return fmt.Errorf("failed to query user quota: %w", err)
	}
	return &model.QuotaError{Required: job.NumPages, Available: available}
}

func (r *PrintJobRepository) GetPrintJob(ctx context.Context, id string) (model.PrintJob, error) {
	const op = "repository.postgres.printjob.GetPrintJob"

	sql, args, err := r.selectJobs().Where(squirrel.Eq{"j.id": id}).ToSql()
	if err != nil {
		return model.PrintJob{}, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	job, err := scanPrintJob(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if isNoRows(err) {
			return model.PrintJob{}, fmt.Errorf("%s: %w", op, model.NotFoundf("printjob with id %s not found", id))
		}
		return model.PrintJob{}, fmt.Errorf("%s: failed to query printjob: %w", op, err)
	}
	return job, nil
}

// SearchPrintJobs ищет задания по фильтру, границы диапазона дат включительные
func (r *PrintJobRepository) SearchPrintJobs(ctx context.Context, filter model.PrintJobFilter) ([]model.PrintJob, error) {
	const op = "repository.postgres.printjob.SearchPrintJobs"

	query := r.selectJobs().OrderBy("j.created_at", "j.id")
	if filter.UserID != "" {
		query = query.Where(squirrel.Eq{"j.user_id": filter.UserID})
	}
	if filter.FileID != "" {
		query = query.Where(squirrel.Eq{"j.file_id": filter.FileID})
	}
	if filter.PrinterID != "" {
		query = query.Where(squirrel.Eq{"j.printer_id": filter.PrinterID})
	}
	if filter.Status != "" {
		query = query.Where(squirrel.Eq{"j.print_status": filter.Status})
	}
	if filter.From != nil {
		query = query.Where(squirrel.GtOrEq{"j.created_at": *filter.From})
	}
	if filter.To != nil {
		query = query.Where(squirrel.LtOrEq{"j.created_at": *filter.To})
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		// мусор вместо uuid в фильтре означает пустую выборку
		if pgCode(err) == codeInvalidText {
			return []model.PrintJob{}, nil
		}
		return nil, fmt.Errorf("%s: failed to query printjobs: %w", op, err)
	}
	defer rows.Close()

	jobs := []model.PrintJob{}
	for rows.Next() {
		job, err := scanPrintJob(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to scan printjob row: %w", op, err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		if pgCode(err) == codeInvalidText {
			return []model.PrintJob{}, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return jobs, nil
}

func (r *PrintJobRepository) UpdatePrintJobStatus(ctx context.Context, id string, status model.PrintJobStatus) error {
	const op = "repository.postgres.printjob.UpdatePrintJobStatus"

	sql, args, err := r.sq.Update("print_jobs").
		Set("print_status", status).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil && !isNoRows(err) {
		return fmt.Errorf("%s: failed to update printjob: %w", op, err)
	}
	if err != nil || tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, model.NotFoundf("printjob with id %s not found", id))
	}
	return nil
}

func (r *PrintJobRepository) selectJobs() squirrel.SelectBuilder {
	return r.sq.Select(
		"j.id", "j.file_id", "j.user_id", "j.printer_id", "j.page_size", "j.copies",
		"j.num_pages", "j.duplex", "j.print_status", "j.created_at", "j.updated_at",
		"f.name", "f.total_pages", "f.mime_type", "f.path",
		"u.name", "u.available_pages",
		"p.code", "p.location",
	).
		From("print_jobs j").
		Join("files f ON f.id = j.file_id").
		Join("users u ON u.id = j.user_id").
		Join("printers p ON p.id = j.printer_id")
}

func scanPrintJob(row pgx.Row) (model.PrintJob, error) {
	var (
		job     model.PrintJob
		file    model.File
		user    model.User
		printer model.PrinterRef
	)
	err := row.Scan(
		&job.ID, &job.FileID, &job.UserID, &job.PrinterID, &job.PageSize, &job.Copies,
		&job.NumPages, &job.Duplex, &job.Status, &job.CreatedAt, &job.UpdatedAt,
		&file.Name, &file.TotalPages, &file.MimeType, &file.Path,
		&user.Name, &user.AvailablePages,
		&printer.Code, &printer.Location,
	)
	if err != nil {
		return model.PrintJob{}, err
	}

	file.ID, user.ID, printer.ID = job.FileID, job.UserID, job.PrinterID
	job.File, job.User, job.Printer = &file, &user, &printer
	return job, nil
}
