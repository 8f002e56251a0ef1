package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/asquebay/print-queue-service/internal/model"
)

var printerColumns = []string{"id", "location", "code", "status", "queue", "created_at", "updated_at"}

// PrinterRepository инкапсулирует работу с реестром принтеров в БД
// статус и очередь меняются только в транзакциях, которые держат блокировку строки принтера (FOR UPDATE)
type PrinterRepository struct {
	db *pgxpool.Pool
	sq squirrel.StatementBuilderType
}

// NewPrinterRepository создает новый экземпляр репозитория
func NewPrinterRepository(db *pgxpool.Pool) *PrinterRepository {
	return &PrinterRepository{
		db: db,
		// использую плейсхолдеры в стиле PostgreSQL ($1, $2, $3,...)
		sq: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// CreatePrinters сохраняет пачку принтеров в одной транзакции
func (r *PrinterRepository) CreatePrinters(ctx context.Context, printers []model.Printer) error {
	const op = "repository.postgres.printer.CreatePrinters"

	if len(printers) == 0 {
		return nil
	}

	insert := r.sq.Insert("printers").Columns("id", "location", "code", "status", "queue")
	for _, p := range printers {
		insert = insert.Values(p.ID, p.Location, p.Code, p.Status, []string{})
	}

	sql, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build printers insert query: %w", op, err)
	}

	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		if pgCode(err) == codeUniqueViolation {
			return fmt.Errorf("%s: %w", op, model.Invalidf("printer already exists"))
		}
		return fmt.Errorf("%s: failed to insert printers: %w", op, err)
	}
	return nil
}

func (r *PrinterRepository) GetPrinter(ctx context.Context, id string) (model.Printer, error) {
	const op = "repository.postgres.printer.GetPrinter"

	sql, args, err := r.sq.Select(printerColumns...).From("printers").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return model.Printer{}, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	p, err := scanPrinter(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if isNoRows(err) {
			return model.Printer{}, fmt.Errorf("%s: %w", op, model.NotFoundf("printer with id %s not found", id))
		}
		return model.Printer{}, fmt.Errorf("%s: failed to query printer: %w", op, err)
	}
	return p, nil
}

func (r *PrinterRepository) SearchPrinters(ctx context.Context, filter model.PrinterFilter) ([]model.Printer, error) {
	const op = "repository.postgres.printer.SearchPrinters"

	query := r.sq.Select(printerColumns...).From("printers").OrderBy("code")
	if filter.Location != "" {
		query = query.Where(squirrel.Eq{"location": filter.Location})
	}
	if filter.Code != "" {
		query = query.Where(squirrel.Eq{"code": filter.Code})
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to query printers: %w", op, err)
	}
	defer rows.Close()

	printers := []model.Printer{}
	for rows.Next() {
		p, err := scanPrinter(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to scan printer row: %w", op, err)
		}
		printers = append(printers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return printers, nil
}

func (r *PrinterRepository) ListPrinterIDs(ctx context.Context) ([]string, error) {
	const op = "repository.postgres.printer.ListPrinterIDs"

	rows, err := r.db.Query(ctx, "SELECT id FROM printers ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("%s: failed to query printers: %w", op, err)
	}
	defer rows.Close()

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("%s: failed to scan printer ids: %w", op, err)
	}
	return ids, nil
}

// Enqueue добавляет задание в хвост очереди принтера
// повторный вызов для задания, которое уже стоит в очереди, ничего не меняет и возвращает его позицию
func (r *PrinterRepository) Enqueue(ctx context.Context, jobID, printerID string) (model.EnqueueResult, error) {
	const op = "repository.postgres.printer.Enqueue"

	var result model.EnqueueResult
	err := r.withLockedPrinter(ctx, printerID, func(tx pgx.Tx, p *model.Printer) (bool, error) {
		if p.Status == model.PrinterInMaintenance {
			return false, model.Unavailablef("the selected printer is currently unavailable")
		}

		var job model.PrintJob
		err := tx.QueryRow(ctx, "SELECT id, printer_id, print_status FROM print_jobs WHERE id = $1", jobID).
			Scan(&job.ID, &job.PrinterID, &job.Status)
		if err != nil {
			if isNoRows(err) {
				return false, model.NotFoundf("printjob with id %s not found", jobID)
			}
			return false, fmt.Errorf("failed to query printjob: %w", err)
		}
		if job.PrinterID != printerID {
			return false, model.Invalidf("printjob %s belongs to printer %s", job.ID, job.PrinterID)
		}
		if job.Status.Finished() {
			return false, model.Invalidf("printjob %s is already %s", job.ID, job.Status)
		}

		if pos := p.Position(jobID); pos >= 0 {
			result = model.EnqueueResult{Position: pos, Printer: *p}
			return false, nil
		}

		result.WasAvailable = p.Status == model.PrinterAvailable
		result.Position = len(p.Queue)
		p.Queue = append(p.Queue, jobID)
		p.SettleStatus()
		result.Printer = *p
		return true, nil
	})
	if err != nil {
		return model.EnqueueResult{}, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// PeekHead выполняет первый шаг цикла диспетчера: читает голову очереди под блокировкой
// блокировка отпускается сразу после коммита и не держится во время печати
func (r *PrinterRepository) PeekHead(ctx context.Context, printerID string) (model.QueueHead, error) {
	const op = "repository.postgres.printer.PeekHead"

	var head model.QueueHead
	err := r.withLockedPrinter(ctx, printerID, func(_ pgx.Tx, p *model.Printer) (bool, error) {
		switch {
		case p.Status == model.PrinterInMaintenance:
			head.Paused = true
			return false, nil
		case len(p.Queue) == 0:
			head.Empty = true
			changed := p.Status != model.PrinterAvailable
			p.Status = model.PrinterAvailable
			return changed, nil
		default:
			head.JobID = p.Queue[0]
			return false, nil
		}
	})
	if err != nil {
		return model.QueueHead{}, fmt.Errorf("%s: %w", op, err)
	}
	return head, nil
}

// PopOrphan снимает с головы очереди задание, запись которого пропала
// если голова уже другая, ничего не делает
func (r *PrinterRepository) PopOrphan(ctx context.Context, printerID, jobID string) (model.Printer, error) {
	const op = "repository.postgres.printer.PopOrphan"

	var out model.Printer
	err := r.withLockedPrinter(ctx, printerID, func(_ pgx.Tx, p *model.Printer) (bool, error) {
		if len(p.Queue) == 0 || p.Queue[0] != jobID {
			out = *p
			return false, nil
		}
		p.Queue = p.Queue[1:]
		p.SettleStatus()
		out = *p
		return true, nil
	})
	if err != nil {
		return model.Printer{}, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// FinishHead снимает напечатанное задание с головы очереди и фиксирует его итоговый статус
func (r *PrinterRepository) FinishHead(ctx context.Context, printerID, jobID string, status model.PrintJobStatus) (model.Printer, error) {
	const op = "repository.postgres.printer.FinishHead"

	var out model.Printer
	err := r.withLockedPrinter(ctx, printerID, func(tx pgx.Tx, p *model.Printer) (bool, error) {
		if len(p.Queue) == 0 || p.Queue[0] != jobID {
			return false, fmt.Errorf("printer %s, job %s: %w", printerID, jobID, model.ErrHeadMismatch)
		}

		if _, err := tx.Exec(ctx,
			"UPDATE print_jobs SET print_status = $1, updated_at = now() WHERE id = $2",
			status, jobID,
		); err != nil {
			return false, fmt.Errorf("failed to update printjob status: %w", err)
		}

		p.Queue = p.Queue[1:]
		p.SettleStatus()
		out = *p
		return true, nil
	})
	if err != nil {
		return model.Printer{}, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// SetMaintenance включает или снимает режим обслуживания
// при снятии статус пересчитывается по очереди
func (r *PrinterRepository) SetMaintenance(ctx context.Context, printerID string, on bool) (model.Printer, error) {
	const op = "repository.postgres.printer.SetMaintenance"

	var out model.Printer
	err := r.withLockedPrinter(ctx, printerID, func(_ pgx.Tx, p *model.Printer) (bool, error) {
		if on {
			p.Status = model.PrinterInMaintenance
		} else {
			p.Status = model.PrinterAvailable
			p.SettleStatus()
		}
		out = *p
		return true, nil
	})
	if err != nil {
		return model.Printer{}, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// withLockedPrinter выполняет fn в транзакции, держа блокировку строки принтера
// если fn вернула true, статус и очередь записываются обратно перед коммитом
func (r *PrinterRepository) withLockedPrinter(ctx context.Context, printerID string, fn func(tx pgx.Tx, p *model.Printer) (bool, error)) error {
	// начинаем транзакцию
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// гарантируем откат транзакции в случае любой ошибки
	defer tx.Rollback(ctx)

	sql, args, err := r.sq.Select(printerColumns...).
		From("printers").
		Where(squirrel.Eq{"id": printerID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build lock query: %w", err)
	}

	p, err := scanPrinter(tx.QueryRow(ctx, sql, args...))
	if err != nil {
		if isNoRows(err) {
			return model.NotFoundf("printer with id %s not found", printerID)
		}
		return fmt.Errorf("failed to lock printer: %w", err)
	}

	dirty, err := fn(tx, &p)
	if err != nil {
		return err
	}

	if dirty {
		sql, args, err := r.sq.Update("printers").
			Set("status", p.Status).
			Set("queue", p.Queue).
			Set("updated_at", squirrel.Expr("now()")).
			Where(squirrel.Eq{"id": printerID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build printer update query: %w", err)
		}
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("failed to update printer: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func scanPrinter(row pgx.Row) (model.Printer, error) {
	var p model.Printer
	err := row.Scan(&p.ID, &p.Location, &p.Code, &p.Status, &p.Queue, &p.CreatedAt, &p.UpdatedAt)
	if p.Queue == nil {
		p.Queue = []string{}
	}
	return p, err
}
