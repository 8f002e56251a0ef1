package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asquebay/print-queue-service/internal/model"
)

func seed(t *testing.T) (*Store, string) {
	t.Helper()

	s := New()
	s.PutUser(model.User{ID: "u-1", Name: "alice", AvailablePages: 10})
	s.PutFile(model.File{ID: "f-1", Name: "a.pdf", TotalPages: 4})
	require.NoError(t, s.CreatePrinters(context.Background(), []model.Printer{
		{ID: "p-1", Location: "H6-101", Code: "P-1", Status: model.PrinterAvailable},
		{ID: "p-2", Location: "H6-102", Code: "P-2", Status: model.PrinterAvailable},
	}))
	return s, "p-1"
}

func admit(t *testing.T, s *Store, id, printerID string, pages int) model.PrintJob {
	t.Helper()

	job, _, err := s.Admit(context.Background(), model.PrintJob{
		ID:        id,
		FileID:    "f-1",
		UserID:    "u-1",
		PrinterID: printerID,
		PageSize:  []float64{297, 210},
		Copies:    1,
		NumPages:  pages,
		Duplex:    true,
		Status:    model.PrintJobInQueue,
	})
	require.NoError(t, err)
	return job
}

func TestCreatePrinters_UniqueCode(t *testing.T) {
	s, _ := seed(t)

	err := s.CreatePrinters(context.Background(), []model.Printer{{ID: "p-3", Location: "x", Code: "P-1"}})
	require.ErrorIs(t, err, model.ErrInvalidArgument)

	_, err = s.GetPrinter(context.Background(), "p-3")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestAdmit_ChargesQuota(t *testing.T) {
	s, printerID := seed(t)
	ctx := context.Background()

	_, remaining, err := s.Admit(ctx, model.PrintJob{ID: "j-1", FileID: "f-1", UserID: "u-1", PrinterID: printerID, NumPages: 4})
	require.NoError(t, err)
	assert.Equal(t, 6, remaining)

	_, _, err = s.Admit(ctx, model.PrintJob{ID: "j-2", FileID: "f-1", UserID: "u-1", PrinterID: printerID, NumPages: 7})
	var qe *model.QuotaError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, 7, qe.Required)
	assert.Equal(t, 6, qe.Available)

	u, err := s.GetUser(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 6, u.AvailablePages)

	_, err = s.GetPrintJob(ctx, "j-2")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestAdmit_RejectsNonPositivePages(t *testing.T) {
	s, printerID := seed(t)
	ctx := context.Background()

	for i, pages := range []int{0, -1, -62368} {
		id := fmt.Sprintf("j-%d", i)
		_, _, err := s.Admit(ctx, model.PrintJob{ID: id, FileID: "f-1", UserID: "u-1", PrinterID: printerID, NumPages: pages})
		require.ErrorIs(t, err, model.ErrInvalidArgument, "pages=%d", pages)

		_, err = s.GetPrintJob(ctx, id)
		require.ErrorIs(t, err, model.ErrNotFound)
	}

	u, err := s.GetUser(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 10, u.AvailablePages)
}

func TestEnqueue(t *testing.T) {
	s, printerID := seed(t)
	ctx := context.Background()
	admit(t, s, "j-1", printerID, 1)
	admit(t, s, "j-2", printerID, 1)

	first, err := s.Enqueue(ctx, "j-1", printerID)
	require.NoError(t, err)
	assert.Equal(t, 0, first.Position)
	assert.True(t, first.WasAvailable)
	assert.Equal(t, model.PrinterBusy, first.Printer.Status)

	second, err := s.Enqueue(ctx, "j-2", printerID)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Position)
	assert.False(t, second.WasAvailable)

	again, err := s.Enqueue(ctx, "j-1", printerID)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Position)
	assert.False(t, again.WasAvailable)
	assert.Equal(t, []string{"j-1", "j-2"}, again.Printer.Queue)

	// снимок не связан с состоянием хранилища
	again.Printer.Queue[0] = "mutated"
	p, err := s.GetPrinter(ctx, printerID)
	require.NoError(t, err)
	assert.Equal(t, []string{"j-1", "j-2"}, p.Queue)
}

func TestEnqueue_Rejections(t *testing.T) {
	s, printerID := seed(t)
	ctx := context.Background()
	admit(t, s, "j-1", printerID, 1)

	_, err := s.Enqueue(ctx, "j-1", "p-2")
	require.ErrorIs(t, err, model.ErrInvalidArgument)

	_, err = s.Enqueue(ctx, "missing", printerID)
	require.ErrorIs(t, err, model.ErrNotFound)

	_, err = s.Enqueue(ctx, "j-1", "missing")
	require.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, s.UpdatePrintJobStatus(ctx, "j-1", model.PrintJobComplete))
	_, err = s.Enqueue(ctx, "j-1", printerID)
	require.ErrorIs(t, err, model.ErrInvalidArgument)

	admit(t, s, "j-2", printerID, 1)
	_, err = s.SetMaintenance(ctx, printerID, true)
	require.NoError(t, err)
	_, err = s.Enqueue(ctx, "j-2", printerID)
	require.ErrorIs(t, err, model.ErrUnavailable)
}

func TestQueueLifecycle(t *testing.T) {
	s, printerID := seed(t)
	ctx := context.Background()
	admit(t, s, "j-1", printerID, 1)
	admit(t, s, "j-2", printerID, 1)
	_, err := s.Enqueue(ctx, "j-1", printerID)
	require.NoError(t, err)
	_, err = s.Enqueue(ctx, "j-2", printerID)
	require.NoError(t, err)

	head, err := s.PeekHead(ctx, printerID)
	require.NoError(t, err)
	assert.Equal(t, model.QueueHead{JobID: "j-1"}, head)

	_, err = s.FinishHead(ctx, printerID, "j-2", model.PrintJobComplete)
	require.ErrorIs(t, err, model.ErrHeadMismatch)

	p, err := s.FinishHead(ctx, printerID, "j-1", model.PrintJobComplete)
	require.NoError(t, err)
	assert.Equal(t, []string{"j-2"}, p.Queue)
	assert.Equal(t, model.PrinterBusy, p.Status)

	job, err := s.GetPrintJob(ctx, "j-1")
	require.NoError(t, err)
	assert.Equal(t, model.PrintJobComplete, job.Status)

	// PopOrphan не трогает очередь, если голова уже другая
	p, err = s.PopOrphan(ctx, printerID, "j-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"j-2"}, p.Queue)

	p, err = s.PopOrphan(ctx, printerID, "j-2")
	require.NoError(t, err)
	assert.Empty(t, p.Queue)
	assert.Equal(t, model.PrinterAvailable, p.Status)

	head, err = s.PeekHead(ctx, printerID)
	require.NoError(t, err)
	assert.True(t, head.Empty)
}

func TestMaintenance(t *testing.T) {
	s, printerID := seed(t)
	ctx := context.Background()
	admit(t, s, "j-1", printerID, 1)
	_, err := s.Enqueue(ctx, "j-1", printerID)
	require.NoError(t, err)

	p, err := s.SetMaintenance(ctx, printerID, true)
	require.NoError(t, err)
	assert.Equal(t, model.PrinterInMaintenance, p.Status)

	head, err := s.PeekHead(ctx, printerID)
	require.NoError(t, err)
	assert.True(t, head.Paused)

	// завершение задания на обслуживаемом принтере не снимает обслуживание
	p, err = s.FinishHead(ctx, printerID, "j-1", model.PrintJobComplete)
	require.NoError(t, err)
	assert.Equal(t, model.PrinterInMaintenance, p.Status)

	p, err = s.SetMaintenance(ctx, printerID, false)
	require.NoError(t, err)
	assert.Equal(t, model.PrinterAvailable, p.Status)
}

func TestSearchPrintJobs(t *testing.T) {
	s, printerID := seed(t)
	ctx := context.Background()

	base := time.Date(2026, 10, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	admit(t, s, "j-1", printerID, 1)
	s.now = func() time.Time { return base.Add(48 * time.Hour) }
	admit(t, s, "j-2", "p-2", 1)

	all, err := s.SearchPrintJobs(ctx, model.PrintJobFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "j-1", all[0].ID)
	require.NotNil(t, all[0].File)
	assert.Equal(t, "a.pdf", all[0].File.Name)
	require.NotNil(t, all[0].Printer)
	assert.Equal(t, "P-1", all[0].Printer.Code)

	byPrinter, err := s.SearchPrintJobs(ctx, model.PrintJobFilter{PrinterID: "p-2"})
	require.NoError(t, err)
	require.Len(t, byPrinter, 1)
	assert.Equal(t, "j-2", byPrinter[0].ID)

	from := base.Add(-time.Hour)
	to := base.Add(time.Hour)
	inRange, err := s.SearchPrintJobs(ctx, model.PrintJobFilter{From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, inRange, 1)
	assert.Equal(t, "j-1", inRange[0].ID)
}

func TestNotifications(t *testing.T) {
	s, printerID := seed(t)
	ctx := context.Background()
	admit(t, s, "j-1", printerID, 1)

	require.NoError(t, s.CreateNotification(ctx, model.Notification{ID: "n-1", Message: "one", ReceiverIDs: []string{"u-1"}, PrintJobID: "j-1"}))
	require.NoError(t, s.CreateNotification(ctx, model.Notification{ID: "n-2", Message: "two", ReceiverIDs: []string{"u-1"}, PrintJobID: "j-1"}))

	err := s.CreateNotification(ctx, model.Notification{ID: "n-3", ReceiverIDs: []string{"u-1", "ghost"}})
	require.ErrorIs(t, err, model.ErrNotFound)
	assert.Contains(t, err.Error(), "ghost")

	err = s.CreateNotification(ctx, model.Notification{ID: "n-4", ReceiverIDs: []string{"u-1"}, PrintJobID: "missing"})
	require.ErrorIs(t, err, model.ErrNotFound)

	items, err := s.ListNotificationsForUser(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "n-2", items[0].ID)

	all, err := s.ListNotifications(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
