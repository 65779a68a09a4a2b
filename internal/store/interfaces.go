package store

import (
	"github.com/Barneycle/ganapp-core/internal/models"
)

// QueueStore defines the queue persistence operations the drain loop
// depends on. The interface allows mocking for testing.
type QueueStore interface {
	EnqueueOperation(op *models.QueuedOperation) error
	GetQueueEntry(id models.UUID) (*models.QueuedOperation, error)
	NextPending(now int64) (*models.QueuedOperation, error)
	MarkInFlight(id models.UUID) error
	MarkFailed(id models.UUID, attempts int, lastError string, nextRetryAt int64) error
	DeleteQueueEntry(id models.UUID) error
	ListQueue(statuses ...models.QueueStatus) ([]*models.QueuedOperation, error)
	CountUnapplied() (int, error)
	RecoverInFlight() (int64, error)
	ReleaseDueFailed(now int64) (int64, error)
	ResetForRetry(id models.UUID) error
	ResetAllFailed() (int64, error)
}

// MirrorStore defines the cache write-back operations used after a
// drain resolves an entry.
type MirrorStore interface {
	MirrorRemote(dataType models.DataType, payload []byte) error
	RemoveLocal(dataType models.DataType, id models.UUID) error
}

// NoticeStore defines persistence for conflict resolution notices.
type NoticeStore interface {
	CreateNotice(notice *models.SyncNotice) error
	ListUnseenNotices() ([]*models.SyncNotice, error)
	MarkNoticeSeen(id models.UUID) error
}

// SyncStore groups the persistence surfaces the sync engine needs.
type SyncStore interface {
	QueueStore
	MirrorStore
	NoticeStore
}

// Ensure *Store implements the interfaces at compile time.
var (
	_ QueueStore  = (*Store)(nil)
	_ MirrorStore = (*Store)(nil)
	_ NoticeStore = (*Store)(nil)
	_ SyncStore   = (*Store)(nil)
)
