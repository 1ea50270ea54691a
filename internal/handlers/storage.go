package handlers

import (
	"context"
	"time"

	"tendersync/db"
)

type StorageInterface interface {
	GetTender(ctx context.Context, ocid string) (*db.Tender, error)
	GetTenders(ctx context.Context, f db.TenderFilter) ([]db.Tender, error)

	RecordView(ctx context.Context, ocid, viewerHash string, window time.Duration) (int, bool, error)

	AddBookmark(ctx context.Context, userID, ocid string) (bool, error)
	RemoveBookmark(ctx context.Context, userID, ocid string) error
	HasBookmark(ctx context.Context, userID, ocid string) (bool, error)
	ListBookmarks(ctx context.Context, userID string, limit, offset int) ([]db.Tender, error)

	GetAdminStats(ctx context.Context) (*db.AdminStats, error)
	GetRecentSyncRuns(ctx context.Context, limit int) ([]db.SyncRun, error)
}
