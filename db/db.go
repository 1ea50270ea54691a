package db

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
)

type Storage struct {
	db *sqlx.DB
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{db: db}
}

// Tender is one stored procurement record, keyed by its OCID.
// Optional upstream fields are pointers so a missing value stays NULL
// instead of degrading into an empty string.
type Tender struct {
	OCID             string     `db:"ocid" json:"ocid"`
	Title            string     `db:"title" json:"title"`
	Description      *string    `db:"description" json:"description,omitempty"`
	Category         *string    `db:"category" json:"category,omitempty"`
	BuyerName        *string    `db:"buyer_name" json:"buyerName,omitempty"`
	Department       *string    `db:"department" json:"department,omitempty"`
	BidNumber        *string    `db:"bid_number" json:"bidNumber,omitempty"`
	OpeningDate      *time.Time `db:"opening_date" json:"openingDate,omitempty"`
	CloseDate        *time.Time `db:"close_date" json:"closeDate,omitempty"`
	Province         *string    `db:"province" json:"province,omitempty"`
	Industry         string     `db:"industry" json:"industry"`
	ContactPerson    *string    `db:"contact_person" json:"contactPerson,omitempty"`
	ContactEmail     *string    `db:"contact_email" json:"contactEmail,omitempty"`
	ContactTelephone *string    `db:"contact_telephone" json:"contactTelephone,omitempty"`
	ContactFax       *string    `db:"contact_fax" json:"contactFax,omitempty"`
	SubmissionMethod *string    `db:"submission_method" json:"submissionMethod,omitempty"`
	SubmissionEmail  *string    `db:"submission_email" json:"submissionEmail,omitempty"`
	RequiredFormat   *string    `db:"required_format" json:"requiredFormat,omitempty"`
	FileSizeLimit    *string    `db:"file_size_limit" json:"fileSizeLimit,omitempty"`

	FullData  types.JSONText `db:"full_data" json:"fullData,omitempty"`
	Documents types.JSONText `db:"documents" json:"documents,omitempty"`
	Items     types.JSONText `db:"items" json:"items,omitempty"`

	ViewCount int       `db:"view_count" json:"viewCount"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// UpsertTender inserts or overwrites the record for t.OCID. Re-ingesting the
// same OCID must never duplicate a row; the upstream source is the authority,
// so the newest write wins on every mutable field.
func (s *Storage) UpsertTender(ctx context.Context, t *Tender) error {
	query := `
        INSERT INTO tenders
            (ocid, title, description, category, buyer_name, department, bid_number,
             opening_date, close_date, province, industry,
             contact_person, contact_email, contact_telephone, contact_fax,
             submission_method, submission_email, required_format, file_size_limit,
             full_data, documents, items, updated_at)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
             $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, NOW())
        ON CONFLICT (ocid) DO UPDATE SET
            title = EXCLUDED.title,
            description = EXCLUDED.description,
            category = EXCLUDED.category,
            buyer_name = EXCLUDED.buyer_name,
            department = EXCLUDED.department,
            bid_number = EXCLUDED.bid_number,
            opening_date = EXCLUDED.opening_date,
            close_date = EXCLUDED.close_date,
            province = EXCLUDED.province,
            industry = EXCLUDED.industry,
            contact_person = EXCLUDED.contact_person,
            contact_email = EXCLUDED.contact_email,
            contact_telephone = EXCLUDED.contact_telephone,
            contact_fax = EXCLUDED.contact_fax,
            submission_method = EXCLUDED.submission_method,
            submission_email = EXCLUDED.submission_email,
            required_format = EXCLUDED.required_format,
            file_size_limit = EXCLUDED.file_size_limit,
            full_data = EXCLUDED.full_data,
            documents = EXCLUDED.documents,
            items = EXCLUDED.items,
            updated_at = NOW()`
	_, err := s.db.ExecContext(ctx, query,
		t.OCID, t.Title, t.Description, t.Category, t.BuyerName, t.Department, t.BidNumber,
		t.OpeningDate, t.CloseDate, t.Province, t.Industry,
		t.ContactPerson, t.ContactEmail, t.ContactTelephone, t.ContactFax,
		t.SubmissionMethod, t.SubmissionEmail, t.RequiredFormat, t.FileSizeLimit,
		t.FullData, t.Documents, t.Items)
	return err
}

func (s *Storage) GetTender(ctx context.Context, ocid string) (*Tender, error) {
	t := &Tender{}
	query := `SELECT * FROM tenders WHERE ocid = $1`
	err := s.db.GetContext(ctx, t, query, ocid)
	return t, err
}

// TenderFilter narrows GetTenders results.
type TenderFilter struct {
	Search   string
	Province string
	Industry string
	OpenOnly bool
	Limit    int
	Offset   int
}

const tenderListColumns = `
        ocid, title, description, category, buyer_name, department, bid_number,
        opening_date, close_date, province, industry, view_count, updated_at,
        '{}'::jsonb AS full_data, documents, '[]'::jsonb AS items,
        contact_person, contact_email, contact_telephone, contact_fax,
        submission_method, submission_email, required_format, file_size_limit`

func (s *Storage) GetTenders(ctx context.Context, f TenderFilter) ([]Tender, error) {
	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Search != "" {
		p := arg("%" + f.Search + "%")
		conds = append(conds, fmt.Sprintf("(title ILIKE %s OR description ILIKE %s OR buyer_name ILIKE %s)", p, p, p))
	}
	if f.Province != "" {
		conds = append(conds, "province = "+arg(f.Province))
	}
	if f.Industry != "" {
		conds = append(conds, "industry = "+arg(f.Industry))
	}
	if f.OpenOnly {
		conds = append(conds, "close_date IS NOT NULL AND close_date > NOW()")
	}

	query := "SELECT " + tenderListColumns + " FROM tenders"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY close_date DESC NULLS LAST"
	query += fmt.Sprintf(" LIMIT %s OFFSET %s", arg(f.Limit), arg(f.Offset))

	tenders := []Tender{}
	err := s.db.SelectContext(ctx, &tenders, query, args...)
	if err != nil {
		return nil, err
	}
	return tenders, nil
}

func (s *Storage) CountTenders(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM tenders`)
	return count, err
}

// CountOpenTenders applies the pipeline's "open" predicate: a close date must
// exist and lie strictly in the future.
func (s *Storage) CountOpenTenders(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM tenders WHERE close_date IS NOT NULL AND close_date > NOW()`
	err := s.db.GetContext(ctx, &count, query)
	return count, err
}

// SyncRun statuses.
const (
	SyncStatusCompleted      = "completed"
	SyncStatusPartialFailure = "partial_failure"
	SyncStatusFailed         = "failed"
)

// SyncRun records one orchestrator execution. Rows are written once at the
// end of a run and never mutated.
type SyncRun struct {
	ID                string    `db:"id" json:"id"`
	SyncType          string    `db:"sync_type" json:"syncType"`
	TotalFetched      int       `db:"total_fetched" json:"totalFetched"`
	OpenTenders       int       `db:"open_tenders" json:"openTenders"`
	PagesProcessed    int       `db:"pages_processed" json:"pagesProcessed"`
	APICalls          int       `db:"api_calls" json:"apiCalls"`
	ExecutionTimeMs   int64     `db:"execution_time_ms" json:"executionTimeMs"`
	DateFrom          time.Time `db:"date_from" json:"dateFrom"`
	DateTo            time.Time `db:"date_to" json:"dateTo"`
	ConsecutiveErrors int       `db:"consecutive_errors" json:"consecutiveErrors"`
	Status            string    `db:"status" json:"status"`
	StoppedReason     string    `db:"stopped_reason" json:"stoppedReason"`
	CreatedAt         time.Time `db:"created_at" json:"createdAt"`
}

func (s *Storage) InsertSyncRun(ctx context.Context, r *SyncRun) error {
	query := `
        INSERT INTO sync_runs
            (id, sync_type, total_fetched, open_tenders, pages_processed, api_calls,
             execution_time_ms, date_from, date_to, consecutive_errors, status, stopped_reason)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        RETURNING created_at`
	return s.db.QueryRowContext(ctx, query,
		r.ID, r.SyncType, r.TotalFetched, r.OpenTenders, r.PagesProcessed, r.APICalls,
		r.ExecutionTimeMs, r.DateFrom, r.DateTo, r.ConsecutiveErrors, r.Status, r.StoppedReason).
		Scan(&r.CreatedAt)
}

// LastSyncWatermark returns the start time of the most recent run that
// produced usable data. A zero time means no such run exists yet.
func (s *Storage) LastSyncWatermark(ctx context.Context) (time.Time, error) {
	var ts time.Time
	query := `
        SELECT created_at FROM sync_runs
        WHERE status IN ($1, $2)
        ORDER BY created_at DESC
        LIMIT 1`
	err := s.db.GetContext(ctx, &ts, query, SyncStatusCompleted, SyncStatusPartialFailure)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	return ts, err
}

// IsFullSyncDue reports whether no full sync landed within the interval.
func (s *Storage) IsFullSyncDue(ctx context.Context, intervalDays int) (bool, error) {
	var due bool
	query := `
        SELECT NOT EXISTS (
            SELECT 1 FROM sync_runs
            WHERE sync_type = 'full'
              AND status IN ($1, $2)
              AND created_at > NOW() - make_interval(days => $3)
        )`
	err := s.db.GetContext(ctx, &due, query, SyncStatusCompleted, SyncStatusPartialFailure, intervalDays)
	return due, err
}

func (s *Storage) GetRecentSyncRuns(ctx context.Context, limit int) ([]SyncRun, error) {
	runs := []SyncRun{}
	query := `SELECT * FROM sync_runs ORDER BY created_at DESC LIMIT $1`
	err := s.db.SelectContext(ctx, &runs, query, limit)
	return runs, err
}

// Bookmark joins a user to a tender by its natural key.
type Bookmark struct {
	ID         int       `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"userId"`
	TenderOCID string    `db:"tender_ocid" json:"tenderOcid"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// AddBookmark is idempotent: a duplicate (user, ocid) insert is absorbed by
// the uniqueness constraint and reported as created=false.
func (s *Storage) AddBookmark(ctx context.Context, userID, ocid string) (bool, error) {
	var id int
	query := `
        INSERT INTO bookmarks (user_id, tender_ocid)
        VALUES ($1, $2)
        ON CONFLICT (user_id, tender_ocid) DO NOTHING
        RETURNING id`
	err := s.db.QueryRowContext(ctx, query, userID, ocid).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RemoveBookmark is idempotent: deleting an absent bookmark is not an error.
func (s *Storage) RemoveBookmark(ctx context.Context, userID, ocid string) error {
	query := `DELETE FROM bookmarks WHERE user_id = $1 AND tender_ocid = $2`
	_, err := s.db.ExecContext(ctx, query, userID, ocid)
	return err
}

func (s *Storage) HasBookmark(ctx context.Context, userID, ocid string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM bookmarks WHERE user_id = $1 AND tender_ocid = $2)`
	err := s.db.GetContext(ctx, &exists, query, userID, ocid)
	return exists, err
}

func (s *Storage) ListBookmarks(ctx context.Context, userID string, limit, offset int) ([]Tender, error) {
	query := `
        SELECT t.ocid, t.title, t.description, t.category, t.buyer_name, t.department,
               t.bid_number, t.opening_date, t.close_date, t.province, t.industry,
               t.view_count, t.updated_at,
               '{}'::jsonb AS full_data, t.documents, '[]'::jsonb AS items,
               t.contact_person, t.contact_email, t.contact_telephone, t.contact_fax,
               t.submission_method, t.submission_email, t.required_format, t.file_size_limit
        FROM bookmarks b
        JOIN tenders t ON t.ocid = b.tender_ocid
        WHERE b.user_id = $1
        ORDER BY b.created_at DESC
        LIMIT $2 OFFSET $3`
	tenders := []Tender{}
	err := s.db.SelectContext(ctx, &tenders, query, userID, limit, offset)
	return tenders, err
}

func (s *Storage) CountBookmarks(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM bookmarks`)
	return count, err
}

// ViewerHash folds the viewer signal into one dedup key.
func ViewerHash(ip, userAgent, userID string) string {
	sum := sha256.Sum256([]byte(ip + "|" + userAgent + "|" + userID))
	return hex.EncodeToString(sum[:])
}

// RecordView increments the tender's view counter unless the same viewer
// signal was already seen inside the dedup window. Returns the current count
// and whether this view was counted.
func (s *Storage) RecordView(ctx context.Context, ocid, viewerHash string, window time.Duration) (int, bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, false, err
	}
	defer tx.Rollback()

	var seen bool
	checkQuery := `
        SELECT EXISTS (
            SELECT 1 FROM tender_views
            WHERE tender_ocid = $1 AND viewer_hash = $2
              AND viewed_at > NOW() - make_interval(secs => $3)
        )`
	if err := tx.GetContext(ctx, &seen, checkQuery, ocid, viewerHash, window.Seconds()); err != nil {
		return 0, false, err
	}

	if seen {
		var count int
		err := tx.GetContext(ctx, &count, `SELECT view_count FROM tenders WHERE ocid = $1`, ocid)
		if err != nil {
			return 0, false, err
		}
		return count, false, tx.Commit()
	}

	insertQuery := `INSERT INTO tender_views (tender_ocid, viewer_hash) VALUES ($1, $2)`
	if _, err := tx.ExecContext(ctx, insertQuery, ocid, viewerHash); err != nil {
		return 0, false, err
	}

	var count int
	incrementQuery := `
        UPDATE tenders SET view_count = view_count + 1
        WHERE ocid = $1
        RETURNING view_count`
	if err := tx.GetContext(ctx, &count, incrementQuery, ocid); err != nil {
		return 0, false, err
	}
	return count, true, tx.Commit()
}

// AdminStats aggregates the numbers shown on the admin dashboard.
type AdminStats struct {
	TotalTenders   int `db:"total_tenders" json:"totalTenders"`
	OpenTenders    int `db:"open_tenders" json:"openTenders"`
	TotalBookmarks int `db:"total_bookmarks" json:"totalBookmarks"`
	TotalViews     int `db:"total_views" json:"totalViews"`
}

func (s *Storage) GetAdminStats(ctx context.Context) (*AdminStats, error) {
	stats := &AdminStats{}
	query := `
        SELECT
            (SELECT COUNT(*) FROM tenders) AS total_tenders,
            (SELECT COUNT(*) FROM tenders WHERE close_date IS NOT NULL AND close_date > NOW()) AS open_tenders,
            (SELECT COUNT(*) FROM bookmarks) AS total_bookmarks,
            (SELECT COALESCE(SUM(view_count), 0) FROM tenders) AS total_views`
	err := s.db.GetContext(ctx, stats, query)
	return stats, err
}

// RecentlyUpdatedTenders feeds the best-effort search indexing step.
func (s *Storage) RecentlyUpdatedTenders(ctx context.Context, since time.Time, limit int) ([]Tender, error) {
	query := `
        SELECT ` + tenderListColumns + `
        FROM tenders
        WHERE updated_at > $1
        ORDER BY updated_at DESC
        LIMIT $2`
	tenders := []Tender{}
	err := s.db.SelectContext(ctx, &tenders, query, since, limit)
	return tenders, err
}
