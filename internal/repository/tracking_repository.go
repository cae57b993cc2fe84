package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/davmuu/curriculum-tracking-api/internal/models"
)

const trackingColumns = `tracking_id, curriculum_id, current_stage, current_status, is_active, is_completed,
       stages, history, metadata, school_id, department_id, initiated_by, assigned_to,
       created_at, updated_at, expected_completion_date`

// TrackingRepository persists tracking record aggregates.
type TrackingRepository struct {
	db *sqlx.DB
}

// NewTrackingRepository constructs the repository.
func NewTrackingRepository(db *sqlx.DB) *TrackingRepository {
	return &TrackingRepository{db: db}
}

// Create inserts a new tracking record row.
func (r *TrackingRepository) Create(ctx context.Context, record *models.TrackingRecord) error {
	const query = `INSERT INTO tracking_records
	(tracking_id, curriculum_id, current_stage, current_status, is_active, is_completed,
	 stages, history, metadata, school_id, department_id, initiated_by, assigned_to,
	 created_at, updated_at, expected_completion_date)
	VALUES (:tracking_id, :curriculum_id, :current_stage, :current_status, :is_active, :is_completed,
	 :stages, :history, :metadata, :school_id, :department_id, :initiated_by, :assigned_to,
	 :created_at, :updated_at, :expected_completion_date)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create tracking record: %w", err)
	}
	return nil
}

// GetByTrackingID fetches one record by its external identifier.
func (r *TrackingRepository) GetByTrackingID(ctx context.Context, trackingID string) (*models.TrackingRecord, error) {
	query := `SELECT ` + trackingColumns + ` FROM tracking_records WHERE tracking_id = $1`
	var record models.TrackingRecord
	if err := r.db.GetContext(ctx, &record, query, trackingID); err != nil {
		return nil, err
	}
	return &record, nil
}

// Update persists the full aggregate guarded by an optimistic check on
// the previously loaded updated_at. Zero rows affected means another
// writer got there first; callers map that to a conflict.
func (r *TrackingRepository) Update(ctx context.Context, record *models.TrackingRecord, prevUpdatedAt time.Time) error {
	const query = `UPDATE tracking_records SET
	 current_stage = :current_stage,
	 current_status = :current_status,
	 is_active = :is_active,
	 is_completed = :is_completed,
	 stages = :stages,
	 history = :history,
	 metadata = :metadata,
	 school_id = :school_id,
	 department_id = :department_id,
	 assigned_to = :assigned_to,
	 updated_at = :updated_at,
	 expected_completion_date = :expected_completion_date
	WHERE tracking_id = :tracking_id AND updated_at = :prev_updated_at`

	arg := map[string]interface{}{
		"tracking_id":              record.TrackingID,
		"current_stage":            record.CurrentStage,
		"current_status":           record.CurrentStatus,
		"is_active":                record.IsActive,
		"is_completed":             record.IsCompleted,
		"stages":                   record.Stages,
		"history":                  record.History,
		"metadata":                 record.Metadata,
		"school_id":                record.SchoolID,
		"department_id":            record.DepartmentID,
		"assigned_to":              record.AssignedTo,
		"updated_at":               record.UpdatedAt,
		"expected_completion_date": record.ExpectedCompletionDate,
		"prev_updated_at":          prevUpdatedAt,
	}
	result, err := r.db.NamedExecContext(ctx, query, arg)
	if err != nil {
		return fmt.Errorf("update tracking record: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check tracking update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns tracking records matching the filter (latest first) with
// a total count for pagination.
func (r *TrackingRepository) List(ctx context.Context, filter models.TrackingFilter) ([]models.TrackingRecord, *models.Pagination, error) {
	conditions := make([]string, 0, 6)
	args := make([]interface{}, 0, 6)

	if filter.SchoolID != "" {
		args = append(args, filter.SchoolID)
		conditions = append(conditions, fmt.Sprintf("school_id = $%d", len(args)))
	}
	if filter.DepartmentID != "" {
		args = append(args, filter.DepartmentID)
		conditions = append(conditions, fmt.Sprintf("department_id = $%d", len(args)))
	}
	if filter.CurrentStage != "" {
		args = append(args, filter.CurrentStage)
		conditions = append(conditions, fmt.Sprintf("current_stage = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("current_status = $%d", len(args)))
	}
	if filter.AssignedTo != "" {
		args = append(args, filter.AssignedTo)
		conditions = append(conditions, fmt.Sprintf("assigned_to = $%d", len(args)))
	}
	if filter.InitiatedBy != "" {
		args = append(args, filter.InitiatedBy)
		conditions = append(conditions, fmt.Sprintf("initiated_by = $%d", len(args)))
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "is_active = TRUE")
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM tracking_records"+where, args...); err != nil {
		return nil, nil, fmt.Errorf("count tracking records: %w", err)
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	query := "SELECT " + trackingColumns + " FROM tracking_records" + where +
		fmt.Sprintf(" ORDER BY updated_at DESC LIMIT %d OFFSET %d", pageSize, (page-1)*pageSize)

	var records []models.TrackingRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, nil, fmt.Errorf("list tracking records: %w", err)
	}
	return records, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Search applies the search endpoint criteria. Overdue is derived from
// the expected completion date at query time, never read from a column.
func (r *TrackingRepository) Search(ctx context.Context, criteria models.TrackingSearchCriteria, now time.Time) ([]models.TrackingRecord, *models.Pagination, error) {
	conditions := []string{"is_active = TRUE"}
	args := make([]interface{}, 0, 6)

	if term := strings.TrimSpace(criteria.SearchTerm); term != "" {
		args = append(args, "%"+term+"%")
		idx := len(args)
		conditions = append(conditions, fmt.Sprintf(
			"(metadata->>'proposedName' ILIKE $%d OR metadata->>'proposedCode' ILIKE $%d OR curriculum_id ILIKE $%d)", idx, idx, idx))
	}
	if criteria.SchoolID != "" {
		args = append(args, criteria.SchoolID)
		conditions = append(conditions, fmt.Sprintf("school_id = $%d", len(args)))
	}
	if criteria.DepartmentID != "" {
		args = append(args, criteria.DepartmentID)
		conditions = append(conditions, fmt.Sprintf("department_id = $%d", len(args)))
	}
	if criteria.Status != "" {
		args = append(args, criteria.Status)
		conditions = append(conditions, fmt.Sprintf("current_status = $%d", len(args)))
	}
	if criteria.CurrentStage != "" {
		args = append(args, criteria.CurrentStage)
		conditions = append(conditions, fmt.Sprintf("current_stage = $%d", len(args)))
	}
	if criteria.IsIdeationStage != nil {
		op := "="
		if !*criteria.IsIdeationStage {
			op = "<>"
		}
		args = append(args, models.StageInitiation)
		conditions = append(conditions, fmt.Sprintf("current_stage %s $%d", op, len(args)))
	}
	if criteria.IsOverdue != nil {
		args = append(args, now)
		overdue := fmt.Sprintf("(expected_completion_date IS NOT NULL AND expected_completion_date < $%d AND NOT is_completed)", len(args))
		if *criteria.IsOverdue {
			conditions = append(conditions, overdue)
		} else {
			conditions = append(conditions, "NOT "+overdue)
		}
	}

	where := " WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM tracking_records"+where, args...); err != nil {
		return nil, nil, fmt.Errorf("count tracking search: %w", err)
	}

	page, pageSize := normalizePage(criteria.Page, criteria.PageSize)
	query := "SELECT " + trackingColumns + " FROM tracking_records" + where +
		fmt.Sprintf(" ORDER BY updated_at DESC LIMIT %d OFFSET %d", pageSize, (page-1)*pageSize)

	var records []models.TrackingRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, nil, fmt.Errorf("search tracking records: %w", err)
	}
	return records, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// CountByStage returns the active-record count per stage for the
// statistics aggregate.
func (r *TrackingRepository) CountByStage(ctx context.Context) ([]models.StageCount, error) {
	const query = `SELECT current_stage, COUNT(*) AS count
	FROM tracking_records WHERE is_active = TRUE
	GROUP BY current_stage`
	var counts []models.StageCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count tracking by stage: %w", err)
	}
	return counts, nil
}

// CountTotals returns the headline statistics counters in one query.
func (r *TrackingRepository) CountTotals(ctx context.Context, now time.Time) (*models.TrackingTotals, error) {
	const query = `SELECT
	 COUNT(*) FILTER (WHERE is_active) AS total_active,
	 COUNT(*) FILTER (WHERE is_completed) AS total_completed,
	 COUNT(*) FILTER (WHERE is_active AND NOT is_completed AND expected_completion_date IS NOT NULL AND expected_completion_date < $1) AS total_overdue
	FROM tracking_records`
	var totals models.TrackingTotals
	if err := r.db.GetContext(ctx, &totals, query, now); err != nil {
		return nil, fmt.Errorf("count tracking totals: %w", err)
	}
	return &totals, nil
}

// ListAllActive loads every active record, used by the statistics
// fallback path when the aggregate queries are unavailable.
func (r *TrackingRepository) ListAllActive(ctx context.Context, limit int) ([]models.TrackingRecord, error) {
	if limit <= 0 {
		limit = 1000
	}
	query := "SELECT " + trackingColumns + ` FROM tracking_records WHERE is_active = TRUE ORDER BY updated_at DESC LIMIT $1`
	var records []models.TrackingRecord
	if err := r.db.SelectContext(ctx, &records, query, limit); err != nil {
		return nil, fmt.Errorf("list active tracking records: %w", err)
	}
	return records, nil
}

// SetActive flips the logical-deletion flag.
func (r *TrackingRepository) SetActive(ctx context.Context, trackingID string, active bool, updatedAt time.Time) error {
	const query = `UPDATE tracking_records SET is_active = $1, updated_at = $2 WHERE tracking_id = $3`
	result, err := r.db.ExecContext(ctx, query, active, updatedAt, trackingID)
	if err != nil {
		return fmt.Errorf("set tracking active: %w", err)
	}
	return requireRow(result)
}

// Assign sets the record-level assignee.
func (r *TrackingRepository) Assign(ctx context.Context, trackingID, userID string, updatedAt time.Time) error {
	const query = `UPDATE tracking_records SET assigned_to = $1, updated_at = $2 WHERE tracking_id = $3 AND is_active = TRUE`
	result, err := r.db.ExecContext(ctx, query, userID, updatedAt, trackingID)
	if err != nil {
		return fmt.Errorf("assign tracking record: %w", err)
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check affected rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 20
	}
	return page, pageSize
}
