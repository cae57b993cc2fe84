package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/davmuu/curriculum-tracking-api/internal/models"
	"github.com/davmuu/curriculum-tracking-api/internal/workflow"
	"github.com/davmuu/curriculum-tracking-api/pkg/export"
	"github.com/davmuu/curriculum-tracking-api/pkg/storage"
)

type exportTrackingStore interface {
	GetByTrackingID(ctx context.Context, trackingID string) (*models.TrackingRecord, error)
	List(ctx context.Context, filter models.TrackingFilter) ([]models.TrackingRecord, *models.Pagination, error)
}

type exportFileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string, summary []export.KeyValue) ([]byte, error)
}

// ExportGeneratorConfig tunes export generation behaviour.
type ExportGeneratorConfig struct {
	APIPrefix string
	ResultTTL time.Duration
	PageSize  int
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

// ExportGenerator builds export datasets from tracking records and
// persists rendered files behind signed download tokens.
type ExportGenerator struct {
	tracking exportTrackingStore
	storage  exportFileStorage
	csv      csvRenderer
	pdf      pdfRenderer
	signer   *storage.SignedURLSigner
	logger   *zap.Logger
	now      func() time.Time
	cfg      ExportGeneratorConfig
}

// NewExportGenerator constructs an ExportGenerator.
func NewExportGenerator(tracking exportTrackingStore, fileStorage exportFileStorage, signer *storage.SignedURLSigner, cfg ExportGeneratorConfig, logger *zap.Logger, now func() time.Time, csv csvRenderer, pdf pdfRenderer) *ExportGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 200
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportGenerator{
		tracking: tracking,
		storage:  fileStorage,
		csv:      csv,
		pdf:      pdf,
		signer:   signer,
		logger:   logger,
		now:      now,
		cfg:      cfg,
	}
}

// Generate builds the dataset for the job and stores the rendered export.
func (g *ExportGenerator) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, summary, err := g.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ExportFormatCSV:
		payload, err = g.csv.Render(dataset)
	case models.ExportFormatPDF:
		payload, err = g.pdf.Render(dataset, title, summary)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := g.buildFilename(job)
	relPath, err := g.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := g.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	base := strings.TrimRight(g.cfg.APIPrefix, "/")
	if base == "" {
		base = "/api/v1"
	}

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/exports/download/%s", base, token),
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (g *ExportGenerator) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return g.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (g *ExportGenerator) Open(relPath string) (*os.File, error) {
	return g.storage.Open(relPath)
}

// Delete removes a stored export file.
func (g *ExportGenerator) Delete(relPath string) error {
	return g.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (g *ExportGenerator) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = g.cfg.ResultTTL
	}
	return g.storage.CleanupOlderThan(ttl)
}

func (g *ExportGenerator) buildFilename(job *models.ExportJob) string {
	timestamp := g.now().UTC().Format("20060102_150405")
	return fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(string(job.Type)), sanitizeFilename(job.ID), timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func (g *ExportGenerator) buildDataset(ctx context.Context, job *models.ExportJob) (export.Dataset, string, []export.KeyValue, error) {
	switch job.Type {
	case models.ExportTypeTrackingList:
		return g.buildTrackingListDataset(ctx, job.Params)
	case models.ExportTypeApprovalSummary:
		return g.buildApprovalSummaryDataset(ctx, job.Params)
	default:
		return export.Dataset{}, "", nil, fmt.Errorf("unsupported export type %s", job.Type)
	}
}

func (g *ExportGenerator) buildTrackingListDataset(ctx context.Context, params models.ExportJobParams) (export.Dataset, string, []export.KeyValue, error) {
	filter := models.TrackingFilter{
		SchoolID:     params.SchoolID,
		DepartmentID: params.DepartmentID,
		CurrentStage: params.Stage,
		ActiveOnly:   true,
		PageSize:     g.cfg.PageSize,
	}
	records, _, err := g.tracking.List(ctx, filter)
	if err != nil {
		return export.Dataset{}, "", nil, err
	}

	now := g.now().UTC()
	overdueCount := 0
	dataRows := make([]map[string]string, 0, len(records))
	for i := range records {
		record := &records[i]
		metrics := workflow.ComputeMetrics(record, now)
		if metrics.IsOverdue {
			overdueCount++
		}
		dataRows = append(dataRows, map[string]string{
			"Tracking ID":   record.TrackingID,
			"Curriculum":    record.Metadata.ProposedName,
			"Code":          record.Metadata.ProposedCode,
			"School":        record.SchoolID,
			"Department":    record.DepartmentID,
			"Current Stage": string(record.CurrentStage),
			"Status":        string(record.CurrentStatus),
			"Priority":      string(metrics.Priority),
			"Progress (%)":  fmt.Sprintf("%d", metrics.ProgressPercent),
			"Days In Stage": fmt.Sprintf("%d", metrics.DaysInCurrentStage),
			"Overdue":       fmt.Sprintf("%t", metrics.IsOverdue),
			"Updated At":    record.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Tracking ID", "Curriculum", "Code", "School", "Department", "Current Stage",
			"Status", "Priority", "Progress (%)", "Days In Stage", "Overdue", "Updated At"},
		Rows: dataRows,
	}
	summary := []export.KeyValue{
		{Key: "Records", Value: fmt.Sprintf("%d", len(records))},
		{Key: "Overdue", Value: fmt.Sprintf("%d", overdueCount)},
		{Key: "Generated", Value: now.Format(time.RFC3339)},
	}
	return dataset, "Curriculum Tracking Register", summary, nil
}

func (g *ExportGenerator) buildApprovalSummaryDataset(ctx context.Context, params models.ExportJobParams) (export.Dataset, string, []export.KeyValue, error) {
	if params.TrackingID == nil || *params.TrackingID == "" {
		return export.Dataset{}, "", nil, fmt.Errorf("trackingId is required for approval summary exports")
	}
	record, err := g.tracking.GetByTrackingID(ctx, *params.TrackingID)
	if err != nil {
		return export.Dataset{}, "", nil, err
	}

	dataRows := make([]map[string]string, 0, len(record.History))
	for _, entry := range record.History {
		dataRows = append(dataRows, map[string]string{
			"Timestamp":  entry.Timestamp.UTC().Format(time.RFC3339),
			"Action":     string(entry.Action),
			"From Stage": string(entry.FromStage),
			"To Stage":   string(entry.ToStage),
			"Actor":      entry.Actor,
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Timestamp", "Action", "From Stage", "To Stage", "Actor"},
		Rows:    dataRows,
	}

	now := g.now().UTC()
	metrics := workflow.ComputeMetrics(record, now)
	summary := []export.KeyValue{
		{Key: "Tracking ID", Value: record.TrackingID},
		{Key: "Curriculum", Value: record.Metadata.ProposedName},
		{Key: "Current Stage", Value: string(record.CurrentStage)},
		{Key: "Status", Value: string(record.CurrentStatus)},
		{Key: "Progress (%)", Value: fmt.Sprintf("%d", metrics.ProgressPercent)},
		{Key: "Total Days", Value: fmt.Sprintf("%d", metrics.TotalDays)},
	}
	title := fmt.Sprintf("Approval Summary %s", record.TrackingID)
	return dataset, title, summary, nil
}
