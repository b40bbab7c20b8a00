package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/vigilance-tracker-api/internal/models"
	"github.com/noah-isme/vigilance-tracker-api/pkg/export"
	"github.com/noah-isme/vigilance-tracker-api/pkg/storage"
)

const exportPrefix = "exports"

type registerSource interface {
	ListVisible(ctx context.Context, filter models.PetitionFilter) ([]models.Petition, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(prefix string, ttl time.Duration) ([]string, error)
}

type downloadSigner interface {
	Generate(owner, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (storage.TokenClaims, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
	Rows         int
}

// ExportService builds register datasets from the requester's visible petitions and persists rendered files.
type ExportService struct {
	petitions registerSource
	sla       slaClassifier
	storage   fileStorage
	csv       datasetRenderer
	pdf       datasetRenderer
	signer    downloadSigner
	logger    *zap.Logger
	cfg       ExportConfig
	now       func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers fall back to pkg/export defaults.
func NewExportService(petitions registerSource, sla slaClassifier, store fileStorage, signer downloadSigner, cfg ExportConfig, logger *zap.Logger, csv, pdf datasetRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter(true)
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		petitions: petitions,
		sla:       sla,
		storage:   store,
		csv:       csv,
		pdf:       pdf,
		signer:    signer,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Generate builds the dataset for job and stores the rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(s.buildFilename(job), payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		_ = s.storage.Delete(relPath)
		return nil, err
	}

	s.logger.Debug("export rendered", zap.String("job_id", job.ID), zap.String("path", relPath), zap.Int("rows", len(dataset.Rows)))
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          s.DownloadURL(token),
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
		Rows:         len(dataset.Rows),
	}, nil
}

// DownloadURL returns the API path serving token.
func (s *ExportService) DownloadURL(token string) string {
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return fmt.Sprintf("%s/export/%s", prefix, token)
}

// Sign issues a fresh download token for an already stored export.
func (s *ExportService) Sign(jobID, relPath string) (string, time.Time, error) {
	return s.signer.Generate(jobID, relPath)
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (storage.TokenClaims, error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes export files older than ttl (the configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(exportPrefix, ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := s.now().Format("20060102_150405")
	return fmt.Sprintf("%s/%s_%s_%s.%s", exportPrefix, string(job.Type), sanitizeFilename(job.ID), timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".")
	result := replacer.Replace(raw)
	if len(result) > 64 {
		return result[:64]
	}
	return result
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, error) {
	filter, err := job.Filter()
	if err != nil {
		return export.Dataset{}, err
	}
	petitions, err := s.petitions.ListVisible(ctx, filter)
	if err != nil {
		return export.Dataset{}, fmt.Errorf("load petitions: %w", err)
	}

	switch job.Type {
	case models.ReportTypeSLARegister:
		return s.slaRegister(ctx, petitions, job)
	case models.ReportTypePetitionRegister:
		return s.petitionRegister(petitions, job), nil
	default:
		return export.Dataset{}, fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func (s *ExportService) slaRegister(ctx context.Context, petitions []models.Petition, job *models.ReportJob) (export.Dataset, error) {
	statuses, err := s.sla.Batch(ctx, petitionIDs(petitions))
	if err != nil {
		return export.Dataset{}, err
	}
	headers := []string{"S.No", "Subject", "Enquiry Type", "Status", "Assigned At", "Closed At", "Deadline (days)", "Elapsed (days)", "SLA"}
	rows := make([]map[string]string, 0, len(petitions))
	for i := range petitions {
		p := &petitions[i]
		status, ok := statuses[p.ID]
		if !ok || status.Bucket == models.SLAExcluded {
			continue
		}
		rows = append(rows, map[string]string{
			"S.No":            p.SNo,
			"Subject":         p.Subject,
			"Enquiry Type":    string(p.Enquiry()),
			"Status":          string(p.Status),
			"Assigned At":     formatReportTime(status.AssignedAt),
			"Closed At":       formatReportTime(status.ClosedAt),
			"Deadline (days)": fmt.Sprintf("%d", status.DeadlineDays),
			"Elapsed (days)":  fmt.Sprintf("%d", status.ElapsedDays),
			"SLA":             string(status.Bucket),
		})
	}
	return export.Dataset{
		Title:    "SLA Register",
		Subtitle: s.subtitle(job),
		Headers:  headers,
		Rows:     rows,
		Widths:   map[string]float64{"Subject": 3, "Status": 1.6},
	}, nil
}

func (s *ExportService) petitionRegister(petitions []models.Petition, job *models.ReportJob) export.Dataset {
	headers := []string{"S.No", "Received", "Petitioner", "Subject", "Type", "Source", "Received At", "Target", "Status", "E-Office File", "Handler"}
	rows := make([]map[string]string, 0, len(petitions))
	for i := range petitions {
		p := &petitions[i]
		rows = append(rows, map[string]string{
			"S.No":          p.SNo,
			"Received":      p.ReceivedDate.Format("2006-01-02"),
			"Petitioner":    p.PetitionerName,
			"Subject":       p.Subject,
			"Type":          p.PetitionType,
			"Source":        p.SourceOfPetition,
			"Received At":   p.ReceivedAt,
			"Target":        string(p.Target()),
			"Status":        string(p.Status),
			"E-Office File": p.Efile(),
			"Handler":       derefString(p.HandlerName),
		})
	}
	return export.Dataset{
		Title:    "Petition Register",
		Subtitle: s.subtitle(job),
		Headers:  headers,
		Rows:     rows,
		Widths:   map[string]float64{"Subject": 3, "Petitioner": 1.5, "Status": 1.6},
	}
}

func (s *ExportService) subtitle(job *models.ReportJob) string {
	parts := []string{"Generated " + s.now().Format("2006-01-02 15:04") + " UTC"}
	if job.Params.Status != "" {
		parts = append(parts, "status "+job.Params.Status)
	}
	if job.Params.Mode != "" {
		parts = append(parts, "mode "+job.Params.Mode)
	}
	return strings.Join(parts, " | ")
}

func formatReportTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}
