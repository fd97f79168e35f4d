package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"alcyxob/physiotrack/internal/catalog"
	"alcyxob/physiotrack/internal/prescription"
	"alcyxob/physiotrack/internal/storage"

	"go.uber.org/zap"
)

var ErrStorageDisabled = errors.New("sheet storage is not configured")

// SheetExport is an uploaded prescription sheet.
type SheetExport struct {
	PatientID string    `json:"patientId"`
	ObjectKey string    `json:"objectKey"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// --- Service Interface ---
type SheetService interface {
	// Export renders the patient's current sheet, uploads it and returns a download link.
	Export(ctx context.Context, patientID string) (*SheetExport, error)
}

type sheetService struct {
	coord     *Coordinator
	catalog   *catalog.Catalog
	storage   storage.FileStorage // nil when S3 is not configured
	urlExpiry time.Duration
	loc       *time.Location
	now       func() time.Time
	log       *zap.Logger
}

// NewSheetService creates a new instance of sheetService. files may be nil, in
// which case Export returns ErrStorageDisabled.
func NewSheetService(coord *Coordinator, cat *catalog.Catalog, files storage.FileStorage, urlExpiry time.Duration, log *zap.Logger) SheetService {
	if urlExpiry <= 0 {
		urlExpiry = storage.DefaultPresignedURLExpiry
	}
	return &sheetService{
		coord:     coord,
		catalog:   cat,
		storage:   files,
		urlExpiry: urlExpiry,
		loc:       time.Local,
		now:       time.Now,
		log:       log.Named("sheets"),
	}
}

// SheetObjectKey is the storage key of a sheet version. The patient id is
// escaped so it always stays a single key segment.
func SheetObjectKey(patientID string, lastUpdated int64) string {
	segment := url.PathEscape(patientID)
	if segment == "." || segment == ".." {
		segment = strings.ReplaceAll(segment, ".", "%2E")
	}
	return fmt.Sprintf("sheets/%s/%d.txt", segment, lastUpdated)
}

func (s *sheetService) Export(ctx context.Context, patientID string) (*SheetExport, error) {
	if s.storage == nil {
		return nil, ErrStorageDisabled
	}
	rec, err := s.coord.Resolve(ctx, patientID)
	if err != nil {
		return nil, err
	}

	key := SheetObjectKey(rec.ID, rec.LastUpdated)
	body := prescription.RenderSheet(rec, s.catalog, s.loc)
	if err := s.storage.PutObject(ctx, key, "text/plain; charset=utf-8", strings.NewReader(body)); err != nil {
		return nil, fmt.Errorf("upload sheet %s: %w", key, err)
	}

	url, err := s.storage.GeneratePresignedDownloadURL(ctx, key, s.urlExpiry)
	if err != nil {
		return nil, fmt.Errorf("presign sheet %s: %w", key, err)
	}

	s.log.Info("Exported prescription sheet", zap.String("patientId", rec.ID), zap.String("key", key))
	return &SheetExport{
		PatientID: rec.ID,
		ObjectKey: key,
		URL:       url,
		ExpiresAt: s.now().Add(s.urlExpiry),
	}, nil
}
