package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/vigilance-tracker-api/internal/dto"
	appErrors "github.com/noah-isme/vigilance-tracker-api/pkg/errors"
	"github.com/noah-isme/vigilance-tracker-api/pkg/storage"
)

var pdfMagic = []byte("%PDF-")

var fileKindPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,31}$`)

type uploadStorage interface {
	SaveStream(name string, r io.Reader, limit int64) (int64, error)
	Open(name string) (*os.File, error)
	Delete(name string) error
}

type fileTokenSigner interface {
	Generate(owner, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (storage.TokenClaims, error)
}

// StoredFile is an opened upload resolved from a file reference token.
type StoredFile struct {
	File     *os.File
	Filename string
	Owner    string
}

// FileService stores uploaded evidence and issues the opaque tokens the workflow accepts as file_ref.
type FileService struct {
	storage uploadStorage
	signer  fileTokenSigner
	maxSize int64
	now     func() time.Time
	logger  *zap.Logger
}

// NewFileService constructs a FileService. maxSize <= 0 falls back to 10 MiB.
func NewFileService(store uploadStorage, signer fileTokenSigner, maxSize int64, logger *zap.Logger) *FileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxSize <= 0 {
		maxSize = 10 * 1024 * 1024
	}
	return &FileService{
		storage: store,
		signer:  signer,
		maxSize: maxSize,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger,
	}
}

// Upload validates a PDF upload and stores it under {kind}/{date}/{uuid}.pdf.
func (s *FileService) Upload(ctx context.Context, kind, filename string, size int64, r io.Reader, ownerID string) (*dto.FileUploadResponse, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == "" {
		kind = "general"
	}
	if !fileKindPattern.MatchString(kind) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid file kind")
	}
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only PDF files are accepted")
	}
	if size > s.maxSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d MB limit", s.maxSize/(1024*1024)))
	}

	br := bufio.NewReader(r)
	head, err := br.Peek(len(pdfMagic))
	if err != nil || string(head) != string(pdfMagic) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file content is not a PDF")
	}

	rel := path.Join(kind, s.now().Format("2006-01-02"), uuid.NewString()+".pdf")
	written, err := s.storage.SaveStream(rel, br, s.maxSize)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d MB limit", s.maxSize/(1024*1024)))
		}
		return nil, appErrors.Internal(err, "failed to store file")
	}

	token, expiresAt, err := s.signer.Generate(ownerID, rel)
	if err != nil {
		_ = s.storage.Delete(rel)
		return nil, appErrors.Internal(err, "failed to sign file reference")
	}

	s.logger.Info("file uploaded", zap.String("kind", kind), zap.Int64("size", written), zap.String("owner", ownerID))

	resp := &dto.FileUploadResponse{Token: token, Kind: kind, Size: written}
	if !expiresAt.IsZero() {
		resp.ExpiresAt = &expiresAt
	}
	return resp, nil
}

// Verify checks that token was issued by this service. It satisfies the workflow file verifier.
func (s *FileService) Verify(token string) error {
	if _, err := s.signer.Parse(token, false); err != nil {
		return fmt.Errorf("verify file reference: %w", err)
	}
	return nil
}

// Open resolves token to the stored file.
func (s *FileService) Open(ctx context.Context, token string) (*StoredFile, error) {
	claims, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found or link expired")
	}
	f, err := s.storage.Open(claims.Path)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found or link expired")
		}
		return nil, appErrors.Internal(err, "failed to open file")
	}
	return &StoredFile{File: f, Filename: path.Base(claims.Path), Owner: claims.Owner}, nil
}
