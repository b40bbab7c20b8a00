package service

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/vigilance-tracker-api/pkg/errors"
	"github.com/noah-isme/vigilance-tracker-api/pkg/storage"
)

func newFileServiceForTest(t *testing.T, maxSize int64) *FileService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return NewFileService(store, storage.NewSignedURLSigner("file-secret", 0), maxSize, zap.NewNop())
}

func pdfBody(size int) []byte {
	body := append([]byte("%PDF-1.7\n"), bytes.Repeat([]byte("x"), size)...)
	return body
}

func TestFileServiceUploadAndOpen(t *testing.T) {
	svc := newFileServiceForTest(t, 0)
	body := pdfBody(128)

	resp, err := svc.Upload(context.Background(), "Enquiry_Report", "report.PDF", int64(len(body)), bytes.NewReader(body), "insp-1")
	require.NoError(t, err)
	assert.Equal(t, "enquiry_report", resp.Kind)
	assert.Equal(t, int64(len(body)), resp.Size)
	assert.Nil(t, resp.ExpiresAt)
	require.NoError(t, svc.Verify(resp.Token))

	stored, err := svc.Open(context.Background(), resp.Token)
	require.NoError(t, err)
	defer stored.File.Close()
	assert.Equal(t, "insp-1", stored.Owner)
	assert.True(t, strings.HasSuffix(stored.Filename, ".pdf"))
	data, err := io.ReadAll(stored.File)
	require.NoError(t, err)
	assert.Equal(t, body, data)
}

func TestFileServiceUploadRejections(t *testing.T) {
	svc := newFileServiceForTest(t, 64)
	small := pdfBody(8)
	big := pdfBody(200)

	tests := []struct {
		name     string
		kind     string
		filename string
		size     int64
		body     []byte
	}{
		{"not a pdf name", "general", "report.docx", int64(len(small)), small},
		{"not pdf content", "general", "report.pdf", 4, []byte("PK\x03\x04")},
		{"declared too large", "general", "report.pdf", 1 << 20, small},
		{"stream too large", "general", "report.pdf", 10, big},
		{"bad kind", "../etc", "report.pdf", int64(len(small)), small},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Upload(context.Background(), tc.kind, tc.filename, tc.size, bytes.NewReader(tc.body), "deo-1")
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
		})
	}
}

func TestFileServiceRejectsForeignTokens(t *testing.T) {
	svc := newFileServiceForTest(t, 0)
	foreign, _, err := storage.NewSignedURLSigner("other-secret", 0).Generate("deo-1", "general/2026-01-01/x.pdf")
	require.NoError(t, err)

	assert.Error(t, svc.Verify(foreign))
	assert.Error(t, svc.Verify("garbage"))

	_, err = svc.Open(context.Background(), foreign)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
