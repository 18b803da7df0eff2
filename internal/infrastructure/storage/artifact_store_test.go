package storage

import (
	"context"
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/govtravel/backoffice/internal/domain/invoicing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func fixedNow() time.Time {
	return time.Date(2024, time.March, 7, 10, 0, 0, 0, time.UTC)
}

func TestS3ArtifactStore_Save(t *testing.T) {
	fake := &fakeS3{}
	store := NewS3ArtifactStore(newFakeBucket(t, fake), "invoice-artifacts", zaptest.NewLogger(t))
	store.now = fixedNow

	saved, err := store.Save(context.Background(), &invoicing.DownloadArtifact{
		FileName:    "invoices-2024-03-07.zip",
		ContentType: "application/zip",
		Data:        []byte("PK"),
		Archived:    true,
	})
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^invoice-artifacts/2024/03/07/[0-9a-f-]{36}/invoices-2024-03-07\.zip$`), saved.Key)
	assert.Contains(t, saved.URL, "/backoffice/"+saved.Key)
	assert.True(t, saved.ExpiresAt.After(time.Now()))

	puts := fake.recorded()
	require.Len(t, puts, 1)
	assert.Equal(t, "/backoffice/"+saved.Key, puts[0].Path)
	assert.Equal(t, "application/zip", puts[0].ContentType)
}

func TestS3ArtifactStore_SaveEmpty(t *testing.T) {
	store := NewS3ArtifactStore(newFakeBucket(t, &fakeS3{}), "p", nil)

	_, err := store.Save(context.Background(), nil)
	require.Error(t, err)

	_, err = store.Save(context.Background(), &invoicing.DownloadArtifact{FileName: "a.html"})
	require.Error(t, err)
}

func TestS3ArtifactStore_UploadFailure(t *testing.T) {
	store := NewS3ArtifactStore(newFakeBucket(t, &fakeS3{status: http.StatusForbidden}), "p", nil)

	_, err := store.Save(context.Background(), &invoicing.DownloadArtifact{FileName: "a.html", ContentType: "text/html", Data: []byte("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to store artifact a.html")
}

func TestS3PrintSink_Submit(t *testing.T) {
	fake := &fakeS3{}
	sink := NewS3PrintSink(newFakeBucket(t, fake), "print-spool", zaptest.NewLogger(t))
	sink.now = fixedNow

	err := sink.Submit(context.Background(), &invoicing.PrintOutput{
		DocumentLabel: "INV/2024/0001",
		PDF:           []byte("%PDF-1.4"),
		PaperSize:     invoicing.PaperSizeA4,
	})
	require.NoError(t, err)

	puts := fake.recorded()
	require.Len(t, puts, 1)
	assert.Regexp(t, regexp.MustCompile(`^/backoffice/print-spool/2024/03/INV-2024-0001-[0-9a-f-]{36}\.pdf$`), puts[0].Path)
	assert.Equal(t, "application/pdf", puts[0].ContentType)
}

func TestS3PrintSink_RejectsEmptyPDF(t *testing.T) {
	sink := NewS3PrintSink(newFakeBucket(t, &fakeS3{}), "print-spool", nil)

	require.Error(t, sink.Submit(context.Background(), nil))
	require.Error(t, sink.Submit(context.Background(), &invoicing.PrintOutput{DocumentLabel: "a"}))
}
