package invoicing

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	domain "github.com/govtravel/backoffice/internal/domain/invoicing"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var packagerDate = time.Date(2024, 3, 7, 15, 4, 5, 0, time.UTC)

func batchOf(t *testing.T, docs []*domain.RenderedDocument, failed int) domain.Batch {
	t.Helper()
	ids := make([]string, 0, len(docs)+failed)
	for i := 0; i < len(docs)+failed; i++ {
		ids = append(ids, "P-"+string(rune('A'+i)))
	}
	reqs := individualRequests(t, "INV-1", ids...)

	batch := make(domain.Batch, len(reqs))
	for i, req := range reqs {
		batch[i] = domain.NewBatchItem(i, req)
		require.NoError(t, batch[i].Start())
		if i < len(docs) {
			require.NoError(t, batch[i].Succeed(docs[i]))
		} else {
			require.NoError(t, batch[i].Fail("backend unavailable"))
		}
	}
	return batch
}

func readArchive(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	entries := make(map[string]string, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		entries[f.Name] = string(body)
	}
	return entries
}

func TestArchiveName(t *testing.T) {
	assert.Equal(t, "invoices-2024-03-07.zip", ArchiveName(packagerDate))
}

func TestPackager_Package(t *testing.T) {
	ctx := context.Background()
	p := NewPackager(WithClock(func() time.Time { return packagerDate }))

	t.Run("single document is delivered as-is", func(t *testing.T) {
		doc := testDoc("INV/2024/0001")
		artifact, err := p.Package(ctx, batchOf(t, []*domain.RenderedDocument{doc}, 2))

		require.NoError(t, err)
		assert.Equal(t, "INV-2024-0001.html", artifact.FileName)
		assert.Equal(t, "text/html; charset=utf-8", artifact.ContentType)
		assert.Equal(t, doc.Content, string(artifact.Data))
		assert.False(t, artifact.Archived)
		assert.Equal(t, 1, artifact.Succeeded)
		assert.Equal(t, 2, artifact.Failed)
	})

	t.Run("several documents are archived", func(t *testing.T) {
		docs := testDocs("INV-1-A", "INV-1-B", "INV-1-C")
		artifact, err := p.Package(ctx, batchOf(t, docs, 1))

		require.NoError(t, err)
		assert.Equal(t, "invoices-2024-03-07.zip", artifact.FileName)
		assert.Equal(t, "application/zip", artifact.ContentType)
		assert.True(t, artifact.Archived)
		assert.Equal(t, []string{"INV-1-A.html", "INV-1-B.html", "INV-1-C.html"}, artifact.EntryNames)
		assert.Equal(t, 3, artifact.Succeeded)
		assert.Equal(t, 1, artifact.Failed)

		entries := readArchive(t, artifact.Data)
		require.Len(t, entries, 3)
		for _, doc := range docs {
			assert.Equal(t, doc.Content, entries[doc.DocumentLabel+".html"])
		}
	})

	t.Run("colliding labels get a numeric suffix", func(t *testing.T) {
		docs := testDocs("Invoice", "invoice", "Invoice")
		artifact, err := p.Package(ctx, batchOf(t, docs, 0))

		require.NoError(t, err)
		assert.Equal(t, []string{"Invoice.html", "invoice (2).html", "Invoice (3).html"}, artifact.EntryNames)
		assert.Len(t, readArchive(t, artifact.Data), 3)
	})

	t.Run("no successes", func(t *testing.T) {
		artifact, err := p.Package(ctx, batchOf(t, nil, 3))

		assert.Nil(t, artifact)
		assert.True(t, errors.Is(err, domain.ErrPackagingEmpty))
	})

	t.Run("empty batch", func(t *testing.T) {
		_, err := p.Package(ctx, domain.Batch{})
		assert.ErrorIs(t, err, domain.ErrPackagingEmpty)
	})

	t.Run("cancelled while archiving", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := p.Package(cancelled, batchOf(t, testDocs("A", "B"), 0))

		assert.ErrorIs(t, err, domain.ErrArchiveCompression)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestUniqueEntryName(t *testing.T) {
	taken := map[string]struct{}{}
	assert.Equal(t, "a.html", uniqueEntryName("a", taken))
	assert.Equal(t, "A (2).html", uniqueEntryName("A", taken))
	assert.Equal(t, "a (3).html", uniqueEntryName("a", taken))
	assert.Equal(t, "b.html", uniqueEntryName("b", taken))
}
