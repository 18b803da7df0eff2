package invoicing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRequest(t *testing.T, passengerID string) InvoiceDocumentRequest {
	t.Helper()
	req, err := NewInvoiceDocumentRequest(ScopeIndividual, "INV-001", passengerID)
	require.NoError(t, err)
	return req
}

func newTestDocument(label string) *RenderedDocument {
	return &RenderedDocument{
		Content:       "<html>" + label + "</html>",
		DocumentLabel: label,
		Metadata: DocumentMetadata{
			AmountTotal: decimal.NewFromInt(100),
			ScopeType:   ScopeIndividual,
		},
	}
}

func TestBatchItem_Lifecycle(t *testing.T) {
	t.Run("pending to generating to succeeded", func(t *testing.T) {
		item := NewBatchItem(0, newTestRequest(t, "P-1"))
		assert.Equal(t, ItemStatusPending, item.Status)

		require.NoError(t, item.Start())
		assert.Equal(t, ItemStatusGenerating, item.Status)

		doc := newTestDocument("INV-001-1")
		require.NoError(t, item.Succeed(doc))
		assert.Equal(t, ItemStatusSucceeded, item.Status)
		assert.Same(t, doc, item.Document)
		assert.True(t, item.IsSucceeded())
	})

	t.Run("generating to failed keeps message", func(t *testing.T) {
		item := NewBatchItem(1, newTestRequest(t, "P-1"))
		require.NoError(t, item.Start())
		require.NoError(t, item.Fail("backend said no"))
		assert.Equal(t, ItemStatusFailed, item.Status)
		assert.Equal(t, "backend said no", item.ErrorMessage)
	})

	t.Run("empty failure message gets a default", func(t *testing.T) {
		item := NewBatchItem(0, newTestRequest(t, "P-1"))
		require.NoError(t, item.Fail(""))
		assert.NotEmpty(t, item.ErrorMessage)
	})

	t.Run("cannot succeed without starting", func(t *testing.T) {
		item := NewBatchItem(0, newTestRequest(t, "P-1"))
		assert.Error(t, item.Succeed(newTestDocument("x")))
	})

	t.Run("cannot succeed with nil document", func(t *testing.T) {
		item := NewBatchItem(0, newTestRequest(t, "P-1"))
		require.NoError(t, item.Start())
		assert.Error(t, item.Succeed(nil))
	})

	t.Run("terminal items cannot change", func(t *testing.T) {
		item := NewBatchItem(0, newTestRequest(t, "P-1"))
		require.NoError(t, item.Start())
		require.NoError(t, item.Succeed(newTestDocument("x")))
		assert.Error(t, item.Fail("late failure"))
		assert.Error(t, item.Start())
		assert.Equal(t, ItemStatusSucceeded, item.Status)
	})
}

func TestBatch_DerivedStatus(t *testing.T) {
	ok := NewBatchItem(0, newTestRequest(t, "P-1"))
	require.NoError(t, ok.Start())
	require.NoError(t, ok.Succeed(newTestDocument("A")))

	failed := NewBatchItem(1, newTestRequest(t, "P-2"))
	require.NoError(t, failed.Start())
	require.NoError(t, failed.Fail("boom"))

	running := NewBatchItem(2, newTestRequest(t, "P-3"))
	require.NoError(t, running.Start())

	batch := Batch{ok, failed, running}
	assert.False(t, batch.IsComplete())
	assert.Equal(t, BatchSummary{Total: 3, Succeeded: 1, Failed: 1, Pending: 1}, batch.Summary())

	require.NoError(t, batch[2].Succeed(newTestDocument("C")))
	assert.True(t, batch.IsComplete())
	assert.False(t, batch.AllFailed())

	docs := batch.SucceededDocuments()
	require.Len(t, docs, 2)
	assert.Equal(t, "A", docs[0].DocumentLabel)
	assert.Equal(t, "C", docs[1].DocumentLabel)
}

func TestBatch_EmptyIsComplete(t *testing.T) {
	var batch Batch
	assert.True(t, batch.IsComplete())
	assert.True(t, batch.AllFailed())
	assert.Empty(t, batch.SucceededDocuments())
}
