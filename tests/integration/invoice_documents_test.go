package integration

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govtravel/backoffice/tests/testutil"
)

func unzipEntries(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	entries := make(map[string]string, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		entries[f.Name] = string(content)
	}
	return entries
}

func TestDownload_GroupInvoice(t *testing.T) {
	srv := newTestServer(t, newFakeBackend(t), serverOptions{})

	w := testutil.Do(t, srv.Engine, testutil.Request{
		Method:  http.MethodPost,
		Path:    documentsPath + "/download",
		Body:    documentRequest("group"),
		Headers: map[string]string{"X-Request-ID": "it-download-1"},
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "attachment; filename=IV2024-0001.html", w.Header().Get("Content-Disposition"))
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Equal(t, "1", w.Header().Get("X-Documents-Succeeded"))
	assert.Equal(t, "0", w.Header().Get("X-Documents-Failed"))
	assert.Equal(t, "it-download-1", w.Header().Get("X-Request-ID"))

	body := w.Body.String()
	assert.Contains(t, body, "IV2024-0001")
	assert.Contains(t, body, "กระทรวงการท่องเที่ยวและกีฬา")
	assert.Contains(t, body, "Ministry of Tourism and Sports")

	assert.Equal(t, []string{"it-download-1"}, srv.Backend.seenRequestIDs(),
		"the backend should receive the caller's request id")
}

func TestDownload_IndividualInvoicesWithMissingPassenger(t *testing.T) {
	srv := newTestServer(t, newFakeBackend(t, "P-2"), serverOptions{})

	w := testutil.Do(t, srv.Engine, testutil.Request{
		Method: http.MethodPost,
		Path:   documentsPath + "/download",
		Body:   documentRequest("individual", "P-1", "P-2", "P-3"),
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Disposition"), "attachment; filename=invoices-"))
	assert.Equal(t, "2", w.Header().Get("X-Documents-Succeeded"))
	assert.Equal(t, "1", w.Header().Get("X-Documents-Failed"))

	entries := unzipEntries(t, w.Body.Bytes())
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"IV2024-0001-P-1.html", "IV2024-0001-P-3.html"}, names)
	assert.Contains(t, entries["IV2024-0001-P-3.html"], "Somchai")
}

func TestDownload_AllPassengersMissing(t *testing.T) {
	srv := newTestServer(t, newFakeBackend(t, "P-1", "P-2"), serverOptions{})

	w := testutil.Do(t, srv.Engine, testutil.Request{
		Method: http.MethodPost,
		Path:   documentsPath + "/download",
		Body:   documentRequest("individual", "P-1", "P-2"),
	})

	testutil.AssertErrorResponse(t, w, http.StatusUnprocessableEntity, "ERR_PACKAGING_EMPTY")

	var partial struct {
		Summary struct {
			Succeeded int `json:"succeeded"`
			Failed    int `json:"failed"`
		} `json:"summary"`
		Failures []struct {
			Index int    `json:"index"`
			Error string `json:"error"`
		} `json:"failures"`
	}
	testutil.DecodeEnvelope(t, w, &partial)
	assert.Equal(t, 2, partial.Summary.Failed)
	require.Len(t, partial.Failures, 2)
	assert.Equal(t, 0, partial.Failures[0].Index)
	assert.Contains(t, partial.Failures[0].Error, "passenger P-1 not found")
}

func TestDownload_EscapesSourceData(t *testing.T) {
	be := newFakeBackend(t)
	be.customerName = `<script>alert("x")</script>`
	srv := newTestServer(t, be, serverOptions{})

	w := testutil.Do(t, srv.Engine, testutil.Request{
		Method: http.MethodPost,
		Path:   documentsPath + "/download",
		Body:   documentRequest("group"),
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), `<script>alert("x")</script>`)
	assert.Contains(t, w.Body.String(), "&lt;script&gt;")
}

func TestDownload_InvalidRequests(t *testing.T) {
	srv := newTestServer(t, newFakeBackend(t), serverOptions{})

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"unknown scope", map[string]any{"scope": "family", "invoice_id": "INV-1"}, http.StatusBadRequest, "ERR_VALIDATION"},
		{"missing invoice", map[string]any{"scope": "group"}, http.StatusBadRequest, "ERR_VALIDATION"},
		{"individual without passengers", documentRequest("individual"), http.StatusBadRequest, "ERR_INVALID_INPUT"},
		{"malformed json", `{"scope":`, http.StatusBadRequest, "ERR_INVALID_JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := testutil.Do(t, srv.Engine, testutil.Request{
				Method: http.MethodPost,
				Path:   documentsPath + "/download",
				Body:   tt.body,
			})
			testutil.AssertErrorResponse(t, w, tt.status, tt.code)
		})
	}
	assert.Empty(t, srv.Backend.seenRequestIDs(), "invalid requests must not reach the backend")
}

type printRunView struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error"`
	Report *struct {
		Total   int `json:"total"`
		Printed int `json:"printed"`
		Items   []struct {
			Label   string `json:"label"`
			Outcome string `json:"outcome"`
		} `json:"items"`
	} `json:"report"`
}

func awaitPrintRun(t *testing.T, srv *testServer, location string) printRunView {
	t.Helper()
	var run printRunView
	testutil.RequireEventually(t, func() bool {
		w := testutil.Do(t, srv.Engine, testutil.Request{Path: location})
		if w.Code != http.StatusOK {
			return false
		}
		testutil.DecodeEnvelope(t, w, &run)
		return run.Status == "COMPLETED" || run.Status == "CANCELLED" || run.Status == "FAILED"
	}, 5*time.Second, "print run did not finish")
	return run
}

func TestPrintRun_IndividualInvoices(t *testing.T) {
	srv := newTestServer(t, newFakeBackend(t), serverOptions{})

	w := testutil.Do(t, srv.Engine, testutil.Request{
		Method: http.MethodPost,
		Path:   documentsPath + "/print-runs",
		Body:   documentRequest("individual", "P-1", "P-2"),
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	location := w.Header().Get("Location")
	require.NotEmpty(t, location)

	run := awaitPrintRun(t, srv, location)
	assert.Equal(t, "COMPLETED", run.Status)
	require.NotNil(t, run.Report)
	assert.Equal(t, 2, run.Report.Printed)
	assert.Equal(t, []string{"IV2024-0001-P-1", "IV2024-0001-P-2"}, srv.Host.printedLabels(),
		"documents are printed one at a time in request order")
}

func TestPrintRun_NothingGenerated(t *testing.T) {
	srv := newTestServer(t, newFakeBackend(t, "P-1", "P-2"), serverOptions{})

	w := testutil.Do(t, srv.Engine, testutil.Request{
		Method: http.MethodPost,
		Path:   documentsPath + "/print-runs",
		Body:   documentRequest("individual", "P-1", "P-2"),
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	run := awaitPrintRun(t, srv, w.Header().Get("Location"))
	assert.Equal(t, "FAILED", run.Status)
	assert.Equal(t, "No documents were produced", run.Error)
	assert.Nil(t, run.Report)
	assert.Empty(t, srv.Host.printedLabels())
}

func TestPrintRun_Combined(t *testing.T) {
	srv := newTestServer(t, newFakeBackend(t), serverOptions{})

	body := documentRequest("individual", "P-1", "P-2", "P-3")
	body["combine"] = true
	w := testutil.Do(t, srv.Engine, testutil.Request{
		Method: http.MethodPost,
		Path:   documentsPath + "/print-runs",
		Body:   body,
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	run := awaitPrintRun(t, srv, w.Header().Get("Location"))
	require.NotNil(t, run.Report)
	assert.Equal(t, 1, run.Report.Total)
	assert.Equal(t, 1, run.Report.Printed)

	labels := srv.Host.printedLabels()
	require.Len(t, labels, 1)
	assert.True(t, hasPrefix(labels, "invoices-"), "combined label: %v", labels)
}

func TestPreview_Lifecycle(t *testing.T) {
	srv := newTestServer(t, newFakeBackend(t), serverOptions{})

	w := testutil.Do(t, srv.Engine, testutil.Request{
		Method: http.MethodPost,
		Path:   documentsPath + "/previews",
		Body:   documentRequest("individual", "P-1", "P-2"),
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	location := w.Header().Get("Location")
	require.NotEmpty(t, location)

	type previewView struct {
		Status   string `json:"status"`
		Selected int    `json:"selected"`
		Tabs     []struct {
			Label  string `json:"label"`
			Status string `json:"status"`
		} `json:"tabs"`
	}

	var preview previewView
	testutil.RequireEventually(t, func() bool {
		w := testutil.Do(t, srv.Engine, testutil.Request{Path: location})
		testutil.DecodeEnvelope(t, w, &preview)
		return preview.Status == "READY"
	}, 5*time.Second, "preview did not become ready")
	require.Len(t, preview.Tabs, 2)
	assert.Equal(t, "IV2024-0001-P-1", preview.Tabs[0].Label)

	w = testutil.Do(t, srv.Engine, testutil.Request{
		Method: http.MethodPut,
		Path:   location + "/selection",
		Body:   map[string]int{"index": 1},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = testutil.Do(t, srv.Engine, testutil.Request{Path: location + "/view"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "IV2024-0001-P-2")

	w = testutil.Do(t, srv.Engine, testutil.Request{Method: http.MethodPost, Path: location + "/print"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var printed struct {
		Label   string `json:"label"`
		Outcome string `json:"outcome"`
	}
	testutil.DecodeEnvelope(t, w, &printed)
	assert.Equal(t, "PRINTED", printed.Outcome)
	assert.Equal(t, []string{"IV2024-0001-P-2"}, srv.Host.printedLabels())

	w = testutil.Do(t, srv.Engine, testutil.Request{Method: http.MethodDelete, Path: location})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = testutil.Do(t, srv.Engine, testutil.Request{Path: location})
	testutil.AssertErrorResponse(t, w, http.StatusNotFound, "ERR_PREVIEW_NOT_FOUND")
}

func TestSystemEndpoints(t *testing.T) {
	srv := newTestServer(t, newFakeBackend(t), serverOptions{})

	w := testutil.Do(t, srv.Engine, testutil.Request{Path: "/health"})
	require.Equal(t, http.StatusOK, w.Code)
	var health struct {
		Status  string `json:"status"`
		Service string `json:"service"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "travel-backoffice", health.Service)

	w = testutil.Do(t, srv.Engine, testutil.Request{Path: apiBase + "/system/info"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	testutil.AssertSuccessResponse(t, w)
}
