package printing

import (
	"bytes"
	"html/template"

	"github.com/govtravel/backoffice/internal/domain/invoicing"
)

const defaultRefreshSeconds = 2

// PreviewPage renders the HTML inspection page of a preview session
type PreviewPage struct {
	templates      *template.Template
	paperSize      invoicing.PaperSize
	refreshSeconds int
}

// NewPreviewPage creates a preview page renderer for the given paper size
func NewPreviewPage(paperSize invoicing.PaperSize) *PreviewPage {
	if !paperSize.IsValid() {
		paperSize = invoicing.PaperSizeA4
	}
	return &PreviewPage{
		templates:      template.Must(template.ParseFS(templateFS, "templates/*.html")),
		paperSize:      paperSize,
		refreshSeconds: defaultRefreshSeconds,
	}
}

type previewTabView struct {
	Index  int
	Label  string
	Error  string
	Active bool
	Failed bool
}

type previewView struct {
	BasePath        string
	Loading         bool
	Ready           bool
	Failed          bool
	RefreshSeconds  int
	Progress        int
	Total           int
	ProgressPercent int
	Error           string
	ZoomPercent     int
	Scale           float64
	CanZoomIn       bool
	CanZoomOut      bool
	CanPrint        bool
	ShowTabs        bool
	Tabs            []previewTabView
	SelectedLabel   string
	SelectedError   string
	Content         string
	PageWidth       int
	PageHeight      int
	FrameWidth      float64
	FrameHeight     float64
}

// Render builds the page for a snapshot. basePath is the session's API path
// used by the page controls (zoom, selection, print, retry).
func (p *PreviewPage) Render(snapshot *invoicing.PreviewSnapshot, basePath string) (string, error) {
	width, height := p.paperSize.Dimensions()
	view := previewView{
		BasePath:       basePath,
		Loading:        snapshot.Status == invoicing.PreviewStatusLoading,
		Ready:          snapshot.Status == invoicing.PreviewStatusReady,
		Failed:         snapshot.Status == invoicing.PreviewStatusFailed,
		RefreshSeconds: p.refreshSeconds,
		Progress:       snapshot.Progress,
		Total:          snapshot.Total,
		Error:          snapshot.Error,
		ZoomPercent:    snapshot.Zoom.Percent(),
		Scale:          snapshot.Zoom.Scale(),
		CanZoomIn:      snapshot.Zoom.CanZoomIn(),
		CanZoomOut:     snapshot.Zoom.CanZoomOut(),
		ShowTabs:       snapshot.HasTabs(),
		PageWidth:      width,
		PageHeight:     height,
		FrameWidth:     float64(width) * snapshot.Zoom.Scale(),
		FrameHeight:    float64(height) * snapshot.Zoom.Scale(),
	}
	if snapshot.Total > 0 {
		view.ProgressPercent = snapshot.Progress * 100 / snapshot.Total
	}

	for _, tab := range snapshot.Tabs {
		view.Tabs = append(view.Tabs, previewTabView{
			Index:  tab.Index,
			Label:  tab.Label,
			Error:  tab.Error,
			Active: tab.Index == snapshot.Selected,
			Failed: tab.Status == invoicing.ItemStatusFailed,
		})
	}

	if tab := snapshot.SelectedTab(); tab != nil {
		view.SelectedLabel = tab.Label
		view.SelectedError = tab.Error
		if tab.Document != nil {
			view.Content = tab.Document.Content
			view.CanPrint = view.Ready
		}
	}

	var buf bytes.Buffer
	if err := p.templates.ExecuteTemplate(&buf, "preview", view); err != nil {
		return "", NewRenderError(ErrCodeRenderFailed, "failed to render preview page", err)
	}
	return buf.String(), nil
}
