package invoicing

import "time"

// PreviewTab is one document slot of a preview session
type PreviewTab struct {
	Index    int               `json:"index"`
	Label    string            `json:"label"`
	Status   ItemStatus        `json:"status"`
	Error    string            `json:"error,omitempty"`
	Document *RenderedDocument `json:"-"`
}

// PreviewSnapshot is a consistent, read-only copy of a preview session
type PreviewSnapshot struct {
	ID        string        `json:"id"`
	Status    PreviewStatus `json:"status"`
	Zoom      ZoomLevel     `json:"zoom"`
	Selected  int           `json:"selected"`
	Progress  int           `json:"progress"`
	Total     int           `json:"total"`
	Tabs      []PreviewTab  `json:"tabs"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// SelectedTab returns the currently selected tab, or nil when there is none
func (s *PreviewSnapshot) SelectedTab() *PreviewTab {
	if s == nil || s.Selected < 0 || s.Selected >= len(s.Tabs) {
		return nil
	}
	return &s.Tabs[s.Selected]
}

// HasTabs reports whether tab-style switching applies (more than one document)
func (s *PreviewSnapshot) HasTabs() bool {
	return s != nil && len(s.Tabs) > 1
}
