package invoicing

import "github.com/govtravel/backoffice/internal/domain/shared"

// Margins represents the page margins in millimeters
type Margins struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// NewMargins creates a new Margins value object
func NewMargins(top, right, bottom, left int) (Margins, error) {
	if top < 0 || right < 0 || bottom < 0 || left < 0 {
		return Margins{}, shared.NewDomainError("INVALID_MARGINS", "Margins cannot be negative")
	}
	if top > 50 || right > 50 || bottom > 50 || left > 50 {
		return Margins{}, shared.NewDomainError("INVALID_MARGINS", "Margins cannot exceed 50mm")
	}
	return Margins{Top: top, Right: right, Bottom: bottom, Left: left}, nil
}

// DefaultMargins returns the margins used for invoice pages
func DefaultMargins() Margins {
	return Margins{Top: 12, Right: 12, Bottom: 12, Left: 12}
}

// Zoom bounds for the preview surface, in percent
const (
	MinZoom     = 50
	MaxZoom     = 200
	ZoomStep    = 10
	DefaultZoom = 100
)

// ZoomLevel is a bounded preview zoom percentage
type ZoomLevel int

// NewZoomLevel clamps the value into [MinZoom, MaxZoom] and snaps it to ZoomStep
func NewZoomLevel(percent int) ZoomLevel {
	if percent < MinZoom {
		percent = MinZoom
	}
	if percent > MaxZoom {
		percent = MaxZoom
	}
	percent = (percent + ZoomStep/2) / ZoomStep * ZoomStep
	return ZoomLevel(percent)
}

// In returns the next larger zoom level
func (z ZoomLevel) In() ZoomLevel {
	return NewZoomLevel(int(z) + ZoomStep)
}

// Out returns the next smaller zoom level
func (z ZoomLevel) Out() ZoomLevel {
	return NewZoomLevel(int(z) - ZoomStep)
}

// Percent returns the zoom as an integer percentage
func (z ZoomLevel) Percent() int {
	return int(z)
}

// Scale returns the zoom as a CSS scale factor
func (z ZoomLevel) Scale() float64 {
	return float64(z) / 100
}

// CanZoomIn reports whether In would change the level
func (z ZoomLevel) CanZoomIn() bool {
	return int(z) < MaxZoom
}

// CanZoomOut reports whether Out would change the level
func (z ZoomLevel) CanZoomOut() bool {
	return int(z) > MinZoom
}
