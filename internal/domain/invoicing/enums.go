package invoicing

// Scope identifies which invoice variant is rendered
type Scope string

const (
	ScopeGroup      Scope = "group"      // one document for the whole booking
	ScopeIndividual Scope = "individual" // one document per passenger
)

// IsValid checks if the Scope is a valid value
func (s Scope) IsValid() bool {
	switch s {
	case ScopeGroup, ScopeIndividual:
		return true
	}
	return false
}

// String returns the string representation of Scope
func (s Scope) String() string {
	return string(s)
}

// ItemStatus represents the lifecycle state of one batch item
type ItemStatus string

const (
	ItemStatusPending    ItemStatus = "PENDING"
	ItemStatusGenerating ItemStatus = "GENERATING"
	ItemStatusSucceeded  ItemStatus = "SUCCEEDED"
	ItemStatusFailed     ItemStatus = "FAILED"
)

// IsValid checks if the ItemStatus is a valid value
func (s ItemStatus) IsValid() bool {
	switch s {
	case ItemStatusPending, ItemStatusGenerating, ItemStatusSucceeded, ItemStatusFailed:
		return true
	}
	return false
}

// String returns the string representation of ItemStatus
func (s ItemStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the item has left pending/generating
func (s ItemStatus) IsTerminal() bool {
	return s == ItemStatusSucceeded || s == ItemStatusFailed
}

// CanTransitionTo checks if the status can transition to the target status.
// A pending item may fail without being started when it could not be dispatched.
func (s ItemStatus) CanTransitionTo(target ItemStatus) bool {
	switch s {
	case ItemStatusPending:
		return target == ItemStatusGenerating || target == ItemStatusFailed
	case ItemStatusGenerating:
		return target == ItemStatusSucceeded || target == ItemStatusFailed
	default:
		return false
	}
}

// PaperSize represents the paper size handed to the print facility
type PaperSize string

const (
	PaperSizeA4 PaperSize = "A4" // 210mm x 297mm
	PaperSizeA5 PaperSize = "A5" // 148mm x 210mm
)

// IsValid checks if the PaperSize is a valid value
func (p PaperSize) IsValid() bool {
	return p == PaperSizeA4 || p == PaperSizeA5
}

// String returns the string representation of PaperSize
func (p PaperSize) String() string {
	return string(p)
}

// Dimensions returns the paper dimensions in millimeters (width, height)
func (p PaperSize) Dimensions() (width, height int) {
	if p == PaperSizeA5 {
		return 148, 210
	}
	return 210, 297
}

// Orientation represents the page orientation for printing
type Orientation string

const (
	OrientationPortrait  Orientation = "PORTRAIT"
	OrientationLandscape Orientation = "LANDSCAPE"
)

// IsValid checks if the Orientation is a valid value
func (o Orientation) IsValid() bool {
	return o == OrientationPortrait || o == OrientationLandscape
}

// PrintState is the observable state of the print-surface orchestrator
type PrintState string

const (
	PrintStateIdle               PrintState = "IDLE"
	PrintStatePresenting         PrintState = "PRESENTING"
	PrintStateAwaitingCompletion PrintState = "AWAITING_COMPLETION"
)

// String returns the string representation of PrintState
func (s PrintState) String() string {
	return string(s)
}

// PrintRunStatus tracks an asynchronous print run
type PrintRunStatus string

const (
	PrintRunStatusRunning   PrintRunStatus = "RUNNING"
	PrintRunStatusCompleted PrintRunStatus = "COMPLETED"
	PrintRunStatusCancelled PrintRunStatus = "CANCELLED"
	PrintRunStatusFailed    PrintRunStatus = "FAILED"
)

// IsTerminal returns true if the run has finished
func (s PrintRunStatus) IsTerminal() bool {
	return s == PrintRunStatusCompleted || s == PrintRunStatusCancelled || s == PrintRunStatusFailed
}

// PreviewStatus represents the state of a preview session
type PreviewStatus string

const (
	PreviewStatusLoading PreviewStatus = "LOADING"
	PreviewStatusReady   PreviewStatus = "READY"
	PreviewStatusFailed  PreviewStatus = "FAILED"
)

// String returns the string representation of PreviewStatus
func (s PreviewStatus) String() string {
	return string(s)
}
