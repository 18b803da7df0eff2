package invoicing

import (
	"slices"
	"strings"

	"github.com/govtravel/backoffice/internal/domain/shared"
)

// InvoiceDocumentRequest identifies one document to render.
// It is immutable once created: fields are unexported and accessors return copies.
type InvoiceDocumentRequest struct {
	scope        Scope
	invoiceID    string
	passengerIDs []string
}

// NewInvoiceDocumentRequest validates and creates a request.
// Group requests carry no passenger ids; individual requests carry at least one.
func NewInvoiceDocumentRequest(scope Scope, invoiceID string, passengerIDs ...string) (InvoiceDocumentRequest, error) {
	if !scope.IsValid() {
		return InvoiceDocumentRequest{}, shared.NewDomainError("INVALID_INPUT", "Invalid scope: "+string(scope))
	}
	invoiceID = strings.TrimSpace(invoiceID)
	if invoiceID == "" {
		return InvoiceDocumentRequest{}, shared.NewDomainError("INVALID_INPUT", "Invoice ID cannot be empty")
	}

	ids := make([]string, 0, len(passengerIDs))
	for _, id := range passengerIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			return InvoiceDocumentRequest{}, shared.NewDomainError("INVALID_INPUT", "Passenger ID cannot be empty")
		}
		ids = append(ids, id)
	}

	switch scope {
	case ScopeGroup:
		if len(ids) > 0 {
			return InvoiceDocumentRequest{}, shared.NewDomainError("INVALID_INPUT", "Group invoices do not take passenger IDs")
		}
	case ScopeIndividual:
		if len(ids) == 0 {
			return InvoiceDocumentRequest{}, shared.NewDomainError("INVALID_INPUT", "Individual invoices require at least one passenger ID")
		}
	}

	return InvoiceDocumentRequest{
		scope:        scope,
		invoiceID:    invoiceID,
		passengerIDs: ids,
	}, nil
}

// ExpandRequests builds the requests for one user action: a single request
// for group scope, one request per selected passenger for individual scope.
// Duplicate passenger ids are rendered once, in first-seen order.
func ExpandRequests(scope Scope, invoiceID string, passengerIDs []string) ([]InvoiceDocumentRequest, error) {
	if scope == ScopeGroup {
		req, err := NewInvoiceDocumentRequest(ScopeGroup, invoiceID)
		if err != nil {
			return nil, err
		}
		return []InvoiceDocumentRequest{req}, nil
	}
	if !scope.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Invalid scope: "+string(scope))
	}
	if len(passengerIDs) == 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "Individual invoices require at least one passenger ID")
	}

	seen := make(map[string]struct{}, len(passengerIDs))
	requests := make([]InvoiceDocumentRequest, 0, len(passengerIDs))
	for _, id := range passengerIDs {
		key := strings.TrimSpace(id)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		req, err := NewInvoiceDocumentRequest(ScopeIndividual, invoiceID, key)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, nil
}

// Scope returns the invoice variant
func (r InvoiceDocumentRequest) Scope() Scope {
	return r.scope
}

// InvoiceID returns the invoice identifier
func (r InvoiceDocumentRequest) InvoiceID() string {
	return r.invoiceID
}

// PassengerIDs returns a copy of the passenger identifiers
func (r InvoiceDocumentRequest) PassengerIDs() []string {
	return slices.Clone(r.passengerIDs)
}

// IsZero returns true for the zero value
func (r InvoiceDocumentRequest) IsZero() bool {
	return r.invoiceID == ""
}

// Key returns a stable identity for logs and comparisons,
// e.g. "individual:INV-001:P-7"
func (r InvoiceDocumentRequest) Key() string {
	if len(r.passengerIDs) == 0 {
		return string(r.scope) + ":" + r.invoiceID
	}
	return string(r.scope) + ":" + r.invoiceID + ":" + strings.Join(r.passengerIDs, ",")
}

// Equals checks if two requests identify the same document
func (r InvoiceDocumentRequest) Equals(other InvoiceDocumentRequest) bool {
	return r.scope == other.scope &&
		r.invoiceID == other.invoiceID &&
		slices.Equal(r.passengerIDs, other.passengerIDs)
}
