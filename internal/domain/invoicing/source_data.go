package invoicing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Party is an issuer or customer identity with bilingual names
type Party struct {
	Name    string `json:"name"`
	NameTH  string `json:"nameTh,omitempty"`
	TaxID   string `json:"taxId,omitempty"`
	Branch  string `json:"branch,omitempty"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// Passenger is a traveller covered by the invoice
type Passenger struct {
	ID            string `json:"id"`
	Title         string `json:"title,omitempty"`
	FirstName     string `json:"firstName,omitempty"`
	LastName      string `json:"lastName,omitempty"`
	FullNameTH    string `json:"fullNameTh,omitempty"`
	TicketNumber  string `json:"ticketNumber,omitempty"`
	InvoiceNumber string `json:"invoiceNumber,omitempty"`
}

// FullName returns "Title First Last" without empty parts
func (p Passenger) FullName() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{p.Title, p.FirstName, p.LastName} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// FlightSegment is one leg of the itinerary
type FlightSegment struct {
	FlightNumber string    `json:"flightNumber"`
	Origin       string    `json:"origin"`
	Destination  string    `json:"destination"`
	DepartureAt  time.Time `json:"departureAt"`
	CabinClass   string    `json:"cabinClass,omitempty"`
}

// LineItem is one billable row
type LineItem struct {
	Description   string          `json:"description"`
	DescriptionTH string          `json:"descriptionTh,omitempty"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	Amount        decimal.Decimal `json:"amount"`
}

// Charge is an additional fee or discount line (service fee, airport tax, ...)
type Charge struct {
	Label   string          `json:"label"`
	LabelTH string          `json:"labelTh,omitempty"`
	Amount  decimal.Decimal `json:"amount"`
}

// Totals are supplied by the backend and trusted as-is
type Totals struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	VATRate     decimal.Decimal `json:"vatRate"`
	VAT         decimal.Decimal `json:"vat"`
	Withholding decimal.Decimal `json:"withholding"`
	GrandTotal  decimal.Decimal `json:"grandTotal"`
}

// InvoiceSourceData is the structured invoice content returned by the backend
type InvoiceSourceData struct {
	InvoiceID        string          `json:"invoiceId"`
	InvoiceNumber    string          `json:"invoiceNumber"`
	Scope            Scope           `json:"scope"`
	PurchaseOrderNo  string          `json:"purchaseOrderNo,omitempty"`
	BookingReference string          `json:"bookingReference,omitempty"`
	IssueDate        time.Time       `json:"issueDate"`
	DueDate          *time.Time      `json:"dueDate,omitempty"`
	GeneratedAt      time.Time       `json:"generatedAt"`
	Issuer           Party           `json:"issuer"`
	Customer         Party           `json:"customer"`
	Department       string          `json:"department,omitempty"`
	DepartmentTH     string          `json:"departmentTh,omitempty"`
	Passengers       []Passenger     `json:"passengers,omitempty"`
	Segments         []FlightSegment `json:"segments,omitempty"`
	LineItems        []LineItem      `json:"lineItems"`
	Charges          []Charge        `json:"charges,omitempty"`
	Totals           Totals          `json:"totals"`
	Currency         string          `json:"currency"`
	PaymentReference string          `json:"paymentReference,omitempty"`
	Notes            string          `json:"notes,omitempty"`
}

// MissingFields lists the required fields that are absent.
// An empty result means a full document can be rendered.
func (d *InvoiceSourceData) MissingFields() []string {
	if d == nil {
		return []string{"invoice"}
	}

	var missing []string
	if strings.TrimSpace(d.InvoiceNumber) == "" {
		missing = append(missing, "invoiceNumber")
	}
	if d.IssueDate.IsZero() {
		missing = append(missing, "issueDate")
	}
	if strings.TrimSpace(d.Issuer.Name) == "" {
		missing = append(missing, "issuer.name")
	}
	if strings.TrimSpace(d.Customer.Name) == "" && strings.TrimSpace(d.Customer.NameTH) == "" {
		missing = append(missing, "customer.name")
	}
	if len(d.LineItems) == 0 {
		missing = append(missing, "lineItems")
	}
	if d.Scope == ScopeIndividual && len(d.Passengers) == 0 {
		missing = append(missing, "passengers")
	}
	return missing
}

// IsComplete returns true if no required field is missing
func (d *InvoiceSourceData) IsComplete() bool {
	return len(d.MissingFields()) == 0
}

// SubjectName returns the passenger name for individual invoices
// and the customer name for group invoices.
func (d *InvoiceSourceData) SubjectName() string {
	if d == nil {
		return ""
	}
	if d.Scope == ScopeIndividual && len(d.Passengers) > 0 {
		if name := d.Passengers[0].FullName(); name != "" {
			return name
		}
		return d.Passengers[0].FullNameTH
	}
	if d.Customer.Name != "" {
		return d.Customer.Name
	}
	return d.Customer.NameTH
}

// DocumentNumber returns the number the document is filed under.
// Individual invoices use the passenger's own invoice number when present.
func (d *InvoiceSourceData) DocumentNumber() string {
	if d == nil {
		return ""
	}
	if d.Scope == ScopeIndividual && len(d.Passengers) > 0 && d.Passengers[0].InvoiceNumber != "" {
		return d.Passengers[0].InvoiceNumber
	}
	return d.InvoiceNumber
}

// CurrencyCode returns the currency, defaulting to THB
func (d *InvoiceSourceData) CurrencyCode() string {
	if d == nil || d.Currency == "" {
		return "THB"
	}
	return strings.ToUpper(d.Currency)
}
