package printing

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/govtravel/backoffice/internal/domain/invoicing"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

// RenderError represents an error while producing or printing a document
type RenderError struct {
	Code    string
	Message string
	Cause   error
}

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// Error codes for rendering and printing failures
const (
	ErrCodeRenderTimeout    = "RENDER_TIMEOUT"
	ErrCodeRenderFailed     = "RENDER_FAILED"
	ErrCodeInvalidHTML      = "INVALID_HTML"
	ErrCodeInvalidPaperSize = "INVALID_PAPER_SIZE"
	ErrCodeStorageFailed    = "STORAGE_FAILED"
)

// NewRenderError creates a new RenderError
func NewRenderError(code, message string, cause error) *RenderError {
	return &RenderError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// =============================================================================
// Invoice renderer
// =============================================================================

// InvoiceRenderer maps invoice source data to self-contained HTML documents.
// Templates are parsed once; Render itself performs no I/O.
type InvoiceRenderer struct {
	templates *template.Template
	paperSize invoicing.PaperSize
	margins   invoicing.Margins
	logger    *zap.Logger
}

// InvoiceRendererOption configures the renderer
type InvoiceRendererOption func(*InvoiceRenderer)

// WithPaperSize sets the @page size emitted into documents
func WithPaperSize(size invoicing.PaperSize) InvoiceRendererOption {
	return func(r *InvoiceRenderer) {
		if size.IsValid() {
			r.paperSize = size
		}
	}
}

// WithMargins sets the @page margins emitted into documents
func WithMargins(m invoicing.Margins) InvoiceRendererOption {
	return func(r *InvoiceRenderer) {
		r.margins = m
	}
}

// WithRendererLogger sets the logger used to report degraded documents
func WithRendererLogger(logger *zap.Logger) InvoiceRendererOption {
	return func(r *InvoiceRenderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewInvoiceRenderer parses the embedded templates. It panics only when the
// embedded templates are broken, which is a build defect.
func NewInvoiceRenderer(opts ...InvoiceRendererOption) *InvoiceRenderer {
	r := &InvoiceRenderer{
		templates: template.Must(template.ParseFS(templateFS, "templates/*.html")),
		paperSize: invoicing.PaperSizeA4,
		margins:   invoicing.DefaultMargins(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// pageView carries the print layout shared by all templates
type pageView struct {
	PageSize     string
	MarginTop    int
	MarginRight  int
	MarginBottom int
	MarginLeft   int
}

type partyView struct {
	Name, NameTH, TaxID, Branch, Address, Phone string
}

type passengerView struct {
	No           int
	Name, NameTH string
	Ticket       string
}

type segmentView struct {
	Flight, Route, Departure, Cabin string
}

type lineView struct {
	No                         int
	Description, DescriptionTH string
	Quantity, UnitPrice        string
	Amount                     string
}

type chargeView struct {
	Label, LabelTH, Amount string
}

type invoiceView struct {
	pageView
	Label            string
	Title, TitleTH   string
	LogoURI          template.URL
	QRURI            template.URL
	InvoiceNumber    string
	PurchaseOrderNo  string
	BookingReference string
	IssueDate        string
	IssueDateTH      string
	DueDate          string
	ScopeLabel       string
	Issuer           partyView
	Customer         partyView
	Department       string
	DepartmentTH     string
	Passengers       []passengerView
	Segments         []segmentView
	Lines            []lineView
	Charges          []chargeView
	Subtotal         string
	VATRate          string
	VAT              string
	Withholding      string
	GrandTotal       string
	Currency         string
	AmountWordsTH    string
	AmountWordsEN    string
	PaymentReference string
	Notes            string
	GeneratedAt      string
}

type reducedView struct {
	pageView
	Label          string
	Title, TitleTH string
	LogoURI        template.URL
	InvoiceID      string
	InvoiceNumber  string
	SubjectName    string
	IssueDate      string
	GrandTotal     string
	Currency       string
	Missing        []string
	GeneratedAt    string
}

// Render produces the document for one invoice. It never fails: incomplete
// data yields a reduced document listing the missing fields.
func (r *InvoiceRenderer) Render(data *invoicing.InvoiceSourceData) *invoicing.RenderedDocument {
	label := documentLabel(data)

	if missing := data.MissingFields(); len(missing) > 0 {
		r.logger.Warn("rendering reduced invoice document",
			zap.String("document_label", label),
			zap.Strings("missing_fields", missing))
		return r.renderReduced(data, label, missing)
	}

	content, err := r.execute("invoice", r.invoiceView(data, label))
	if err != nil {
		// Only reachable on a template defect; keep the batch moving.
		r.logger.Error("invoice template failed", zap.String("document_label", label), zap.Error(err))
		return r.renderReduced(data, label, []string{"template"})
	}

	return &invoicing.RenderedDocument{
		Content:       content,
		DocumentLabel: label,
		Metadata: invoicing.DocumentMetadata{
			AmountTotal: data.Totals.GrandTotal,
			ScopeType:   data.Scope,
			SubjectName: normalizeText(data.SubjectName()),
		},
	}
}

func (r *InvoiceRenderer) renderReduced(data *invoicing.InvoiceSourceData, label string, missing []string) *invoicing.RenderedDocument {
	view := reducedView{
		pageView: r.page(),
		Label:    label,
		Title:    "INVOICE",
		TitleTH:  "ใบแจ้งหนี้",
		LogoURI:  agencyLogo(),
		Missing:  missing,
	}

	meta := invoicing.DocumentMetadata{Reduced: true}
	if data != nil {
		view.InvoiceID = normalizeText(data.InvoiceID)
		view.InvoiceNumber = normalizeText(data.DocumentNumber())
		view.SubjectName = normalizeText(data.SubjectName())
		view.IssueDate = formatDate(data.IssueDate)
		view.Currency = data.CurrencyCode()
		if !data.Totals.GrandTotal.IsZero() {
			view.GrandTotal = formatMoney(data.Totals.GrandTotal)
		}
		view.GeneratedAt = generatedAt(data)
		meta.AmountTotal = data.Totals.GrandTotal
		meta.ScopeType = data.Scope
		meta.SubjectName = view.SubjectName
	}

	content, err := r.execute("reduced", view)
	if err != nil {
		r.logger.Error("reduced template failed", zap.String("document_label", label), zap.Error(err))
		content = "<!DOCTYPE html><html><head><meta charset=\"UTF-8\"></head><body><p>" +
			template.HTMLEscapeString(label) + "</p></body></html>"
	}

	return &invoicing.RenderedDocument{Content: content, DocumentLabel: label, Metadata: meta}
}

func (r *InvoiceRenderer) execute(name string, view any) (string, error) {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, view); err != nil {
		return "", NewRenderError(ErrCodeRenderFailed, "failed to execute template "+name, err)
	}
	return buf.String(), nil
}

func (r *InvoiceRenderer) page() pageView {
	return pageView{
		PageSize:     r.paperSize.String(),
		MarginTop:    r.margins.Top,
		MarginRight:  r.margins.Right,
		MarginBottom: r.margins.Bottom,
		MarginLeft:   r.margins.Left,
	}
}

func (r *InvoiceRenderer) invoiceView(data *invoicing.InvoiceSourceData, label string) invoiceView {
	currency := data.CurrencyCode()
	view := invoiceView{
		pageView:         r.page(),
		Label:            label,
		Title:            "TAX INVOICE",
		TitleTH:          "ใบแจ้งหนี้ / ใบกำกับภาษี",
		LogoURI:          agencyLogo(),
		InvoiceNumber:    normalizeText(data.DocumentNumber()),
		PurchaseOrderNo:  normalizeText(data.PurchaseOrderNo),
		BookingReference: normalizeText(data.BookingReference),
		IssueDate:        formatDate(data.IssueDate),
		IssueDateTH:      formatThaiDate(data.IssueDate),
		ScopeLabel:       scopeLabel(data.Scope),
		Issuer:           newPartyView(data.Issuer),
		Customer:         newPartyView(data.Customer),
		Department:       normalizeText(data.Department),
		DepartmentTH:     normalizeText(data.DepartmentTH),
		Subtotal:         formatMoney(data.Totals.Subtotal),
		VATRate:          formatPercent(data.Totals.VATRate),
		VAT:              formatMoney(data.Totals.VAT),
		GrandTotal:       formatMoney(data.Totals.GrandTotal),
		Currency:         currency,
		AmountWordsTH:    bahtText(data.Totals.GrandTotal),
		AmountWordsEN:    amountInWords(data.Totals.GrandTotal, currency),
		PaymentReference: normalizeText(data.PaymentReference),
		Notes:            normalizeText(data.Notes),
		GeneratedAt:      generatedAt(data),
	}
	if data.DueDate != nil {
		view.DueDate = formatDate(*data.DueDate)
	}
	if !data.Totals.Withholding.IsZero() {
		view.Withholding = formatMoney(data.Totals.Withholding)
	}
	if view.PaymentReference != "" {
		view.QRURI = qrDataURI(paymentPayload(view.InvoiceNumber, view.PaymentReference, data.Totals.GrandTotal))
	}

	for i, p := range data.Passengers {
		view.Passengers = append(view.Passengers, passengerView{
			No:     i + 1,
			Name:   normalizeText(passengerName(p)),
			NameTH: normalizeText(p.FullNameTH),
			Ticket: normalizeText(p.TicketNumber),
		})
	}
	for _, s := range data.Segments {
		view.Segments = append(view.Segments, segmentView{
			Flight:    normalizeText(s.FlightNumber),
			Route:     normalizeText(s.Origin) + " - " + normalizeText(s.Destination),
			Departure: formatDateTime(s.DepartureAt),
			Cabin:     normalizeText(s.CabinClass),
		})
	}
	for i, l := range data.LineItems {
		view.Lines = append(view.Lines, lineView{
			No:            i + 1,
			Description:   normalizeText(l.Description),
			DescriptionTH: normalizeText(l.DescriptionTH),
			Quantity:      l.Quantity.String(),
			UnitPrice:     formatMoney(l.UnitPrice),
			Amount:        formatMoney(l.Amount),
		})
	}
	for _, c := range data.Charges {
		view.Charges = append(view.Charges, chargeView{
			Label:   normalizeText(c.Label),
			LabelTH: normalizeText(c.LabelTH),
			Amount:  formatMoney(c.Amount),
		})
	}
	return view
}

func newPartyView(p invoicing.Party) partyView {
	return partyView{
		Name:    normalizeText(p.Name),
		NameTH:  normalizeText(p.NameTH),
		TaxID:   normalizeText(p.TaxID),
		Branch:  normalizeText(p.Branch),
		Address: normalizeText(p.Address),
		Phone:   normalizeText(p.Phone),
	}
}

// passengerName title-cases the Latin name; ticketing systems send it upper case
func passengerName(p invoicing.Passenger) string {
	title := strings.TrimSpace(p.Title)
	name := titleCase(strings.TrimSpace(p.FirstName + " " + p.LastName))
	if title == "" {
		return name
	}
	if name == "" {
		return title
	}
	return title + " " + name
}

func scopeLabel(scope invoicing.Scope) string {
	if scope == invoicing.ScopeIndividual {
		return "รายบุคคล / Individual"
	}
	return "หมู่คณะ / Group"
}

func generatedAt(data *invoicing.InvoiceSourceData) string {
	if data.GeneratedAt.IsZero() {
		return ""
	}
	return "Generated " + data.GeneratedAt.Format("02/01/2006 15:04")
}

func paymentPayload(number, reference string, amount decimal.Decimal) string {
	return fmt.Sprintf("%s|%s|%s", number, reference, amount.StringFixed(2))
}

// documentLabel names a document by its invoice number, falling back to the
// invoice id so that reduced documents still get a stable name
func documentLabel(data *invoicing.InvoiceSourceData) string {
	if data == nil {
		return "invoice"
	}
	if n := normalizeText(data.DocumentNumber()); n != "" {
		return invoicing.SanitizeLabel(n)
	}
	if id := normalizeText(data.InvoiceID); id != "" {
		return invoicing.SanitizeLabel("invoice-" + id)
	}
	return "invoice"
}

// =============================================================================
// Concatenation
// =============================================================================

// Concatenate joins several documents into one, keeping each document's
// styles and forcing a page break between consecutive bodies.
func (r *InvoiceRenderer) Concatenate(label string, docs []*invoicing.RenderedDocument) *invoicing.RenderedDocument {
	var (
		styles   []string
		seen     = make(map[string]bool)
		bodies   []string
		total    = decimal.Zero
		scope    invoicing.Scope
		subjects []string
	)
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		for _, s := range extractBlocks(doc.Content, "<style", "</style>") {
			if !seen[s] {
				seen[s] = true
				styles = append(styles, s)
			}
		}
		bodies = append(bodies, bodyOf(doc.Content))
		total = total.Add(doc.Metadata.AmountTotal)
		if scope == "" {
			scope = doc.Metadata.ScopeType
		}
		if doc.Metadata.SubjectName != "" {
			subjects = append(subjects, doc.Metadata.SubjectName)
		}
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html lang=\"th\">\n<head>\n<meta charset=\"UTF-8\">\n<title>")
	b.WriteString(template.HTMLEscapeString(label))
	b.WriteString("</title>\n<style>.page-break { break-before: page; page-break-before: always; }</style>\n")
	for _, s := range styles {
		b.WriteString(s)
		b.WriteString("\n")
	}
	b.WriteString("</head>\n<body>\n")
	for i, body := range bodies {
		if i > 0 {
			b.WriteString("<div class=\"page-break\"></div>\n")
		}
		b.WriteString(body)
		b.WriteString("\n")
	}
	b.WriteString("</body>\n</html>\n")

	return &invoicing.RenderedDocument{
		Content:       b.String(),
		DocumentLabel: invoicing.SanitizeLabel(label),
		Metadata: invoicing.DocumentMetadata{
			AmountTotal: total,
			ScopeType:   scope,
			SubjectName: strings.Join(subjects, ", "),
		},
	}
}

// bodyOf returns the inner markup of <body>, or the whole content when the
// document is a fragment
func bodyOf(content string) string {
	start := indexFold(content, "<body")
	if start < 0 {
		return content
	}
	open := strings.IndexByte(content[start:], '>')
	if open < 0 {
		return content
	}
	inner := content[start+open+1:]
	if end := indexFold(inner, "</body>"); end >= 0 {
		inner = inner[:end]
	}
	return strings.TrimSpace(inner)
}

// extractBlocks returns every open..close block found before <body>
func extractBlocks(content, open, close string) []string {
	head := content
	if i := indexFold(content, "<body"); i >= 0 {
		head = content[:i]
	}
	var blocks []string
	for {
		i := indexFold(head, open)
		if i < 0 {
			return blocks
		}
		j := indexFold(head[i:], close)
		if j < 0 {
			return blocks
		}
		end := i + j + len(close)
		blocks = append(blocks, head[i:end])
		head = head[end:]
	}
}

// indexFold is an ASCII case-insensitive strings.Index
func indexFold(s, substr string) int {
	n := len(substr)
	for i := 0; i+n <= len(s); i++ {
		if strings.EqualFold(s[i:i+n], substr) {
			return i
		}
	}
	return -1
}

var (
	_ invoicing.DocumentRenderer = (*InvoiceRenderer)(nil)
	_ invoicing.DocumentComposer = (*InvoiceRenderer)(nil)
)
