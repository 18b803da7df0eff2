// Package printing turns invoice source data into printable documents and
// presents them to the host print facility.
//
// This package contains:
// - InvoiceRenderer, the pure HTML renderer for group and individual invoices
// - ChromeSurfaceHost, display surfaces backed by headless Chrome tabs
// - SpoolDirectorySink, the hand-off of printed PDFs to a print server
// - PreviewPage, the HTML inspection page of a preview session
//
// Example usage:
//
//	renderer := printing.NewInvoiceRenderer(printing.WithPaperSize(invoicing.PaperSizeA4))
//	doc := renderer.Render(sourceData)
//
//	sink, err := printing.NewSpoolDirectorySink(&printing.SpoolConfig{Dir: "/var/spool/backoffice"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	host, err := printing.NewChromeSurfaceHost(&printing.ChromeConfig{NoSandbox: true}, sink)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer host.Close()
package printing
