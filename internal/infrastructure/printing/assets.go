package printing

import (
	_ "embed"
	"encoding/base64"
	"html/template"
	"sync"

	qrcode "github.com/skip2/go-qrcode"
)

//go:embed assets/logo.svg
var logoSVG []byte

// qrImageSize is the edge length in pixels of inline QR images
const qrImageSize = 192

// agencyLogo returns the agency logo as an inline data URI.
// The encoding happens once per process; the value is read-only afterwards.
var agencyLogo = sync.OnceValue(func() template.URL {
	return dataURI("image/svg+xml", logoSVG)
})

// qrDataURI encodes content as a PNG QR code data URI.
// Empty content or an encoder failure yields an empty URL and no image.
func qrDataURI(content string) template.URL {
	if content == "" {
		return ""
	}
	png, err := qrcode.Encode(content, qrcode.Medium, qrImageSize)
	if err != nil {
		return ""
	}
	return dataURI("image/png", png)
}

func dataURI(mediaType string, data []byte) template.URL {
	return template.URL("data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data))
}
