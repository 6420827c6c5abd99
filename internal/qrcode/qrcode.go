package qrcode

import (
	"fmt"
	"net/url"
	"strconv"

	qr "github.com/skip2/go-qrcode"
)

// DefaultSize is the PNG edge length in pixels.
const DefaultSize = 256

// TableURL appends table=<number> to the customer ordering page URL. The
// result is what the checkout resolver parses back.
func TableURL(baseURL string, tableNumber int) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid QR base URL %q", baseURL)
	}
	q := u.Query()
	q.Set("table", strconv.Itoa(tableNumber))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// TablePNG renders the table's QR code.
func TablePNG(baseURL string, tableNumber, size int) ([]byte, string, error) {
	payload, err := TableURL(baseURL, tableNumber)
	if err != nil {
		return nil, "", err
	}
	if size <= 0 {
		size = DefaultSize
	}
	png, err := qr.Encode(payload, qr.Medium, size)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode QR code: %w", err)
	}
	return png, payload, nil
}
