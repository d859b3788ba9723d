// Package qrcode renders the table QR codes customers scan for the menu.
package qrcode

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	goqrcode "github.com/skip2/go-qrcode"
)

const DefaultSize = 256

type Generator struct {
	BaseURL string
}

// TableURL is the link encoded for a table.
func (g Generator) TableURL(tableID uuid.UUID, number int32) string {
	return fmt.Sprintf("%s?table=%d&id=%s", strings.TrimRight(g.BaseURL, "/"), number, tableID)
}

// Table returns a PNG QR code for the table. size <= 0 uses DefaultSize.
func (g Generator) Table(tableID uuid.UUID, number int32, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultSize
	}
	return goqrcode.Encode(g.TableURL(tableID, number), goqrcode.Medium, size)
}
