// Package receipt renders the printable bill of a tab.
package receipt

import (
	"bytes"
	"fmt"
	"time"

	"github.com/comanda-pos/floor/internal/billing"
	"github.com/phpdave11/gofpdf"
	"github.com/shopspring/decimal"
)

type Line struct {
	Quantity  int32
	Name      string
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
	Notes     string
}

type Data struct {
	RestaurantName string
	TabID          string
	TabStatus      string
	TableNumber    int32 // zero for counter sales
	PersonName     string
	OpenedAt       time.Time
	ClosedAt       time.Time
	Lines          []Line
	Bill           billing.Breakdown
	PaymentMethod  string
	PaidAmount     decimal.Decimal
	ChangeAmount   decimal.Decimal
}

func money(d decimal.Decimal) string {
	return "R$ " + d.StringFixed(2)
}

// Render returns the bill as an A4 PDF. Open tabs render as a pre-bill with
// the projected totals.
func Render(data Data) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(12, 12, 12)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, tr(data.RestaurantName), "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "B", 11)
	title := "Bill"
	if data.TabStatus == "OPEN" {
		title = "Pre-bill"
	}
	pdf.CellFormat(0, 6, fmt.Sprintf("%s %s", title, data.TabID), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	if data.TableNumber > 0 {
		pdf.CellFormat(0, 5, fmt.Sprintf("Table %d", data.TableNumber), "", 1, "C", false, 0, "")
	} else {
		pdf.CellFormat(0, 5, "Counter", "", 1, "C", false, 0, "")
	}
	if data.PersonName != "" {
		pdf.CellFormat(0, 5, tr(data.PersonName), "", 1, "C", false, 0, "")
	}
	if !data.OpenedAt.IsZero() {
		pdf.CellFormat(0, 5, "Opened: "+data.OpenedAt.Format("2006-01-02 15:04"), "", 1, "C", false, 0, "")
	}
	if !data.ClosedAt.IsZero() {
		pdf.CellFormat(0, 5, "Closed: "+data.ClosedAt.Format("2006-01-02 15:04"), "", 1, "C", false, 0, "")
	}

	pdf.Ln(3)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(0, 6, "Items", "B", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	for _, line := range data.Lines {
		pdf.CellFormat(130, 5, tr(fmt.Sprintf("%dx %s (%s)", line.Quantity, line.Name, money(line.UnitPrice))), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 5, money(line.LineTotal), "", 1, "R", false, 0, "")
		if line.Notes != "" {
			pdf.MultiCell(0, 4, tr("  "+line.Notes), "", "L", false)
		}
	}

	pdf.Ln(2)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(0, 6, "Totals", "B", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 5, "Subtotal: "+money(data.Bill.Subtotal), "", 1, "L", false, 0, "")
	switch {
	case data.Bill.ServiceChargeIncluded && data.Bill.ServiceChargePaidSeparately:
		pdf.CellFormat(0, 5, "Service (paid separately): "+money(data.Bill.ServiceCharge), "", 1, "L", false, 0, "")
	case data.Bill.ServiceChargeIncluded:
		pdf.CellFormat(0, 5, "Service: "+money(data.Bill.ServiceCharge), "", 1, "L", false, 0, "")
	default:
		pdf.CellFormat(0, 5, "Suggested service: "+money(data.Bill.ServiceCharge), "", 1, "L", false, 0, "")
	}
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 6, "Total: "+money(data.Bill.FinalTotal), "", 1, "L", false, 0, "")

	if data.PaymentMethod != "" {
		pdf.Ln(2)
		pdf.SetFont("Arial", "", 9)
		pdf.CellFormat(0, 5, "Payment: "+data.PaymentMethod, "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 5, "Paid: "+money(data.PaidAmount), "", 1, "L", false, 0, "")
		if data.ChangeAmount.IsPositive() {
			pdf.CellFormat(0, 5, "Change: "+money(data.ChangeAmount), "", 1, "L", false, 0, "")
		}
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, fmt.Errorf("render receipt: %w", err)
	}
	return out.Bytes(), nil
}
