// Package receipts numbers donation receipts and renders the PDF artifact.
package receipts

import (
	"bytes"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-pdf/fpdf"

	"donation-service/internal/domain"
)

const legalText = "This receipt confirms the donation and complies with the requirements of the tax authority."

// NewReceiptNumber returns a receipt number of the form
// RCP-<year>-<unixMillis><rand4>. The millisecond timestamp plus the 4-digit
// suffix keeps numbers unique at this platform's volume.
func NewReceiptNumber(now time.Time) string {
	return fmt.Sprintf("RCP-%d-%d%04d", now.Year(), now.UnixMilli(), rand.Intn(10000))
}

// RenderPDF produces the receipt document for a settled donation.
func RenderPDF(d *domain.Donation, receiptNumber string, issuedAt time.Time) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 22)
	pdf.CellFormat(0, 12, "Donation Receipt", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 8, fmt.Sprintf("Receipt number: %s", receiptNumber), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 8, fmt.Sprintf("Date: %s", issuedAt.Format("2006-01-02")), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, "Organization", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 8, d.NGOName, "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 14)
	if d.IsAnonymous || !d.UserName.Valid {
		pdf.CellFormat(0, 8, "Anonymous donation", "", 1, "L", false, 0, "")
	} else {
		pdf.CellFormat(0, 8, "Donor", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 12)
		pdf.CellFormat(0, 8, d.UserName.String, "", 1, "L", false, 0, "")
		if d.UserEmail.Valid {
			pdf.CellFormat(0, 8, d.UserEmail.String, "", 1, "L", false, 0, "")
		}
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, "Donation", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 8, fmt.Sprintf("Amount: %s", FormatAmount(d.Amount, d.Currency)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 8, fmt.Sprintf("For: %s", d.StoryTitle), "", 1, "L", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, legalText, "", "C", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render receipt PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// FormatAmount renders a minor-unit amount for display, e.g. "ILS 100.00".
func FormatAmount(amount int64, currency string) string {
	return fmt.Sprintf("%s %d.%02d", currency, amount/100, amount%100)
}
