// Package pdf generates a printable expense report of an employee's bills.
// The report has a header bar, the employee block, one table row per bill
// (latest first) and a totals line.
package pdf

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/csg33k/billed/internal/domain"
	"github.com/csg33k/billed/internal/ports"
)

var _ ports.BillReporter = Reporter{}

// Reporter implements ports.BillReporter with fpdf.
type Reporter struct {
	// Now stamps the footer. Defaults to time.Now.
	Now func() time.Time
}

// Report writes the PDF for owner's bills to w. bills is not modified.
func (r Reporter) Report(ctx context.Context, owner domain.User, bills []domain.Bill, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}

	sorted := append([]domain.Bill(nil), bills...)
	domain.SortByDateDesc(sorted)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(18, 18, 18)
	pdf.SetAutoPageBreak(true, 18)
	pdf.AliasNbPages("{nb}")
	// Core fonts are cp1252; labels and user input carry French accents.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetHeaderFunc(func() { drawHeader(pdf) })
	pdf.SetFooterFunc(func() { drawFooter(pdf, now()) })
	pdf.AddPage()
	drawOwner(pdf, tr, owner, len(sorted))
	drawBills(pdf, tr, sorted)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

func drawHeader(pdf *fpdf.Fpdf) {
	pageW, _ := pdf.GetPageSize()
	marginL, marginT, marginR, _ := pdf.GetMargins()
	contentW := pageW - marginL - marginR

	pdf.SetFillColor(30, 30, 30)
	pdf.Rect(marginL, marginT, contentW, 10, "F")
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetXY(marginL+2, marginT+1.5)
	pdf.CellFormat(contentW-4, 7, "NOTES DE FRAIS", "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetXY(marginL, marginT+1.5)
	pdf.CellFormat(contentW-2, 7, fmt.Sprintf("Page %d / {nb}", pdf.PageNo()), "", 1, "R", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.SetY(marginT + 14)
}

func drawFooter(pdf *fpdf.Fpdf, at time.Time) {
	pageW, _ := pdf.GetPageSize()
	marginL, _, marginR, _ := pdf.GetMargins()
	contentW := pageW - marginL - marginR

	pdf.SetY(-14)
	pdf.SetFont("Helvetica", "I", 7.5)
	pdf.SetTextColor(130, 130, 130)
	pdf.CellFormat(contentW/2, 5, "Billed", "", 0, "L", false, 0, "")
	pdf.CellFormat(contentW/2, 5, at.Format("2006-01-02 15:04"), "", 0, "R", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
}

func drawOwner(pdf *fpdf.Fpdf, tr func(string) string, owner domain.User, count int) {
	pageW, _ := pdf.GetPageSize()
	marginL, _, marginR, _ := pdf.GetMargins()
	contentW := pageW - marginL - marginR
	colHalf := contentW / 2

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 8)
	pdf.SetX(marginL)
	pdf.CellFormat(contentW, 5.5, tr("EMPLOYÉ"), "LRT", 1, "L", true, 0, "")

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetX(marginL)
	pdf.CellFormat(colHalf, 6.5, tr(owner.Email), "LB", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(colHalf, 6.5, fmt.Sprintf("%d note(s) de frais", count), "RB", 1, "R", false, 0, "")
	pdf.Ln(5)
}

func drawBills(pdf *fpdf.Fpdf, tr func(string) string, bills []domain.Bill) {
	pageW, _ := pdf.GetPageSize()
	marginL, _, marginR, _ := pdf.GetMargins()
	contentW := pageW - marginL - marginR

	cols := []struct {
		title string
		width float64
		align string
	}{
		{"Type", 0.22, "L"},
		{"Nom", 0.26, "L"},
		{"Date", 0.16, "C"},
		{"Montant", 0.12, "R"},
		{"TVA", 0.10, "R"},
		{"Statut", 0.14, "C"},
	}

	pdf.SetFillColor(30, 30, 30)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 8.5)
	pdf.SetX(marginL)
	for i, c := range cols {
		ln := 0
		if i == len(cols)-1 {
			ln = 1
		}
		pdf.CellFormat(contentW*c.width, 7, c.title, "1", ln, "C", true, 0, "")
	}
	pdf.SetTextColor(0, 0, 0)

	if len(bills) == 0 {
		pdf.SetFont("Helvetica", "I", 8.5)
		pdf.SetX(marginL)
		pdf.CellFormat(contentW, 6.5, "Aucune note de frais", "1", 1, "C", false, 0, "")
		return
	}

	total := 0
	pdf.SetFont("Helvetica", "", 8.5)
	for i, b := range bills {
		if i%2 == 0 {
			pdf.SetFillColor(250, 250, 250)
		} else {
			pdf.SetFillColor(255, 255, 255)
		}
		values := []string{
			b.Type,
			b.Name,
			b.Date,
			fmt.Sprintf("%d €", b.Amount),
			fmt.Sprintf("%d %%", b.Pct),
			b.Status.Label(),
		}
		pdf.SetX(marginL)
		for j, c := range cols {
			ln := 0
			if j == len(cols)-1 {
				ln = 1
			}
			pdf.CellFormat(contentW*c.width, 6.5, tr(values[j]), "1", ln, c.align, true, 0, "")
		}
		total += b.Amount
	}

	pdf.SetFont("Helvetica", "B", 8.5)
	pdf.SetFillColor(240, 240, 240)
	pdf.SetX(marginL)
	labelW := contentW * (cols[0].width + cols[1].width + cols[2].width)
	pdf.CellFormat(labelW, 7, "Total", "1", 0, "R", true, 0, "")
	pdf.CellFormat(contentW*cols[3].width, 7, tr(fmt.Sprintf("%d €", total)), "1", 0, "R", true, 0, "")
	pdf.CellFormat(contentW*(cols[4].width+cols[5].width), 7, "", "1", 1, "L", true, 0, "")
}
