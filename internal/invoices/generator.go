// Package invoices renders and stores one PDF invoice per paid order.
package invoices

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/gamestore-backend/pkg/config"
	"github.com/angelmondragon/gamestore-backend/pkg/db/models"
)

// Invoice describes a rendered document.
type Invoice struct {
	Number   string
	Path     string
	IssuedAt time.Time
}

type Generator struct {
	dir           string
	prefix        string
	sellerName    string
	sellerAddress string
	sellerTaxID   string
	now           func() time.Time
}

func NewGenerator(cfg config.InvoicesConfig) (*Generator, error) {
	dir := strings.TrimSpace(cfg.StorageDir)
	if dir == "" {
		return nil, fmt.Errorf("invoice storage dir is required")
	}
	prefix := strings.Trim(strings.TrimSpace(cfg.NumberPrefix), "/")
	if prefix == "" {
		prefix = "FV"
	}
	return &Generator{
		dir:           dir,
		prefix:        prefix,
		sellerName:    cfg.SellerName,
		sellerAddress: cfg.SellerAddress,
		sellerTaxID:   cfg.SellerTaxID,
		now:           time.Now,
	}, nil
}

// Number is deterministic per order and issue month.
func (g *Generator) Number(orderID int64, issuedAt time.Time) string {
	return fmt.Sprintf("%s/%04d/%02d/%06d", g.prefix, issuedAt.Year(), int(issuedAt.Month()), orderID)
}

// Generate renders the invoice PDF for order. Calling it again overwrites the file
// with the same content; callers persist the number only once.
func (g *Generator) Generate(ctx context.Context, order *models.Order, product *models.Product) (*Invoice, error) {
	if order == nil {
		return nil, fmt.Errorf("order is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	issuedAt := g.now().UTC()
	if order.PaymentConfirmedAt != nil {
		issuedAt = order.PaymentConfirmedAt.UTC()
	}
	number := g.Number(order.ID, issuedAt)

	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create invoice dir: %w", err)
	}
	path := filepath.Join(g.dir, fmt.Sprintf("invoice-%d.pdf", order.ID))
	tmp := path + ".tmp"

	pdf := g.render(order, product, number, issuedAt)
	if err := pdf.OutputFileAndClose(tmp); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("render invoice: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("store invoice: %w", err)
	}

	return &Invoice{Number: number, Path: path, IssuedAt: issuedAt}, nil
}

func (g *Generator) render(order *models.Order, product *models.Product, number string, issuedAt time.Time) *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("cp1250")
	pdf.SetTitle(number, true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, tr("Invoice "+number))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 5, "Issued: "+issuedAt.Format("2006-01-02"))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(95, 6, "Seller")
	pdf.Cell(95, 6, "Buyer")
	pdf.Ln(7)
	pdf.SetFont("Helvetica", "", 10)
	sellerLines := []string{g.sellerName, g.sellerAddress}
	if g.sellerTaxID != "" {
		sellerLines = append(sellerLines, "NIP: "+g.sellerTaxID)
	}
	buyerLines := []string{
		order.CustomerName,
		order.Address,
		strings.TrimSpace(order.PostalCode + " " + order.City),
		order.Country,
		order.CustomerEmail,
	}
	for i := 0; i < max(len(sellerLines), len(buyerLines)); i++ {
		pdf.Cell(95, 5, tr(lineAt(sellerLines, i)))
		pdf.Cell(95, 5, tr(lineAt(buyerLines, i)))
		pdf.Ln(5)
	}
	pdf.Ln(8)

	currency := strings.ToUpper(order.Currency)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(90, 7, "Item", "1", 0, "L", false, 0, "")
	pdf.CellFormat(20, 7, "Qty", "1", 0, "R", false, 0, "")
	pdf.CellFormat(40, 7, "Unit price", "1", 0, "R", false, 0, "")
	pdf.CellFormat(40, 7, "Amount", "1", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	itemsTotal := order.ItemsTotalCents()
	unit := itemsTotal
	if order.Quantity > 0 {
		unit = itemsTotal / int64(order.Quantity)
	}
	name := "Board game"
	if product != nil && product.Name != "" {
		name = product.Name
	}
	pdf.CellFormat(90, 7, tr(name), "1", 0, "L", false, 0, "")
	pdf.CellFormat(20, 7, fmt.Sprintf("%d", order.Quantity), "1", 0, "R", false, 0, "")
	pdf.CellFormat(40, 7, money(unit, currency), "1", 0, "R", false, 0, "")
	pdf.CellFormat(40, 7, money(itemsTotal, currency), "1", 1, "R", false, 0, "")

	pdf.CellFormat(150, 7, tr("Delivery ("+string(order.DeliveryMethod)+")"), "1", 0, "L", false, 0, "")
	pdf.CellFormat(40, 7, money(order.DeliveryCostCents, currency), "1", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(150, 8, "Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(40, 8, money(order.TotalCents, currency), "1", 1, "R", false, 0, "")

	if order.PaymentReference != nil {
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "", 9)
		pdf.Cell(0, 5, tr("Paid online, reference "+*order.PaymentReference))
	}
	return pdf
}

func money(cents int64, currency string) string {
	return decimal.New(cents, -2).StringFixed(2) + " " + currency
}

func lineAt(lines []string, i int) string {
	if i < len(lines) {
		return lines[i]
	}
	return ""
}
