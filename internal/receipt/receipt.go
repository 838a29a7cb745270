package receipt

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"warungpos/backend/internal/domain"
)

// Document is a printable artifact: the raw ESC/POS byte stream for a thermal
// printer plus a plain-text preview of the same content.
type Document struct {
	EscposBase64 string `json:"escposBase64"`
	PreviewText  string `json:"previewText"`
	FileName     string `json:"fileName"`
}

const separator = "========================"
const thinRule = "------------------------"

// ForTransaction renders a customer receipt from the transaction's stored
// snapshots, so it prints the same even after the catalog changes.
func ForTransaction(tx domain.Transaction) Document {
	lines := []string{
		"WarungPOS",
		separator,
		"No   : " + tx.TransactionNumber,
		"Waktu: " + formatMillis(tx.CreatedAt),
		thinRule,
	}

	for _, item := range tx.Items {
		lines = append(lines, fmt.Sprintf("%s x%d", item.ProductName, item.Quantity))
		for _, modifier := range item.SelectedModifiers {
			lines = append(lines, fmt.Sprintf("  + %s (%s)", modifier.ModifierName, formatRupiah(modifier.PriceAdjustment)))
		}
		if item.Notes != "" {
			lines = append(lines, "  * "+item.Notes)
		}
		lines = append(lines, fmt.Sprintf("  %s", formatRupiah(item.ItemTotal)))
	}

	lines = append(lines,
		thinRule,
		"Subtotal : "+formatRupiah(tx.Subtotal),
	)
	if tx.Tax > 0 {
		lines = append(lines, "Pajak    : "+formatRupiah(tx.Tax))
	}
	lines = append(lines,
		"Total    : "+formatRupiah(tx.Total),
		"Bayar    : "+paymentLabel(tx),
	)
	if tx.PaymentMethod == domain.PaymentCash {
		lines = append(lines, "Kembali  : "+formatRupiah(tx.CashChange))
	}
	lines = append(lines,
		separator,
		"Terima kasih",
		"",
	)

	return build(lines, fmt.Sprintf("receipt-%s.bin", tx.TransactionNumber))
}

// ZReport renders the end-of-shift reconciliation summary.
func ZReport(shift domain.ShiftLog, transactions []domain.Transaction) Document {
	byMethod := make(map[string]int64, 4)
	for _, tx := range transactions {
		if tx.Status != domain.TxStatusCompleted {
			continue
		}
		byMethod[tx.PaymentMethod] += tx.Total
	}

	lines := []string{
		"WarungPOS - Laporan Shift",
		separator,
		"Shift  : " + shift.ShiftNumber,
		"Kasir  : " + shift.OpenedBy,
		"Buka   : " + formatMillis(shift.OpenedAt),
	}
	if shift.ClosedAt > 0 {
		lines = append(lines, "Tutup  : "+formatMillis(shift.ClosedAt))
	}
	lines = append(lines,
		thinRule,
		fmt.Sprintf("Transaksi : %d", shift.TotalTransactions),
		"Omzet     : "+formatRupiah(shift.TotalRevenue),
	)
	for _, method := range []string{domain.PaymentCash, domain.PaymentQRIS, domain.PaymentDebit, domain.PaymentCredit, domain.PaymentKasbon} {
		if total, ok := byMethod[method]; ok {
			lines = append(lines, fmt.Sprintf("  %-7s : %s", method, formatRupiah(total)))
		}
	}
	lines = append(lines,
		thinRule,
		"Kas awal      : "+formatRupiah(shift.OpeningCash),
		"Kas seharusnya: "+formatRupiah(shift.ExpectedCash),
		"Kas aktual    : "+formatRupiah(shift.ClosingCash),
		"Selisih       : "+formatRupiah(shift.CashDifference),
	)
	if shift.Notes != "" {
		lines = append(lines, thinRule, "Catatan: "+shift.Notes)
	}
	lines = append(lines, separator, "")

	return build(lines, fmt.Sprintf("zreport-%s.bin", shift.ShiftNumber))
}

func build(lines []string, fileName string) Document {
	// ESC @ initializes the printer; GS V A 16 feeds and cuts.
	escpos := []byte{0x1b, 0x40}
	for _, line := range lines {
		escpos = append(escpos, []byte(line)...)
		escpos = append(escpos, '\n')
	}
	escpos = append(escpos, []byte{0x1d, 0x56, 0x41, 0x10}...)

	return Document{
		EscposBase64: base64.StdEncoding.EncodeToString(escpos),
		PreviewText:  strings.Join(lines, "\n"),
		FileName:     fileName,
	}
}

func paymentLabel(tx domain.Transaction) string {
	if tx.PaymentMethod == domain.PaymentCash {
		return formatRupiah(tx.CashReceived) + " (cash)"
	}
	return tx.PaymentMethod
}

func formatMillis(millis int64) string {
	return time.UnixMilli(millis).Format("2006-01-02 15:04:05")
}

// formatRupiah renders an amount with dot thousand separators, e.g. Rp 460.000.
func formatRupiah(amount int64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	digits := fmt.Sprintf("%d", amount)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}

	if negative {
		return "Rp -" + b.String()
	}
	return "Rp " + b.String()
}
