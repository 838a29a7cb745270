package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/store"
	"warungpos/backend/internal/store/memory"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return New(memory.NewSeeded(), nil, nil, "outlet-1", 0, false)
}

func adminContext() context.Context {
	return WithActor(context.Background(), domain.Actor{Name: "admin", Role: "admin"})
}

func openTestShift(t *testing.T, svc *Service, openingCash int64) domain.ShiftLog {
	t.Helper()
	shift, err := svc.OpenShift(context.Background(), domain.ShiftOpenRequest{CashierName: "Budi", OpeningCash: openingCash})
	if err != nil {
		t.Fatalf("open shift: %v", err)
	}
	return shift
}

func TestCheckoutRequiresOpenShift(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Checkout(context.Background(), domain.CheckoutRequest{
		Items:         []domain.CheckoutItem{{ProductID: "prod-kopi-susu", Quantity: 1, ModifierIDs: []string{"mod-ukuran-reguler"}}},
		PaymentMethod: domain.PaymentCash,
		CashReceived:  20000,
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestCashCheckoutScenario(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	openTestShift(t, svc, 500000)

	resp, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Items:         []domain.CheckoutItem{{ProductID: "prod-beras", Quantity: 1, ModifierIDs: []string{"mod-satuan-karung"}}},
		PaymentMethod: domain.PaymentCash,
		CashReceived:  500000,
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	tx := resp.Transaction
	if tx.Total != 460000 {
		t.Fatalf("total = %d, want 460000", tx.Total)
	}
	if resp.CashChange != 40000 || tx.CashChange != 40000 {
		t.Fatalf("change = %d/%d, want 40000", resp.CashChange, tx.CashChange)
	}
	if !strings.HasPrefix(tx.TransactionNumber, "TRX-") {
		t.Fatalf("transaction number = %q", tx.TransactionNumber)
	}
	if tx.Status != domain.TxStatusCompleted || tx.SyncedToServer {
		t.Fatalf("status = %s synced = %t", tx.Status, tx.SyncedToServer)
	}
	if len(tx.Items) != 1 || tx.Items[0].ProductName != "Beras Premium" {
		t.Fatalf("item snapshot = %+v", tx.Items)
	}

	// The sale writes one product event and one per selected modifier, each at
	// the full quantity. A product-wide sum therefore sees both.
	modStock, err := svc.CalculateStock(ctx, "prod-beras", "mod-satuan-karung")
	if err != nil {
		t.Fatalf("modifier stock: %v", err)
	}
	if modStock != -1 {
		t.Fatalf("modifier stock = %d, want -1", modStock)
	}
	productStock, err := svc.CalculateStock(ctx, "prod-beras", "")
	if err != nil {
		t.Fatalf("product stock: %v", err)
	}
	if productStock != -2 {
		t.Fatalf("product-wide stock = %d, want -2", productStock)
	}

	// Shift open + checkout were queued for the remote authority.
	status, err := svc.SyncStatus(ctx)
	if err != nil {
		t.Fatalf("sync status: %v", err)
	}
	if status.Pending != 2 {
		t.Fatalf("pending = %d, want 2", status.Pending)
	}
}

func TestCheckoutRejectsInsufficientCash(t *testing.T) {
	svc := newTestService(t)
	openTestShift(t, svc, 0)

	_, err := svc.Checkout(context.Background(), domain.CheckoutRequest{
		Items:         []domain.CheckoutItem{{ProductID: "prod-beras", Quantity: 1, ModifierIDs: []string{"mod-satuan-karung"}}},
		PaymentMethod: domain.PaymentCash,
		CashReceived:  400000,
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestKasbonCheckoutRecordsNoCash(t *testing.T) {
	svc := newTestService(t)
	openTestShift(t, svc, 0)

	resp, err := svc.Checkout(context.Background(), domain.CheckoutRequest{
		Items:         []domain.CheckoutItem{{ProductID: "prod-kopi-susu", Quantity: 2, ModifierIDs: []string{"mod-ukuran-besar"}}},
		PaymentMethod: domain.PaymentKasbon,
	})
	if err != nil {
		t.Fatalf("kasbon checkout: %v", err)
	}
	if resp.Transaction.Total != 40000 {
		t.Fatalf("total = %d, want 40000", resp.Transaction.Total)
	}
	if resp.Transaction.CashReceived != 0 || resp.CashChange != 0 {
		t.Fatalf("kasbon moved cash: %+v", resp)
	}
}

func TestCheckoutRejectsModifierViolations(t *testing.T) {
	svc := newTestService(t)
	openTestShift(t, svc, 0)
	ctx := context.Background()

	// Required size group missing.
	_, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Items:         []domain.CheckoutItem{{ProductID: "prod-kopi-susu", Quantity: 1}},
		PaymentMethod: domain.PaymentQRIS,
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("missing required selection err = %v", err)
	}

	// Unavailable topping.
	_, err = svc.Checkout(ctx, domain.CheckoutRequest{
		Items:         []domain.CheckoutItem{{ProductID: "prod-nasi-ayam", Quantity: 1, ModifierIDs: []string{"mod-topping-kerupuk"}}},
		PaymentMethod: domain.PaymentQRIS,
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("unavailable modifier err = %v", err)
	}
}

func TestCloseShiftReconciliation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	openTestShift(t, svc, 500000)

	if _, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Items:         []domain.CheckoutItem{{ProductID: "prod-beras", Quantity: 1, ModifierIDs: []string{"mod-satuan-karung"}}},
		PaymentMethod: domain.PaymentCash,
		CashReceived:  460000,
	}); err != nil {
		t.Fatalf("cash checkout: %v", err)
	}
	if _, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Items:         []domain.CheckoutItem{{ProductID: "prod-kopi-susu", Quantity: 1, ModifierIDs: []string{"mod-ukuran-besar"}}},
		PaymentMethod: domain.PaymentQRIS,
	}); err != nil {
		t.Fatalf("qris checkout: %v", err)
	}

	closed, err := svc.CloseShift(ctx, domain.ShiftCloseRequest{ActualCash: 960000, Notes: "laci cocok"})
	if err != nil {
		t.Fatalf("close shift: %v", err)
	}

	// Only cash sales count toward the drawer; qris is revenue but not cash.
	if closed.ExpectedCash != 960000 {
		t.Fatalf("expected cash = %d, want 960000", closed.ExpectedCash)
	}
	if closed.CashDifference != 0 {
		t.Fatalf("difference = %d, want 0", closed.CashDifference)
	}
	if closed.TotalTransactions != 2 || closed.TotalRevenue != 480000 {
		t.Fatalf("totals = %d/%d, want 2/480000", closed.TotalTransactions, closed.TotalRevenue)
	}
	if closed.Status != domain.ShiftStatusClosed {
		t.Fatalf("status = %s", closed.Status)
	}

	if _, err := svc.CurrentShift(ctx); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("current shift after close err = %v, want ErrNotFound", err)
	}
}

func TestCloseShiftReportsMissingCash(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	openTestShift(t, svc, 100000)

	closed, err := svc.CloseShift(ctx, domain.ShiftCloseRequest{ActualCash: 95000})
	if err != nil {
		t.Fatalf("close shift: %v", err)
	}
	if closed.CashDifference != -5000 {
		t.Fatalf("difference = %d, want -5000", closed.CashDifference)
	}
}

func TestCloseShiftRejectsNonPositiveCount(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	openTestShift(t, svc, 100000)

	// A zero count means nobody counted the drawer, not an empty drawer.
	if _, err := svc.CloseShift(ctx, domain.ShiftCloseRequest{ActualCash: 0}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("zero count err = %v, want ErrValidation", err)
	}
	if _, err := svc.CloseShift(ctx, domain.ShiftCloseRequest{ActualCash: -100}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("negative count err = %v, want ErrValidation", err)
	}

	shift, err := svc.CurrentShift(ctx)
	if err != nil {
		t.Fatalf("current shift: %v", err)
	}
	if shift.Status != domain.ShiftStatusOpen {
		t.Fatalf("status = %s, want open after rejected close", shift.Status)
	}
}

func TestShiftNumberingRestartsDaily(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first := openTestShift(t, svc, 0)
	if !strings.HasPrefix(first.ShiftNumber, "SHIFT-") || !strings.HasSuffix(first.ShiftNumber, "-001") {
		t.Fatalf("first shift number = %q", first.ShiftNumber)
	}

	if _, err := svc.OpenShift(ctx, domain.ShiftOpenRequest{CashierName: "Siti", OpeningCash: 0}); !errors.Is(err, store.ErrShiftAlreadyOpen) {
		t.Fatalf("second open err = %v, want ErrShiftAlreadyOpen", err)
	}

	if _, err := svc.CloseShift(ctx, domain.ShiftCloseRequest{ActualCash: 50000}); err != nil {
		t.Fatalf("close: %v", err)
	}

	second := openTestShift(t, svc, 0)
	if !strings.HasSuffix(second.ShiftNumber, "-002") {
		t.Fatalf("second shift number = %q", second.ShiftNumber)
	}
}

func TestRecordInventoryEvent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.RecordInventoryEvent(ctx, domain.InventoryEventRequest{
		EventType: "teleport", ProductID: "prod-beras", QuantityChange: 1,
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("unknown event type err = %v", err)
	}

	if _, err := svc.RecordInventoryEvent(ctx, domain.InventoryEventRequest{
		EventType: domain.EventRestock, ProductID: "prod-beras", QuantityChange: 50,
		Metadata: map[string]string{"supplier": "Toko Grosir"},
	}); err != nil {
		t.Fatalf("restock: %v", err)
	}
	if _, err := svc.RecordInventoryEvent(ctx, domain.InventoryEventRequest{
		EventType: domain.EventWaste, ProductID: "prod-beras", QuantityChange: -3,
	}); err != nil {
		t.Fatalf("waste: %v", err)
	}

	stock, err := svc.CalculateStock(ctx, "prod-beras", "")
	if err != nil {
		t.Fatalf("stock: %v", err)
	}
	if stock != 47 {
		t.Fatalf("stock = %d, want 47", stock)
	}

	events, err := svc.ListInventoryEvents(ctx, "prod-beras", 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
}

func TestCatalogAdminGuard(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.CreateProduct(context.Background(), domain.ProductCreateRequest{
		Name: "Teh Manis", CategoryID: "cat-kopi", BasePrice: 5000, IsAvailable: true,
	}); err == nil {
		t.Fatalf("create without admin should fail")
	}

	product, err := svc.CreateProduct(adminContext(), domain.ProductCreateRequest{
		Name: "Teh Manis", CategoryID: "cat-kopi", BasePrice: 5000, Stock: 20, IsAvailable: true,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	stock, err := svc.CalculateStock(context.Background(), product.ID, "")
	if err != nil {
		t.Fatalf("stock: %v", err)
	}
	if stock != 20 {
		t.Fatalf("initial stock ledger = %d, want 20", stock)
	}
}

func TestUpdateProductQueuesSync(t *testing.T) {
	svc := newTestService(t)
	ctx := adminContext()

	newPrice := int64(16000)
	updated, err := svc.UpdateProduct(ctx, "prod-kopi-susu", domain.ProductUpdateRequest{BasePrice: &newPrice})
	if err != nil {
		t.Fatalf("update product: %v", err)
	}
	if updated.BasePrice != 16000 {
		t.Fatalf("base price = %d, want 16000", updated.BasePrice)
	}

	status, err := svc.SyncStatus(ctx)
	if err != nil {
		t.Fatalf("sync status: %v", err)
	}
	if status.Pending != 1 {
		t.Fatalf("pending = %d, want 1", status.Pending)
	}
}

func TestSeedDemoIsIdempotent(t *testing.T) {
	svc := New(memory.New(), nil, nil, "outlet-1", 0, false)
	ctx := adminContext()

	if err := svc.SeedDemo(ctx); err != nil {
		t.Fatalf("first seed: %v", err)
	}
	if err := svc.SeedDemo(ctx); err != nil {
		t.Fatalf("second seed: %v", err)
	}

	stock, err := svc.CalculateStock(context.Background(), "prod-beras", "")
	if err != nil {
		t.Fatalf("stock: %v", err)
	}
	if stock != 500 {
		t.Fatalf("seed stock = %d, want 500 (no double restock)", stock)
	}

	products, err := svc.GetProductsWithModifiers(context.Background())
	if err != nil {
		t.Fatalf("products: %v", err)
	}
	if len(products) != 3 {
		t.Fatalf("products = %d, want 3", len(products))
	}
}

func TestReceiptBuilders(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	shift := openTestShift(t, svc, 500000)

	resp, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Items:         []domain.CheckoutItem{{ProductID: "prod-beras", Quantity: 1, ModifierIDs: []string{"mod-satuan-karung"}}},
		PaymentMethod: domain.PaymentCash,
		CashReceived:  500000,
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	doc, err := svc.BuildReceipt(ctx, resp.Transaction.ID)
	if err != nil {
		t.Fatalf("build receipt: %v", err)
	}
	if !strings.Contains(doc.PreviewText, "Rp 460.000") {
		t.Fatalf("receipt preview missing total:\n%s", doc.PreviewText)
	}

	if _, err := svc.CloseShift(ctx, domain.ShiftCloseRequest{ActualCash: 960000}); err != nil {
		t.Fatalf("close shift: %v", err)
	}
	report, err := svc.BuildShiftReport(ctx, shift.ID)
	if err != nil {
		t.Fatalf("build shift report: %v", err)
	}
	if !strings.Contains(report.PreviewText, shift.ShiftNumber) {
		t.Fatalf("z-report preview missing shift number:\n%s", report.PreviewText)
	}
}
