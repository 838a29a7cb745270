package domain

import "encoding/json"

// All timestamps in this package are epoch milliseconds (the local model).
// The remote authority speaks ISO-8601; translation lives in internal/remote.
// Amounts are integer rupiah.

type Category struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Icon         string `json:"icon,omitempty"`
	DisplayOrder int    `json:"displayOrder"`
	IsActive     bool   `json:"isActive"`
	CreatedAt    int64  `json:"createdAt"`
}

type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	CategoryID  string `json:"categoryId"`
	BasePrice   int64  `json:"basePrice"`
	CostPrice   int64  `json:"costPrice"`
	Stock       int    `json:"stock"`
	StoreID     string `json:"storeId"`
	IsAvailable bool   `json:"isAvailable"`
	IsActive    bool   `json:"isActive"`
	CreatedAt   int64  `json:"createdAt"`
	UpdatedAt   int64  `json:"updatedAt"`
}

type ModifierGroup struct {
	ID            string `json:"id"`
	ProductID     string `json:"productId"`
	Name          string `json:"name"`
	SelectionType string `json:"selectionType"`
	MinSelection  int    `json:"minSelection"`
	MaxSelection  int    `json:"maxSelection"`
	IsRequired    bool   `json:"isRequired"`
	DisplayOrder  int    `json:"displayOrder"`
}

type Modifier struct {
	ID              string `json:"id"`
	ModifierGroupID string `json:"modifierGroupId"`
	Name            string `json:"name"`
	// PriceAdjustment may be negative, e.g. "Tanpa Nasi" subtracts from base price.
	PriceAdjustment int64   `json:"priceAdjustment"`
	IsDefault       bool    `json:"isDefault"`
	IsAvailable     bool    `json:"isAvailable"`
	DisplayOrder    int     `json:"displayOrder"`
	UnitMultiplier  float64 `json:"unitMultiplier,omitempty"`
}

// ModifierGroupWithModifiers is a catalog view: a group with its modifiers
// sorted by display order.
type ModifierGroupWithModifiers struct {
	ModifierGroup
	Modifiers []Modifier `json:"modifiers"`
}

// ProductWithModifiers is the catalog browsing shape consumed by the cashier UI.
type ProductWithModifiers struct {
	Product
	ModifierGroups []ModifierGroupWithModifiers `json:"modifierGroups"`
}

type SelectedModifier struct {
	GroupName       string `json:"groupName"`
	ModifierName    string `json:"modifierName"`
	PriceAdjustment int64  `json:"priceAdjustment"`
	// ModifierID links back to the catalog for per-modifier stock events.
	// It is not part of the receipt snapshot proper.
	ModifierID string `json:"modifierId,omitempty"`
}

type TransactionItem struct {
	ID            string `json:"id"`
	TransactionID string `json:"transactionId"`
	ProductID     string `json:"productId"`
	// ProductName and BasePrice are snapshots taken at cart-add time so that
	// historical receipts stay stable against later product edits.
	ProductName       string             `json:"productName"`
	Quantity          int                `json:"quantity"`
	BasePrice         int64              `json:"basePrice"`
	SelectedModifiers []SelectedModifier `json:"selectedModifiers"`
	Notes             string             `json:"notes,omitempty"`
	ItemTotal         int64              `json:"itemTotal"`
}

type Transaction struct {
	ID                string            `json:"id"`
	TransactionNumber string            `json:"transactionNumber"`
	Items             []TransactionItem `json:"items"`
	Subtotal          int64             `json:"subtotal"`
	Tax               int64             `json:"tax"`
	Total             int64             `json:"total"`
	PaymentMethod     string            `json:"paymentMethod"`
	CashReceived      int64             `json:"cashReceived,omitempty"`
	CashChange        int64             `json:"cashChange,omitempty"`
	Status            string            `json:"status"`
	ShiftID           string            `json:"shiftId"`
	CreatedAt         int64             `json:"createdAt"`
	SyncedToServer    bool              `json:"syncedToServer"`
}

// InventoryEvent is append-only. Stock for any (product, modifier) pair is the
// running sum of quantity changes; events are never edited, corrections are
// new adjustment events.
type InventoryEvent struct {
	ID             string            `json:"id"`
	EventType      string            `json:"eventType"`
	ProductID      string            `json:"productId"`
	ModifierID     string            `json:"modifierId,omitempty"`
	QuantityChange int               `json:"quantityChange"`
	Timestamp      int64             `json:"timestamp"`
	TransactionID  string            `json:"transactionId,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// SyncQueueEntry is one not-yet-acknowledged local mutation. Payload is the
// remote-bound snapshot, decoded per EntityType.
type SyncQueueEntry struct {
	ID         string          `json:"id"`
	Action     string          `json:"action"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  int64           `json:"createdAt"`
	Attempts   int             `json:"attempts"`
	LastError  string          `json:"lastError,omitempty"`
}

type ShiftLog struct {
	ID           string `json:"id"`
	ShiftNumber  string `json:"shiftNumber"`
	OpenedBy     string `json:"openedBy"`
	OpenedAt     int64  `json:"openedAt"`
	ClosedAt     int64  `json:"closedAt,omitempty"`
	OpeningCash  int64  `json:"openingCash"`
	ClosingCash  int64  `json:"closingCash,omitempty"`
	ExpectedCash int64  `json:"expectedCash,omitempty"`
	// CashDifference = closingCash - expectedCash. Negative means missing cash.
	CashDifference    int64  `json:"cashDifference,omitempty"`
	TotalTransactions int    `json:"totalTransactions"`
	TotalRevenue      int64  `json:"totalRevenue"`
	Notes             string `json:"notes,omitempty"`
	Status            string `json:"status"`
}

// ==================== requests / responses ====================

type ShiftOpenRequest struct {
	CashierName string `json:"cashierName"`
	OpeningCash int64  `json:"openingCash"`
}

type ShiftCloseRequest struct {
	ActualCash int64  `json:"actualCash"`
	Notes      string `json:"notes,omitempty"`
}

type CheckoutItem struct {
	ProductID   string   `json:"productId"`
	Quantity    int      `json:"quantity"`
	ModifierIDs []string `json:"modifierIds,omitempty"`
	Notes       string   `json:"notes,omitempty"`
}

type CheckoutRequest struct {
	Items         []CheckoutItem `json:"items"`
	PaymentMethod string         `json:"paymentMethod"`
	CashReceived  int64          `json:"cashReceived,omitempty"`
}

type CheckoutResponse struct {
	Transaction Transaction `json:"transaction"`
	CashChange  int64       `json:"cashChange"`
}

type InventoryEventRequest struct {
	EventType      string            `json:"eventType"`
	ProductID      string            `json:"productId"`
	ModifierID     string            `json:"modifierId,omitempty"`
	QuantityChange int               `json:"quantityChange"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

type CategoryCreateRequest struct {
	Name         string `json:"name"`
	Icon         string `json:"icon,omitempty"`
	DisplayOrder int    `json:"displayOrder"`
}

type ProductCreateRequest struct {
	Name        string `json:"name"`
	CategoryID  string `json:"categoryId"`
	BasePrice   int64  `json:"basePrice"`
	CostPrice   int64  `json:"costPrice"`
	Stock       int    `json:"stock"`
	IsAvailable bool   `json:"isAvailable"`
}

type ProductUpdateRequest struct {
	Name        *string `json:"name,omitempty"`
	CategoryID  *string `json:"categoryId,omitempty"`
	BasePrice   *int64  `json:"basePrice,omitempty"`
	CostPrice   *int64  `json:"costPrice,omitempty"`
	IsAvailable *bool   `json:"isAvailable,omitempty"`
	IsActive    *bool   `json:"isActive,omitempty"`
}

type SyncStatus struct {
	Pending       int    `json:"pending"`
	RemoteEnabled bool   `json:"remoteEnabled"`
	OldestEntryAt int64  `json:"oldestEntryAt,omitempty"`
	LastError     string `json:"lastError,omitempty"`
}

type LoginRequest struct {
	PIN string `json:"pin"`
}

type LoginResponse struct {
	AccessToken string `json:"accessToken"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expiresAt"`
}

type Actor struct {
	Name string
	Role string
}

// ==================== constants ====================

const (
	PaymentCash   = "cash"
	PaymentQRIS   = "qris"
	PaymentDebit  = "debit"
	PaymentCredit = "credit"
	// PaymentKasbon records a debt instead of immediate cash settlement.
	PaymentKasbon = "kasbon"
)

const (
	TxStatusCompleted = "completed"
	TxStatusPending   = "pending"
	TxStatusCancelled = "cancelled"
)

const (
	EventSale       = "sale"
	EventRestock    = "restock"
	EventAdjustment = "adjustment"
	EventWaste      = "waste"
)

const (
	SyncActionCreate = "create"
	SyncActionUpdate = "update"
	SyncActionDelete = "delete"
)

const (
	EntityTransaction = "transaction"
	EntityShift       = "shift"
	EntityProduct     = "product"
	EntityCategory    = "category"
)

const (
	ShiftStatusOpen   = "open"
	ShiftStatusClosed = "closed"
)

const (
	SelectionSingle   = "single"
	SelectionMultiple = "multiple"
)

func IsSupportedPaymentMethod(method string) bool {
	switch method {
	case PaymentCash, PaymentQRIS, PaymentDebit, PaymentCredit, PaymentKasbon:
		return true
	}
	return false
}

func IsSupportedEventType(eventType string) bool {
	switch eventType {
	case EventSale, EventRestock, EventAdjustment, EventWaste:
		return true
	}
	return false
}
