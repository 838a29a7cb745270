package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/store"
)

// Store is the durable Local Store: a file-backed, schema-versioned SQLite
// database. Every write is local-only and committed before the call returns;
// the multi-entity checkout write runs inside a single SQL transaction.
type Store struct {
	db *sql.DB
}

// schemaVersion is tracked via PRAGMA user_version. Bump it together with a
// new migration step in migrate.
const schemaVersion = 1

func New(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrStorageUnavailable, err)
	}

	// SQLite serializes writers; a single connection avoids SQLITE_BUSY
	// between the checkout write and the sync worker's queue reads.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", store.ErrStorageUnavailable, err)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("%w: %v", store.ErrStorageUnavailable, err)
	}
	if version >= schemaVersion {
		return nil
	}

	if version < 1 {
		if _, err := s.db.ExecContext(ctx, schemaV1); err != nil {
			return fmt.Errorf("apply schema v1: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, schemaVersion))
	return err
}

const schemaV1 = `
CREATE TABLE IF NOT EXISTS categories (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	icon          TEXT NOT NULL DEFAULT '',
	display_order INTEGER NOT NULL DEFAULT 0,
	is_active     INTEGER NOT NULL DEFAULT 1,
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_categories_display_order ON categories(display_order);

CREATE TABLE IF NOT EXISTS products (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	category_id  TEXT NOT NULL,
	base_price   INTEGER NOT NULL,
	cost_price   INTEGER NOT NULL DEFAULT 0,
	stock        INTEGER NOT NULL DEFAULT 0,
	store_id     TEXT NOT NULL DEFAULT '',
	is_available INTEGER NOT NULL DEFAULT 1,
	is_active    INTEGER NOT NULL DEFAULT 1,
	created_at   INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_products_category ON products(category_id);
CREATE INDEX IF NOT EXISTS idx_products_available ON products(is_available);
CREATE INDEX IF NOT EXISTS idx_products_updated ON products(updated_at);

CREATE TABLE IF NOT EXISTS modifier_groups (
	id             TEXT PRIMARY KEY,
	product_id     TEXT NOT NULL,
	name           TEXT NOT NULL,
	selection_type TEXT NOT NULL,
	min_selection  INTEGER NOT NULL DEFAULT 0,
	max_selection  INTEGER NOT NULL DEFAULT 0,
	is_required    INTEGER NOT NULL DEFAULT 0,
	display_order  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_modifier_groups_product ON modifier_groups(product_id, display_order);

CREATE TABLE IF NOT EXISTS modifiers (
	id               TEXT PRIMARY KEY,
	modifier_group_id TEXT NOT NULL,
	name             TEXT NOT NULL,
	price_adjustment INTEGER NOT NULL DEFAULT 0,
	is_default       INTEGER NOT NULL DEFAULT 0,
	is_available     INTEGER NOT NULL DEFAULT 1,
	display_order    INTEGER NOT NULL DEFAULT 0,
	unit_multiplier  REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_modifiers_group ON modifiers(modifier_group_id, display_order);
CREATE INDEX IF NOT EXISTS idx_modifiers_available ON modifiers(is_available);

CREATE TABLE IF NOT EXISTS transactions (
	id                 TEXT PRIMARY KEY,
	transaction_number TEXT NOT NULL,
	items              TEXT NOT NULL,
	subtotal           INTEGER NOT NULL,
	tax                INTEGER NOT NULL DEFAULT 0,
	total              INTEGER NOT NULL,
	payment_method     TEXT NOT NULL,
	cash_received      INTEGER NOT NULL DEFAULT 0,
	cash_change        INTEGER NOT NULL DEFAULT 0,
	status             TEXT NOT NULL,
	shift_id           TEXT NOT NULL,
	created_at         INTEGER NOT NULL,
	synced_to_server   INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_transactions_number ON transactions(transaction_number);
CREATE INDEX IF NOT EXISTS idx_transactions_shift ON transactions(shift_id);
CREATE INDEX IF NOT EXISTS idx_transactions_created ON transactions(created_at);
CREATE INDEX IF NOT EXISTS idx_transactions_synced ON transactions(synced_to_server);

CREATE TABLE IF NOT EXISTS inventory_events (
	id              TEXT PRIMARY KEY,
	event_type      TEXT NOT NULL,
	product_id      TEXT NOT NULL,
	modifier_id     TEXT NOT NULL DEFAULT '',
	quantity_change INTEGER NOT NULL,
	timestamp       INTEGER NOT NULL,
	transaction_id  TEXT NOT NULL DEFAULT '',
	metadata        TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_inventory_events_product ON inventory_events(product_id);
CREATE INDEX IF NOT EXISTS idx_inventory_events_modifier ON inventory_events(modifier_id);
CREATE INDEX IF NOT EXISTS idx_inventory_events_timestamp ON inventory_events(timestamp);
CREATE INDEX IF NOT EXISTS idx_inventory_events_type ON inventory_events(event_type);

CREATE TABLE IF NOT EXISTS sync_queue (
	id          TEXT PRIMARY KEY,
	action      TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id   TEXT NOT NULL,
	payload     TEXT NOT NULL,
	created_at  INTEGER NOT NULL,
	attempts    INTEGER NOT NULL DEFAULT 0,
	last_error  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_sync_queue_entity_type ON sync_queue(entity_type);
CREATE INDEX IF NOT EXISTS idx_sync_queue_created ON sync_queue(created_at);
CREATE INDEX IF NOT EXISTS idx_sync_queue_attempts ON sync_queue(attempts);

CREATE TABLE IF NOT EXISTS shift_logs (
	id                 TEXT PRIMARY KEY,
	shift_number       TEXT NOT NULL,
	opened_by          TEXT NOT NULL,
	opened_at          INTEGER NOT NULL,
	closed_at          INTEGER NOT NULL DEFAULT 0,
	opening_cash       INTEGER NOT NULL,
	closing_cash       INTEGER NOT NULL DEFAULT 0,
	expected_cash      INTEGER NOT NULL DEFAULT 0,
	cash_difference    INTEGER NOT NULL DEFAULT 0,
	total_transactions INTEGER NOT NULL DEFAULT 0,
	total_revenue      INTEGER NOT NULL DEFAULT 0,
	notes              TEXT NOT NULL DEFAULT '',
	status             TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_shift_logs_number ON shift_logs(shift_number);
CREATE INDEX IF NOT EXISTS idx_shift_logs_status ON shift_logs(status);
CREATE INDEX IF NOT EXISTS idx_shift_logs_opened ON shift_logs(opened_at);

-- Structural guard: at most one shift may be open at any time.
CREATE UNIQUE INDEX IF NOT EXISTS idx_shift_logs_single_open ON shift_logs(status) WHERE status = 'open';
`

// ==================== categories ====================

func (s *Store) ListCategories(ctx context.Context, includeInactive bool) ([]domain.Category, error) {
	query := `
		SELECT id, name, icon, display_order, is_active, created_at
		FROM categories`
	if !includeInactive {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY display_order, id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]domain.Category, 0, 16)
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Icon, &c.DisplayOrder, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *Store) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	var c domain.Category
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, icon, display_order, is_active, created_at
		FROM categories WHERE id = ?
	`, id).Scan(&c.ID, &c.Name, &c.Icon, &c.DisplayOrder, &c.IsActive, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) PutCategory(ctx context.Context, category domain.Category) error {
	if category.ID == "" || category.Name == "" {
		return store.ErrValidation
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, icon, display_order, is_active, created_at)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, icon = excluded.icon,
			display_order = excluded.display_order, is_active = excluded.is_active
	`, category.ID, category.Name, category.Icon, category.DisplayOrder, category.IsActive, category.CreatedAt)
	return err
}

func (s *Store) BulkPutCategories(ctx context.Context, categories []domain.Category) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, c := range categories {
			if c.ID == "" {
				return store.ErrValidation
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO categories (id, name, icon, display_order, is_active, created_at)
				VALUES (?,?,?,?,?,?)
				ON CONFLICT(id) DO UPDATE SET
					name = excluded.name, icon = excluded.icon,
					display_order = excluded.display_order, is_active = excluded.is_active
			`, c.ID, c.Name, c.Icon, c.DisplayOrder, c.IsActive, c.CreatedAt)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// ==================== products ====================

const productColumns = `id, name, category_id, base_price, cost_price, stock, store_id, is_available, is_active, created_at, updated_at`

func scanProduct(scanner interface{ Scan(...any) error }) (domain.Product, error) {
	var p domain.Product
	err := scanner.Scan(&p.ID, &p.Name, &p.CategoryID, &p.BasePrice, &p.CostPrice, &p.Stock,
		&p.StoreID, &p.IsAvailable, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *Store) ListProducts(ctx context.Context, includeInactive bool) ([]domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products`
	if !includeInactive {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY category_id, name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) ListProductsByCategory(ctx context.Context, categoryID string) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+` FROM products
		WHERE category_id = ? AND is_active = 1
		ORDER BY name
	`, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 16)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) PutProduct(ctx context.Context, product domain.Product) error {
	if product.ID == "" || product.Name == "" || product.BasePrice < 0 {
		return store.ErrValidation
	}
	_, err := s.db.ExecContext(ctx, upsertProductSQL,
		product.ID, product.Name, product.CategoryID, product.BasePrice, product.CostPrice,
		product.Stock, product.StoreID, product.IsAvailable, product.IsActive, product.CreatedAt, product.UpdatedAt)
	return err
}

const upsertProductSQL = `
	INSERT INTO products (` + productColumns + `)
	VALUES (?,?,?,?,?,?,?,?,?,?,?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name, category_id = excluded.category_id,
		base_price = excluded.base_price, cost_price = excluded.cost_price,
		stock = excluded.stock, store_id = excluded.store_id,
		is_available = excluded.is_available, is_active = excluded.is_active,
		updated_at = excluded.updated_at`

func (s *Store) BulkPutProducts(ctx context.Context, products []domain.Product) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, p := range products {
			if p.ID == "" {
				return store.ErrValidation
			}
			_, err := tx.ExecContext(ctx, upsertProductSQL,
				p.ID, p.Name, p.CategoryID, p.BasePrice, p.CostPrice,
				p.Stock, p.StoreID, p.IsAvailable, p.IsActive, p.CreatedAt, p.UpdatedAt)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// ==================== modifier catalog ====================

func (s *Store) ListModifierGroupsByProduct(ctx context.Context, productID string) ([]domain.ModifierGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, name, selection_type, min_selection, max_selection, is_required, display_order
		FROM modifier_groups
		WHERE product_id = ?
		ORDER BY display_order, id
	`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := make([]domain.ModifierGroup, 0, 4)
	for rows.Next() {
		var g domain.ModifierGroup
		if err := rows.Scan(&g.ID, &g.ProductID, &g.Name, &g.SelectionType, &g.MinSelection, &g.MaxSelection, &g.IsRequired, &g.DisplayOrder); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (s *Store) ListModifiersByGroup(ctx context.Context, groupID string) ([]domain.Modifier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, modifier_group_id, name, price_adjustment, is_default, is_available, display_order, unit_multiplier
		FROM modifiers
		WHERE modifier_group_id = ?
		ORDER BY display_order, id
	`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	modifiers := make([]domain.Modifier, 0, 8)
	for rows.Next() {
		var m domain.Modifier
		if err := rows.Scan(&m.ID, &m.ModifierGroupID, &m.Name, &m.PriceAdjustment, &m.IsDefault, &m.IsAvailable, &m.DisplayOrder, &m.UnitMultiplier); err != nil {
			return nil, err
		}
		modifiers = append(modifiers, m)
	}
	return modifiers, rows.Err()
}

func (s *Store) BulkPutModifierGroups(ctx context.Context, groups []domain.ModifierGroup) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, g := range groups {
			if g.ID == "" || g.ProductID == "" {
				return store.ErrValidation
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO modifier_groups (id, product_id, name, selection_type, min_selection, max_selection, is_required, display_order)
				VALUES (?,?,?,?,?,?,?,?)
				ON CONFLICT(id) DO UPDATE SET
					product_id = excluded.product_id, name = excluded.name,
					selection_type = excluded.selection_type, min_selection = excluded.min_selection,
					max_selection = excluded.max_selection, is_required = excluded.is_required,
					display_order = excluded.display_order
			`, g.ID, g.ProductID, g.Name, g.SelectionType, g.MinSelection, g.MaxSelection, g.IsRequired, g.DisplayOrder)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) BulkPutModifiers(ctx context.Context, modifiers []domain.Modifier) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, m := range modifiers {
			if m.ID == "" || m.ModifierGroupID == "" {
				return store.ErrValidation
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO modifiers (id, modifier_group_id, name, price_adjustment, is_default, is_available, display_order, unit_multiplier)
				VALUES (?,?,?,?,?,?,?,?)
				ON CONFLICT(id) DO UPDATE SET
					modifier_group_id = excluded.modifier_group_id, name = excluded.name,
					price_adjustment = excluded.price_adjustment, is_default = excluded.is_default,
					is_available = excluded.is_available, display_order = excluded.display_order,
					unit_multiplier = excluded.unit_multiplier
			`, m.ID, m.ModifierGroupID, m.Name, m.PriceAdjustment, m.IsDefault, m.IsAvailable, m.DisplayOrder, m.UnitMultiplier)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// ==================== transactions ====================

func (s *Store) CreateTransaction(ctx context.Context, tx domain.Transaction, events []domain.InventoryEvent, entry domain.SyncQueueEntry) error {
	if tx.ID == "" || len(tx.Items) == 0 {
		return store.ErrValidation
	}

	items, err := json.Marshal(tx.Items)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(sqlTx *sql.Tx) error {
		_, err := sqlTx.ExecContext(ctx, `
			INSERT INTO transactions (id, transaction_number, items, subtotal, tax, total, payment_method,
				cash_received, cash_change, status, shift_id, created_at, synced_to_server)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
		`, tx.ID, tx.TransactionNumber, string(items), tx.Subtotal, tx.Tax, tx.Total, tx.PaymentMethod,
			tx.CashReceived, tx.CashChange, tx.Status, tx.ShiftID, tx.CreatedAt, tx.SyncedToServer)
		if err != nil {
			if isUniqueViolation(err) {
				return store.ErrValidation
			}
			return err
		}

		for _, event := range events {
			if err := insertInventoryEvent(ctx, sqlTx, event); err != nil {
				return err
			}
		}

		return insertSyncEntry(ctx, sqlTx, entry)
	})
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	tx, err := scanTransaction(s.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions WHERE id = ?
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &tx, nil
}

const transactionColumns = `id, transaction_number, items, subtotal, tax, total, payment_method, cash_received, cash_change, status, shift_id, created_at, synced_to_server`

func scanTransaction(scanner interface{ Scan(...any) error }) (domain.Transaction, error) {
	var tx domain.Transaction
	var items string
	err := scanner.Scan(&tx.ID, &tx.TransactionNumber, &items, &tx.Subtotal, &tx.Tax, &tx.Total,
		&tx.PaymentMethod, &tx.CashReceived, &tx.CashChange, &tx.Status, &tx.ShiftID, &tx.CreatedAt, &tx.SyncedToServer)
	if err != nil {
		return tx, err
	}
	if items != "" {
		if err := json.Unmarshal([]byte(items), &tx.Items); err != nil {
			return tx, err
		}
	}
	return tx, nil
}

func (s *Store) ListTransactionsByShift(ctx context.Context, shiftID string) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE shift_id = ?
		ORDER BY created_at, id
	`, shiftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.Transaction, 0, 32)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, tx)
	}
	return result, rows.Err()
}

func (s *Store) MarkTransactionSynced(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE transactions SET synced_to_server = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ==================== inventory ledger ====================

func insertInventoryEvent(ctx context.Context, tx *sql.Tx, event domain.InventoryEvent) error {
	if event.ID == "" || event.ProductID == "" {
		return store.ErrValidation
	}
	metadata := ""
	if len(event.Metadata) > 0 {
		raw, err := json.Marshal(event.Metadata)
		if err != nil {
			return err
		}
		metadata = string(raw)
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO inventory_events (id, event_type, product_id, modifier_id, quantity_change, timestamp, transaction_id, metadata)
		VALUES (?,?,?,?,?,?,?,?)
	`, event.ID, event.EventType, event.ProductID, event.ModifierID, event.QuantityChange, event.Timestamp, event.TransactionID, metadata)
	return err
}

func (s *Store) AppendInventoryEvents(ctx context.Context, events []domain.InventoryEvent) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, event := range events {
			if err := insertInventoryEvent(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) SumStock(ctx context.Context, productID string, modifierID string) (int, error) {
	query := `SELECT COALESCE(SUM(quantity_change), 0) FROM inventory_events WHERE product_id = ?`
	args := []any{productID}
	if modifierID != "" {
		query += ` AND modifier_id = ?`
		args = append(args, modifierID)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) ListInventoryEvents(ctx context.Context, productID string, limit int) ([]domain.InventoryEvent, error) {
	if limit < 1 {
		limit = 100
	}
	query := `
		SELECT id, event_type, product_id, modifier_id, quantity_change, timestamp, transaction_id, metadata
		FROM inventory_events`
	args := make([]any, 0, 2)
	if productID != "" {
		query += ` WHERE product_id = ?`
		args = append(args, productID)
	}
	query += ` ORDER BY timestamp DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]domain.InventoryEvent, 0, limit)
	for rows.Next() {
		var e domain.InventoryEvent
		var metadata string
		if err := rows.Scan(&e.ID, &e.EventType, &e.ProductID, &e.ModifierID, &e.QuantityChange, &e.Timestamp, &e.TransactionID, &metadata); err != nil {
			return nil, err
		}
		if metadata != "" {
			if err := json.Unmarshal([]byte(metadata), &e.Metadata); err != nil {
				return nil, err
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// ==================== sync queue ====================

func insertSyncEntry(ctx context.Context, tx *sql.Tx, entry domain.SyncQueueEntry) error {
	if entry.ID == "" || entry.EntityType == "" {
		return store.ErrValidation
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO sync_queue (id, action, entity_type, entity_id, payload, created_at, attempts, last_error)
		VALUES (?,?,?,?,?,?,?,?)
	`, entry.ID, entry.Action, entry.EntityType, entry.EntityID, string(entry.Payload), entry.CreatedAt, entry.Attempts, entry.LastError)
	return err
}

func (s *Store) EnqueueSync(ctx context.Context, entry domain.SyncQueueEntry) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return insertSyncEntry(ctx, tx, entry)
	})
}

// OldestSyncEntry orders on rowid, not created_at: entries written in the same
// millisecond must still drain in insertion order.
func (s *Store) OldestSyncEntry(ctx context.Context) (*domain.SyncQueueEntry, error) {
	var entry domain.SyncQueueEntry
	var payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, action, entity_type, entity_id, payload, created_at, attempts, last_error
		FROM sync_queue
		ORDER BY rowid
		LIMIT 1
	`).Scan(&entry.ID, &entry.Action, &entry.EntityType, &entry.EntityID, &payload, &entry.CreatedAt, &entry.Attempts, &entry.LastError)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	entry.Payload = json.RawMessage(payload)
	return &entry, nil
}

func (s *Store) DeleteSyncEntry(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) RecordSyncFailure(ctx context.Context, id string, message string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sync_queue SET attempts = attempts + 1, last_error = ? WHERE id = ?
	`, message, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CountSyncEntries(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ==================== shifts ====================

const shiftColumns = `id, shift_number, opened_by, opened_at, closed_at, opening_cash, closing_cash, expected_cash, cash_difference, total_transactions, total_revenue, notes, status`

func scanShift(scanner interface{ Scan(...any) error }) (domain.ShiftLog, error) {
	var shift domain.ShiftLog
	err := scanner.Scan(&shift.ID, &shift.ShiftNumber, &shift.OpenedBy, &shift.OpenedAt, &shift.ClosedAt,
		&shift.OpeningCash, &shift.ClosingCash, &shift.ExpectedCash, &shift.CashDifference,
		&shift.TotalTransactions, &shift.TotalRevenue, &shift.Notes, &shift.Status)
	return shift, err
}

func (s *Store) CreateShift(ctx context.Context, shift domain.ShiftLog) (*domain.ShiftLog, error) {
	if shift.ID == "" || shift.OpenedBy == "" || shift.OpeningCash < 0 {
		return nil, store.ErrValidation
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shift_logs (`+shiftColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
	`, shift.ID, shift.ShiftNumber, shift.OpenedBy, shift.OpenedAt, shift.ClosedAt,
		shift.OpeningCash, shift.ClosingCash, shift.ExpectedCash, shift.CashDifference,
		shift.TotalTransactions, shift.TotalRevenue, shift.Notes, shift.Status)
	if err != nil {
		// The partial unique index on status='open' makes a second concurrent
		// open shift structurally impossible.
		if isUniqueViolation(err) {
			return nil, store.ErrShiftAlreadyOpen
		}
		return nil, err
	}

	created := shift
	return &created, nil
}

func (s *Store) GetOpenShift(ctx context.Context) (*domain.ShiftLog, error) {
	shift, err := scanShift(s.db.QueryRowContext(ctx, `
		SELECT `+shiftColumns+` FROM shift_logs WHERE status = ? LIMIT 1
	`, domain.ShiftStatusOpen))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &shift, nil
}

func (s *Store) GetShift(ctx context.Context, id string) (*domain.ShiftLog, error) {
	shift, err := scanShift(s.db.QueryRowContext(ctx, `
		SELECT `+shiftColumns+` FROM shift_logs WHERE id = ?
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &shift, nil
}

func (s *Store) UpdateShift(ctx context.Context, shift domain.ShiftLog) (*domain.ShiftLog, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE shift_logs SET
			shift_number = ?, opened_by = ?, opened_at = ?, closed_at = ?,
			opening_cash = ?, closing_cash = ?, expected_cash = ?, cash_difference = ?,
			total_transactions = ?, total_revenue = ?, notes = ?, status = ?
		WHERE id = ?
	`, shift.ShiftNumber, shift.OpenedBy, shift.OpenedAt, shift.ClosedAt,
		shift.OpeningCash, shift.ClosingCash, shift.ExpectedCash, shift.CashDifference,
		shift.TotalTransactions, shift.TotalRevenue, shift.Notes, shift.Status, shift.ID)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := shift
	return &updated, nil
}

func (s *Store) CountShiftsOpenedSince(ctx context.Context, sinceMillis int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM shift_logs WHERE opened_at >= ?
	`, sinceMillis).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ==================== helpers ====================

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrStorageUnavailable, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
