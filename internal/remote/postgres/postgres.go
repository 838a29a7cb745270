package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"warungpos/backend/internal/domain"
)

// Client is the server-side authority: a Postgres database keyed by the same
// IDs as the local store but speaking snake_case columns and timestamptz.
// All writes are upserts so that retried pushes stay idempotent.
type Client struct {
	db      *sql.DB
	storeID string
}

func New(ctx context.Context, databaseURL string, storeID string) (*Client, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Client{db: db, storeID: storeID}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

// millisToTime converts the local epoch-millisecond representation to a
// timestamptz value; zero stays NULL.
func millisToTime(millis int64) sql.NullTime {
	if millis == 0 {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: time.UnixMilli(millis).UTC(), Valid: true}
}

func timeToMillis(t sql.NullTime) int64 {
	if !t.Valid {
		return 0
	}
	return t.Time.UnixMilli()
}

func (c *Client) InsertTransaction(ctx context.Context, tx domain.Transaction) error {
	items, err := json.Marshal(tx.Items)
	if err != nil {
		return err
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO transactions (id, transaction_number, store_id, items, subtotal, tax, total,
			payment_method, cash_received, cash_change, status, shift_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (id) DO NOTHING
	`, tx.ID, tx.TransactionNumber, c.storeID, items, tx.Subtotal, tx.Tax, tx.Total,
		tx.PaymentMethod, tx.CashReceived, tx.CashChange, tx.Status, tx.ShiftID, millisToTime(tx.CreatedAt))
	return err
}

func (c *Client) UpsertShift(ctx context.Context, shift domain.ShiftLog) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO shift_logs (id, shift_number, store_id, opened_by, opened_at, closed_at,
			opening_cash, closing_cash, expected_cash, cash_difference,
			total_transactions, total_revenue, notes, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (id) DO UPDATE SET
			closed_at = excluded.closed_at,
			closing_cash = excluded.closing_cash,
			expected_cash = excluded.expected_cash,
			cash_difference = excluded.cash_difference,
			total_transactions = excluded.total_transactions,
			total_revenue = excluded.total_revenue,
			notes = excluded.notes,
			status = excluded.status
	`, shift.ID, shift.ShiftNumber, c.storeID, shift.OpenedBy, millisToTime(shift.OpenedAt), millisToTime(shift.ClosedAt),
		shift.OpeningCash, shift.ClosingCash, shift.ExpectedCash, shift.CashDifference,
		shift.TotalTransactions, shift.TotalRevenue, shift.Notes, shift.Status)
	return err
}

func (c *Client) UpsertProduct(ctx context.Context, product domain.Product) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO products (id, name, category_id, base_price, cost_price, stock, store_id,
			is_available, is_active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			category_id = excluded.category_id,
			base_price = excluded.base_price,
			cost_price = excluded.cost_price,
			stock = excluded.stock,
			is_available = excluded.is_available,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`, product.ID, product.Name, product.CategoryID, product.BasePrice, product.CostPrice, product.Stock,
		defaultString(product.StoreID, c.storeID), product.IsAvailable, product.IsActive,
		millisToTime(product.CreatedAt), millisToTime(product.UpdatedAt))
	return err
}

func (c *Client) UpsertCategory(ctx context.Context, category domain.Category) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, icon, display_order, is_active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			icon = excluded.icon,
			display_order = excluded.display_order,
			is_active = excluded.is_active
	`, category.ID, category.Name, category.Icon, category.DisplayOrder, category.IsActive, millisToTime(category.CreatedAt))
	return err
}

func (c *Client) FetchCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(icon, ''), display_order, is_active, created_at
		FROM categories
		ORDER BY display_order, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]domain.Category, 0, 32)
	for rows.Next() {
		var c domain.Category
		var createdAt sql.NullTime
		if err := rows.Scan(&c.ID, &c.Name, &c.Icon, &c.DisplayOrder, &c.IsActive, &createdAt); err != nil {
			return nil, err
		}
		c.CreatedAt = timeToMillis(createdAt)
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (c *Client) FetchProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, name, category_id, base_price, cost_price, stock, COALESCE(store_id, ''),
			is_available, is_active, created_at, updated_at
		FROM products
		ORDER BY category_id, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		var createdAt, updatedAt sql.NullTime
		if err := rows.Scan(&p.ID, &p.Name, &p.CategoryID, &p.BasePrice, &p.CostPrice, &p.Stock, &p.StoreID,
			&p.IsAvailable, &p.IsActive, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = timeToMillis(createdAt)
		p.UpdatedAt = timeToMillis(updatedAt)
		products = append(products, p)
	}
	return products, rows.Err()
}

// EnsureSchema creates the remote tables when they do not exist yet. Meant
// for first-run setups against an empty database.
func (c *Client) EnsureSchema(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, remoteSchema)
	return err
}

const remoteSchema = `
CREATE TABLE IF NOT EXISTS categories (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	icon          TEXT,
	display_order INTEGER NOT NULL DEFAULT 0,
	is_active     BOOLEAN NOT NULL DEFAULT true,
	created_at    TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS products (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	category_id  TEXT NOT NULL,
	base_price   BIGINT NOT NULL,
	cost_price   BIGINT NOT NULL DEFAULT 0,
	stock        INTEGER NOT NULL DEFAULT 0,
	store_id     TEXT,
	is_available BOOLEAN NOT NULL DEFAULT true,
	is_active    BOOLEAN NOT NULL DEFAULT true,
	created_at   TIMESTAMPTZ,
	updated_at   TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_products_category ON products(category_id);

CREATE TABLE IF NOT EXISTS transactions (
	id                 TEXT PRIMARY KEY,
	transaction_number TEXT NOT NULL,
	store_id           TEXT,
	items              JSONB NOT NULL,
	subtotal           BIGINT NOT NULL,
	tax                BIGINT NOT NULL DEFAULT 0,
	total              BIGINT NOT NULL,
	payment_method     TEXT NOT NULL,
	cash_received      BIGINT NOT NULL DEFAULT 0,
	cash_change        BIGINT NOT NULL DEFAULT 0,
	status             TEXT NOT NULL,
	shift_id           TEXT,
	created_at         TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_transactions_shift ON transactions(shift_id);
CREATE INDEX IF NOT EXISTS idx_transactions_created ON transactions(created_at);

CREATE TABLE IF NOT EXISTS shift_logs (
	id                 TEXT PRIMARY KEY,
	shift_number       TEXT NOT NULL,
	store_id           TEXT,
	opened_by          TEXT NOT NULL,
	opened_at          TIMESTAMPTZ,
	closed_at          TIMESTAMPTZ,
	opening_cash       BIGINT NOT NULL,
	closing_cash       BIGINT NOT NULL DEFAULT 0,
	expected_cash      BIGINT NOT NULL DEFAULT 0,
	cash_difference    BIGINT NOT NULL DEFAULT 0,
	total_transactions INTEGER NOT NULL DEFAULT 0,
	total_revenue      BIGINT NOT NULL DEFAULT 0,
	notes              TEXT,
	status             TEXT NOT NULL
);
`

func defaultString(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
