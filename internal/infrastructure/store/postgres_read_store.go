package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/eventshop/internal/apperr"
	"github.com/example/eventshop/internal/readmodel"
)

// PostgresReadStore persists the denormalised views (products_rm, orders_rm,
// categories_rm) and the write-through users table. Upserts are atomic and
// last-writer-wins; the event log stays authoritative.
type PostgresReadStore struct {
	db *sql.DB
}

func NewPostgresReadStore(db *sql.DB) *PostgresReadStore {
	return &PostgresReadStore{db: db}
}

// ---- products_rm ----

func (rs *PostgresReadStore) UpsertProduct(ctx context.Context, p *readmodel.Product) error {
	imageURLs, err := json.Marshal(p.ImageURLs)
	if err != nil {
		return fmt.Errorf("marshal image urls: %w", err)
	}
	_, err = rs.db.ExecContext(ctx, `
		INSERT INTO products_rm (id, name, description, price, category_id, stock, stock_status, status, image_urls, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			category_id = EXCLUDED.category_id,
			stock = EXCLUDED.stock,
			stock_status = EXCLUDED.stock_status,
			status = EXCLUDED.status,
			image_urls = EXCLUDED.image_urls,
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at
	`, p.ID, p.Name, p.Description, p.Price, nullString(p.CategoryID), p.Stock, p.StockStatus, p.Status, imageURLs, p.Version, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert product %s: %w", p.ID, err)
	}
	return nil
}

const productColumns = `id, name, description, price, category_id, stock, stock_status, status, image_urls, version, created_at, updated_at`

func (rs *PostgresReadStore) GetProduct(ctx context.Context, id string) (*readmodel.Product, bool, error) {
	row := rs.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products_rm WHERE id = $1`, id)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get product %s: %w", id, err)
	}
	return p, true, nil
}

func (rs *PostgresReadStore) DeleteProduct(ctx context.Context, id string) error {
	if _, err := rs.db.ExecContext(ctx, `DELETE FROM products_rm WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	return nil
}

// ListPublishedProducts returns the catalog view: published products only,
// optionally filtered by category or a name/description search.
func (rs *PostgresReadStore) ListPublishedProducts(ctx context.Context, f ProductFilter) ([]*readmodel.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products_rm WHERE status = 'PUBLISHED'`
	var args []any
	if f.CategoryID != "" {
		args = append(args, f.CategoryID)
		query += fmt.Sprintf(" AND category_id = $%d", len(args))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		query += fmt.Sprintf(" AND (name ILIKE $%d OR description ILIKE $%d)", len(args), len(args))
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
		if f.Offset > 0 {
			args = append(args, f.Offset)
			query += fmt.Sprintf(" OFFSET $%d", len(args))
		}
	}

	rows, err := rs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list published products: %w", err)
	}
	defer rows.Close()
	return scanProducts(rows)
}

// ListProducts returns every product regardless of status, for admin views.
func (rs *PostgresReadStore) ListProducts(ctx context.Context) ([]*readmodel.Product, error) {
	rows, err := rs.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products_rm ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()
	return scanProducts(rows)
}

func (rs *PostgresReadStore) CountProductsInCategory(ctx context.Context, categoryID string) (int, error) {
	var n int
	err := rs.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM products_rm WHERE category_id = $1`, categoryID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count products in category %s: %w", categoryID, err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*readmodel.Product, error) {
	var p readmodel.Product
	var categoryID sql.NullString
	var imageURLs []byte
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &categoryID, &p.Stock, &p.StockStatus, &p.Status, &imageURLs, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.CategoryID = categoryID.String
	if err := json.Unmarshal(imageURLs, &p.ImageURLs); err != nil {
		return nil, fmt.Errorf("unmarshal image urls for %s: %w", p.ID, err)
	}
	return &p, nil
}

func scanProducts(rows *sql.Rows) ([]*readmodel.Product, error) {
	var products []*readmodel.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

// ---- orders_rm ----

func (rs *PostgresReadStore) UpsertOrder(ctx context.Context, o *readmodel.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshal order items: %w", err)
	}
	address, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
	}
	_, err = rs.db.ExecContext(ctx, `
		INSERT INTO orders_rm (id, customer_id, items, shipping_address, payment_method, subtotal, shipping_fee, total, status, transaction_id, payment_code, payment_code_expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			items = EXCLUDED.items,
			shipping_address = EXCLUDED.shipping_address,
			payment_method = EXCLUDED.payment_method,
			subtotal = EXCLUDED.subtotal,
			shipping_fee = EXCLUDED.shipping_fee,
			total = EXCLUDED.total,
			status = EXCLUDED.status,
			transaction_id = EXCLUDED.transaction_id,
			payment_code = EXCLUDED.payment_code,
			payment_code_expires_at = EXCLUDED.payment_code_expires_at,
			updated_at = EXCLUDED.updated_at
	`, o.ID, o.CustomerID, items, address, o.PaymentMethod, o.Subtotal, o.ShippingFee, o.Total, o.Status,
		nullString(o.TransactionID), nullString(o.PaymentCode), nullTime(o.PaymentCodeExpiresAt), o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert order %s: %w", o.ID, err)
	}
	return nil
}

const orderColumns = `id, customer_id, items, shipping_address, payment_method, subtotal, shipping_fee, total, status, transaction_id, payment_code, payment_code_expires_at, created_at, updated_at`

func (rs *PostgresReadStore) GetOrder(ctx context.Context, id string) (*readmodel.Order, bool, error) {
	row := rs.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders_rm WHERE id = $1`, id)
	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get order %s: %w", id, err)
	}
	return o, true, nil
}

func (rs *PostgresReadStore) ListOrdersByCustomer(ctx context.Context, customerID string) ([]*readmodel.Order, error) {
	rows, err := rs.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders_rm WHERE customer_id = $1 ORDER BY created_at DESC`, customerID)
	if err != nil {
		return nil, fmt.Errorf("list orders for customer %s: %w", customerID, err)
	}
	defer rows.Close()
	return scanOrders(rows)
}

func (rs *PostgresReadStore) ListOrders(ctx context.Context) ([]*readmodel.Order, error) {
	rows, err := rs.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders_rm ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()
	return scanOrders(rows)
}

func scanOrder(row rowScanner) (*readmodel.Order, error) {
	var o readmodel.Order
	var items, address []byte
	var transactionID, paymentCode sql.NullString
	var codeExpiresAt sql.NullTime
	err := row.Scan(&o.ID, &o.CustomerID, &items, &address, &o.PaymentMethod, &o.Subtotal, &o.ShippingFee, &o.Total, &o.Status, &transactionID, &paymentCode, &codeExpiresAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshal items for %s: %w", o.ID, err)
	}
	if err := json.Unmarshal(address, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal address for %s: %w", o.ID, err)
	}
	o.TransactionID = transactionID.String
	o.PaymentCode = paymentCode.String
	if codeExpiresAt.Valid {
		t := codeExpiresAt.Time
		o.PaymentCodeExpiresAt = &t
	}
	return &o, nil
}

func scanOrders(rows *sql.Rows) ([]*readmodel.Order, error) {
	var orders []*readmodel.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

// ---- categories_rm ----

func (rs *PostgresReadStore) UpsertCategory(ctx context.Context, c *readmodel.Category) error {
	_, err := rs.db.ExecContext(ctx, `
		INSERT INTO categories_rm (id, name, slug, parent_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			slug = EXCLUDED.slug,
			parent_id = EXCLUDED.parent_id,
			updated_at = EXCLUDED.updated_at
	`, c.ID, c.Name, c.Slug, nullString(c.ParentID), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert category %s: %w", c.ID, err)
	}
	return nil
}

func (rs *PostgresReadStore) GetCategory(ctx context.Context, id string) (*readmodel.Category, bool, error) {
	var c readmodel.Category
	var parentID sql.NullString
	err := rs.db.QueryRowContext(ctx,
		`SELECT id, name, slug, parent_id, created_at, updated_at FROM categories_rm WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Slug, &parentID, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get category %s: %w", id, err)
	}
	c.ParentID = parentID.String
	return &c, true, nil
}

func (rs *PostgresReadStore) DeleteCategory(ctx context.Context, id string) error {
	if _, err := rs.db.ExecContext(ctx, `DELETE FROM categories_rm WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete category %s: %w", id, err)
	}
	return nil
}

func (rs *PostgresReadStore) ListCategories(ctx context.Context) ([]*readmodel.Category, error) {
	rows, err := rs.db.QueryContext(ctx,
		`SELECT id, name, slug, parent_id, created_at, updated_at FROM categories_rm ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []*readmodel.Category
	for rows.Next() {
		var c readmodel.Category
		var parentID sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &parentID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.ParentID = parentID.String
		categories = append(categories, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return categories, nil
}

// ---- users (write-through) ----

const userColumns = `id, email, password_hash, name, role, email_verified, failed_login_attempts, locked_until, created_at, updated_at`

// InsertUser creates the credentials row. A racing registration with the
// same email surfaces as DUPLICATE_EMAIL via the unique index.
func (rs *PostgresReadStore) InsertUser(ctx context.Context, u *readmodel.User) error {
	_, err := rs.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, name, role, email_verified, failed_login_attempts, locked_until, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, u.ID, u.Email, u.PasswordHash, u.Name, u.Role, u.EmailVerified, u.FailedLoginAttempts, nullTime(u.LockedUntil), u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.New(apperr.CodeDuplicateEmail, "email is already registered")
		}
		return fmt.Errorf("insert user %s: %w", u.ID, err)
	}
	return nil
}

func (rs *PostgresReadStore) GetUserByEmail(ctx context.Context, email string) (*readmodel.User, bool, error) {
	row := rs.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (rs *PostgresReadStore) GetUserByID(ctx context.Context, id string) (*readmodel.User, bool, error) {
	row := rs.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (rs *PostgresReadStore) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	_, err := rs.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		id, passwordHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update password for %s: %w", id, err)
	}
	return nil
}

// SetUserEmailVerified is the projection of the EmailVerified event.
func (rs *PostgresReadStore) SetUserEmailVerified(ctx context.Context, id string) error {
	_, err := rs.db.ExecContext(ctx,
		`UPDATE users SET email_verified = TRUE, updated_at = $2 WHERE id = $1`,
		id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark email verified for %s: %w", id, err)
	}
	return nil
}

// UpdateUserLoginState mirrors the replayed lockout counters onto the row.
func (rs *PostgresReadStore) UpdateUserLoginState(ctx context.Context, id string, failedAttempts int, lockedUntil *time.Time) error {
	_, err := rs.db.ExecContext(ctx,
		`UPDATE users SET failed_login_attempts = $2, locked_until = $3, updated_at = $4 WHERE id = $1`,
		id, failedAttempts, nullTime(lockedUntil), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update login state for %s: %w", id, err)
	}
	return nil
}

func (rs *PostgresReadStore) ListCustomers(ctx context.Context) ([]*readmodel.User, error) {
	rows, err := rs.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE role = 'CUSTOMER' ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var users []*readmodel.User
	for rows.Next() {
		u, ok, err := scanUserFrom(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		if ok {
			users = append(users, u)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

func scanUser(row rowScanner) (*readmodel.User, bool, error) {
	u, ok, err := scanUserFrom(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get user: %w", err)
	}
	return u, ok, nil
}

func scanUserFrom(row rowScanner) (*readmodel.User, bool, error) {
	var u readmodel.User
	var lockedUntil sql.NullTime
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.EmailVerified, &u.FailedLoginAttempts, &lockedUntil, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, false, err
	}
	if lockedUntil.Valid {
		t := lockedUntil.Time
		u.LockedUntil = &t
	}
	return &u, true, nil
}

// ---- helpers ----

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
