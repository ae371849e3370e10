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

// Addresses and wishlists are plain relational state owned by the customer
// profile handlers; they are not event-sourced.

// ---- addresses ----

const addressColumns = `id, user_id, name, postal_code, prefecture, city, line1, line2, phone, created_at, updated_at`

func (rs *PostgresReadStore) InsertAddress(ctx context.Context, a *readmodel.Address) error {
	_, err := rs.db.ExecContext(ctx, `
		INSERT INTO addresses (id, user_id, name, postal_code, prefecture, city, line1, line2, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, a.ID, a.UserID, a.Name, a.PostalCode, a.Prefecture, a.City, a.Line1, nullString(a.Line2), a.Phone, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert address %s: %w", a.ID, err)
	}
	return nil
}

// UpdateAddress rewrites the row, scoped to the owning user so one customer
// cannot touch another's book.
func (rs *PostgresReadStore) UpdateAddress(ctx context.Context, a *readmodel.Address) error {
	res, err := rs.db.ExecContext(ctx, `
		UPDATE addresses
		SET name = $3, postal_code = $4, prefecture = $5, city = $6, line1 = $7, line2 = $8, phone = $9, updated_at = $10
		WHERE id = $1 AND user_id = $2
	`, a.ID, a.UserID, a.Name, a.PostalCode, a.Prefecture, a.City, a.Line1, nullString(a.Line2), a.Phone, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update address %s: %w", a.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.New(apperr.CodeAddressNotFound, "address not found")
	}
	return nil
}

func (rs *PostgresReadStore) GetAddress(ctx context.Context, userID, id string) (*readmodel.Address, bool, error) {
	row := rs.db.QueryRowContext(ctx,
		`SELECT `+addressColumns+` FROM addresses WHERE id = $1 AND user_id = $2`, id, userID)
	a, err := scanAddress(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get address %s: %w", id, err)
	}
	return a, true, nil
}

// DeleteAddress is idempotent: deleting an absent row is not an error.
func (rs *PostgresReadStore) DeleteAddress(ctx context.Context, userID, id string) error {
	if _, err := rs.db.ExecContext(ctx,
		`DELETE FROM addresses WHERE id = $1 AND user_id = $2`, id, userID); err != nil {
		return fmt.Errorf("delete address %s: %w", id, err)
	}
	return nil
}

func (rs *PostgresReadStore) ListAddresses(ctx context.Context, userID string) ([]*readmodel.Address, error) {
	rows, err := rs.db.QueryContext(ctx,
		`SELECT `+addressColumns+` FROM addresses WHERE user_id = $1 ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list addresses for %s: %w", userID, err)
	}
	defer rows.Close()

	var addresses []*readmodel.Address
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		addresses = append(addresses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate addresses: %w", err)
	}
	return addresses, nil
}

func (rs *PostgresReadStore) CountAddresses(ctx context.Context, userID string) (int, error) {
	var n int
	err := rs.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM addresses WHERE user_id = $1`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count addresses for %s: %w", userID, err)
	}
	return n, nil
}

func scanAddress(row rowScanner) (*readmodel.Address, error) {
	var a readmodel.Address
	var line2 sql.NullString
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.PostalCode, &a.Prefecture, &a.City, &a.Line1, &line2, &a.Phone, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Line2 = line2.String
	return &a, nil
}

// ---- wishlists ----

// AddWishlistItem relies on the (user_id, product_id) primary key: a second
// add for the same pair surfaces as WISHLIST_DUPLICATE.
func (rs *PostgresReadStore) AddWishlistItem(ctx context.Context, userID, productID string) error {
	_, err := rs.db.ExecContext(ctx, `
		INSERT INTO wishlists (user_id, product_id, created_at)
		VALUES ($1, $2, $3)
	`, userID, productID, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.New(apperr.CodeWishlistDuplicate, "product is already on the wishlist")
		}
		return fmt.Errorf("add wishlist item %s/%s: %w", userID, productID, err)
	}
	return nil
}

func (rs *PostgresReadStore) RemoveWishlistItem(ctx context.Context, userID, productID string) error {
	if _, err := rs.db.ExecContext(ctx,
		`DELETE FROM wishlists WHERE user_id = $1 AND product_id = $2`, userID, productID); err != nil {
		return fmt.Errorf("remove wishlist item %s/%s: %w", userID, productID, err)
	}
	return nil
}

// ListWishlist joins each entry with its product view. Entries whose product
// no longer exists are dropped by the inner join.
func (rs *PostgresReadStore) ListWishlist(ctx context.Context, userID string) ([]*readmodel.WishlistItem, error) {
	rows, err := rs.db.QueryContext(ctx, `
		SELECT w.product_id, p.name, p.price, p.stock_status, p.image_urls, w.created_at
		FROM wishlists w
		JOIN products_rm p ON p.id = w.product_id
		WHERE w.user_id = $1
		ORDER BY w.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list wishlist for %s: %w", userID, err)
	}
	defer rows.Close()

	var items []*readmodel.WishlistItem
	for rows.Next() {
		var item readmodel.WishlistItem
		var imageURLs []byte
		if err := rows.Scan(&item.ProductID, &item.Name, &item.Price, &item.StockStatus, &imageURLs, &item.AddedAt); err != nil {
			return nil, fmt.Errorf("scan wishlist item: %w", err)
		}
		item.ImageURL = firstImageURL(imageURLs)
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wishlist: %w", err)
	}
	return items, nil
}

func firstImageURL(encoded []byte) string {
	var urls []string
	if err := json.Unmarshal(encoded, &urls); err != nil || len(urls) == 0 {
		return ""
	}
	return urls[0]
}
