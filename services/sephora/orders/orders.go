// Package orders persists checkout state so a failed live call can degrade
// to the last known order instead of an error page.
package orders

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "embed"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

// localIDBase makes locally assigned order IDs look like upstream ones.
const localIDBase = 735700000000

type ShippingAddress struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Address1   string `json:"address1"`
	Address2   string `json:"address2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Phone      string `json:"phone"`
}

type Payment struct {
	CreditCardID   string `json:"creditCardId"`
	PaymentGroupID string `json:"paymentGroupId"`
	Last4          string `json:"last4"`
	CardholderName string `json:"cardholderName"`
}

type Order struct {
	OrderID     string           `json:"orderId"`
	ProfileID   string           `json:"profileId"`
	Status      string           `json:"status"`
	CreatedAt   string           `json:"createdAt"`
	SubmittedAt string           `json:"submittedAt,omitempty"`
	Shipping    *ShippingAddress `json:"shippingAddress,omitempty"`
	Payment     *Payment         `json:"payment,omitempty"`
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("apply orders schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Open opens (and initializes) a store at the given sqlite path. Use
// ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return NewStore(db)
}

func (s *Store) Create(ctx context.Context, orderID, profileID string) (Order, error) {
	order := Order{
		OrderID:   orderID,
		ProfileID: profileID,
		Status:    "initialized",
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO orders (order_id, profile_id, status, created_at)
		 VALUES (?, ?, ?, ?)`,
		order.OrderID, order.ProfileID, order.Status, order.CreatedAt,
	)
	if err != nil {
		return Order{}, fmt.Errorf("create order %s: %w", orderID, err)
	}
	return order, nil
}

// NextLocalID assigns an upstream-looking order ID for the degraded path
// where checkout init never reached the vendor.
func (s *Store) NextLocalID(ctx context.Context) (string, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&count)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", localIDBase+count), nil
}

func (s *Store) Get(ctx context.Context, orderID string) (Order, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT order_id, profile_id, status, created_at, submitted_at, shipping_json, payment_json
		 FROM orders WHERE order_id = ?`, orderID)
	order, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return Order{}, false, nil
	}
	if err != nil {
		return Order{}, false, err
	}
	return order, true, nil
}

// Latest returns the most recently created order; the checkout flow always
// operates on it.
func (s *Store) Latest(ctx context.Context) (Order, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT order_id, profile_id, status, created_at, submitted_at, shipping_json, payment_json
		 FROM orders ORDER BY rowid DESC LIMIT 1`)
	order, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return Order{}, false, nil
	}
	if err != nil {
		return Order{}, false, err
	}
	return order, true, nil
}

func (s *Store) List(ctx context.Context) ([]Order, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT order_id, profile_id, status, created_at, submitted_at, shipping_json, payment_json
		 FROM orders ORDER BY rowid ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, order)
	}
	return list, rows.Err()
}

func (s *Store) SetShipping(ctx context.Context, orderID string, addr ShippingAddress) error {
	buf, err := json.Marshal(addr)
	if err != nil {
		return err
	}
	return s.update(ctx, orderID,
		`UPDATE orders SET shipping_json = ?, status = 'shipping_set' WHERE order_id = ?`,
		string(buf), orderID)
}

func (s *Store) SetPayment(ctx context.Context, orderID string, payment Payment) error {
	buf, err := json.Marshal(payment)
	if err != nil {
		return err
	}
	return s.update(ctx, orderID,
		`UPDATE orders SET payment_json = ?, status = 'payment_added' WHERE order_id = ?`,
		string(buf), orderID)
}

func (s *Store) MarkSubmitted(ctx context.Context, orderID string) error {
	return s.update(ctx, orderID,
		`UPDATE orders SET status = 'submitted', submitted_at = ? WHERE order_id = ?`,
		time.Now().UTC().Format(time.RFC3339), orderID)
}

func (s *Store) update(ctx context.Context, orderID, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update order %s: %w", orderID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("order %s does not exist", orderID)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanOrder(row scannable) (Order, error) {
	var order Order
	var submittedAt, shippingJSON, paymentJSON sql.NullString
	err := row.Scan(
		&order.OrderID, &order.ProfileID, &order.Status, &order.CreatedAt,
		&submittedAt, &shippingJSON, &paymentJSON,
	)
	if err != nil {
		return Order{}, err
	}
	order.SubmittedAt = submittedAt.String
	if shippingJSON.Valid {
		var addr ShippingAddress
		if err := json.Unmarshal([]byte(shippingJSON.String), &addr); err != nil {
			return Order{}, fmt.Errorf("order %s shipping: %w", order.OrderID, err)
		}
		order.Shipping = &addr
	}
	if paymentJSON.Valid {
		var payment Payment
		if err := json.Unmarshal([]byte(paymentJSON.String), &payment); err != nil {
			return Order{}, fmt.Errorf("order %s payment: %w", order.OrderID, err)
		}
		order.Payment = &payment
	}
	return order, nil
}
