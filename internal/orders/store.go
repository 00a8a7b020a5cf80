package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct{ DB *pgxpool.Pool }

// PlaceOrder runs the whole placement as one transaction: per item it locks
// the part row (FOR UPDATE), checks stock, decrements, and freezes the line
// total at the part's current price. Any failure rolls back every decrement
// already applied for this order.
func (s *Store) PlaceOrder(ctx context.Context, items []ItemRequest) (*Order, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	orderID := uuid.NewString()
	lines := make([]LineItem, 0, len(items))

	for _, it := range items {
		var name string
		var priceCents int64
		var stock int
		err := tx.QueryRow(ctx,
			`SELECT name, price_cents, stock_quantity FROM car_parts WHERE id=$1 FOR UPDATE`,
			it.PartID,
		).Scan(&name, &priceCents, &stock)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &PartNotFoundError{PartID: it.PartID}
		}
		if err != nil {
			return nil, err
		}
		if stock < it.Qty {
			return nil, &InsufficientStockError{PartName: name, Requested: it.Qty, Available: stock}
		}
		if _, err := tx.Exec(ctx,
			`UPDATE car_parts SET stock_quantity = stock_quantity - $2, updated_at = now() WHERE id=$1`,
			it.PartID, it.Qty,
		); err != nil {
			return nil, err
		}
		lines = append(lines, LineItem{
			ID:         uuid.NewString(),
			OrderID:    orderID,
			PartID:     it.PartID,
			Qty:        it.Qty,
			TotalCents: priceCents * int64(it.Qty),
		})
	}

	var order Order
	err = tx.QueryRow(ctx,
		`INSERT INTO orders(id, status) VALUES ($1, $2) RETURNING id, status, created_at, updated_at`,
		orderID, StatusPending,
	).Scan(&order.ID, &order.Status, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, err
	}

	for _, li := range lines {
		if _, err := tx.Exec(ctx,
			`INSERT INTO order_items(id, order_id, car_part_id, quantity, total_cents)
			 VALUES ($1,$2,$3,$4,$5)`,
			li.ID, li.OrderID, li.PartID, li.Qty, li.TotalCents,
		); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	order.Items = lines
	return &order, nil
}

func (s *Store) Get(ctx context.Context, id string) (*Order, error) {
	var o Order
	err := s.DB.QueryRow(ctx,
		`SELECT id, status, created_at, updated_at FROM orders WHERE id=$1`, id,
	).Scan(&o.ID, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	items, err := s.itemsFor(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func (s *Store) itemsFor(ctx context.Context, orderID string) ([]LineItem, error) {
	rows, err := s.DB.Query(ctx,
		`SELECT id, order_id, car_part_id, quantity, total_cents
		 FROM order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LineItem
	for rows.Next() {
		var li LineItem
		if err := rows.Scan(&li.ID, &li.OrderID, &li.PartID, &li.Qty, &li.TotalCents); err != nil {
			return nil, err
		}
		out = append(out, li)
	}
	return out, rows.Err()
}

func (s *Store) List(ctx context.Context, page, perPage int) ([]Order, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 10
	}
	rows, err := s.DB.Query(ctx,
		`SELECT id, status, created_at, updated_at FROM orders
		 ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		perPage, (page-1)*perPage)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		items, err := s.itemsFor(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
	}
	return out, nil
}

// SetStatus is the administrative path: it enforces the status machine but is
// otherwise unconditional. Payment reconciliation never goes through here.
func (s *Store) SetStatus(ctx context.Context, id string, to Status) (*Order, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var from Status
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1 FOR UPDATE`, id).Scan(&from)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if from != to && !CanTransition(from, to) {
		return nil, &InvalidTransitionError{From: from, To: to}
	}
	if _, err := tx.Exec(ctx,
		`UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`, id, to,
	); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}
