package payments

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hendraw/partshub/internal/orders"
)

type PgStore struct{ DB *pgxpool.Pool }

const paymentCols = `id, order_id, amount_cents, currency, session_id, transaction_id,
	COALESCE(payment_method,''), status, metadata, created_at, updated_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.OrderID, &p.AmountCents, &p.Currency, &p.SessionID,
		&p.TransactionID, &p.Method, &p.Status, &p.Metadata, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PgStore) CreatePending(ctx context.Context, p *Payment) error {
	return s.DB.QueryRow(ctx, `
		INSERT INTO payments(id, order_id, amount_cents, currency, session_id, transaction_id, status, metadata)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		p.ID, p.OrderID, p.AmountCents, p.Currency, p.SessionID, p.TransactionID, p.Status, p.Metadata,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (s *PgStore) LatestByOrder(ctx context.Context, orderID string) (*Payment, error) {
	return scanPayment(s.DB.QueryRow(ctx,
		`SELECT `+paymentCols+` FROM payments WHERE order_id=$1 ORDER BY created_at DESC, id DESC LIMIT 1`,
		orderID))
}

func (s *PgStore) FindByProviderRef(ctx context.Context, ref string) (*Payment, error) {
	return scanPayment(s.DB.QueryRow(ctx,
		`SELECT `+paymentCols+` FROM payments WHERE transaction_id=$1`, ref))
}

// Complete applies the paid outcome exactly once. It locks the payment row,
// transitions only from pending, and moves the order pending -> completed in
// the same transaction. Returns false with no error when the transition was
// already applied.
func (s *PgStore) Complete(ctx context.Context, paymentID, method string, metadata map[string]string) (bool, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var status Status
	var orderID string
	err = tx.QueryRow(ctx,
		`SELECT status, order_id FROM payments WHERE id=$1 FOR UPDATE`, paymentID,
	).Scan(&status, &orderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, err
	}
	if status != StatusPending {
		return false, nil
	}

	if metadata == nil {
		metadata = map[string]string{}
	}
	if _, err := tx.Exec(ctx, `
		UPDATE payments
		SET status=$2, payment_method=$3, metadata = metadata || $4, updated_at=now()
		WHERE id=$1`,
		paymentID, StatusCompleted, method, metadata,
	); err != nil {
		return false, err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE orders SET status=$2, updated_at=now() WHERE id=$1 AND status=$3`,
		orderID, orders.StatusCompleted, orders.StatusPending,
	); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}
