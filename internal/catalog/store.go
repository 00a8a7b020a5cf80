package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct{ DB *pgxpool.Pool }

const partCols = `id, name, category, price_cents, stock_quantity, created_at, updated_at`

func scanPart(row pgx.Row) (Part, error) {
	var p Part
	err := row.Scan(&p.ID, &p.Name, &p.Category, &p.PriceCents, &p.StockQty, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, ErrNotFound
	}
	return p, err
}

func (s *Store) Get(ctx context.Context, id string) (Part, error) {
	return scanPart(s.DB.QueryRow(ctx, `SELECT `+partCols+` FROM car_parts WHERE id=$1`, id))
}

// conditions renders the WHERE fragments for a filter. Each bound applies
// independently, so a zero value really is "no constraint".
func (f Filter) conditions() ([]string, []any) {
	var where []string
	var args []any
	if f.Category != "" {
		args = append(args, f.Category)
		where = append(where, fmt.Sprintf("category=$%d", len(args)))
	}
	if f.MinPriceCents > 0 {
		args = append(args, f.MinPriceCents)
		where = append(where, fmt.Sprintf("price_cents >= $%d", len(args)))
	}
	if f.MaxPriceCents > 0 {
		args = append(args, f.MaxPriceCents)
		where = append(where, fmt.Sprintf("price_cents <= $%d", len(args)))
	}
	return where, args
}

func (s *Store) List(ctx context.Context, f Filter) ([]Part, error) {
	f = f.normalized()

	where, args := f.conditions()
	q := `SELECT ` + partCols + ` FROM car_parts`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, f.PerPage, (f.Page-1)*f.PerPage)
	q += fmt.Sprintf(` ORDER BY name LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Part
	for rows.Next() {
		p, err := scanPart(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// All returns the full catalog ordered by name, for the CSV export.
func (s *Store) All(ctx context.Context) ([]Part, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+partCols+` FROM car_parts ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Part
	for rows.Next() {
		p, err := scanPart(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) Create(ctx context.Context, name, category string, priceCents int64, stockQty int) (Part, error) {
	id := uuid.NewString()
	_, err := s.DB.Exec(ctx, `
		INSERT INTO car_parts(id, name, category, price_cents, stock_quantity)
		VALUES ($1,$2,$3,$4,$5)`,
		id, name, category, priceCents, stockQty,
	)
	if err != nil {
		return Part{}, err
	}
	return s.Get(ctx, id)
}

// PartUpdate carries the fields to change; nil means keep current value.
type PartUpdate struct {
	Name       *string
	Category   *string
	PriceCents *int64
	StockQty   *int
}

func (s *Store) Update(ctx context.Context, id string, u PartUpdate) (Part, error) {
	set := []string{}
	args := []any{}
	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s=$%d", col, len(args)))
	}
	if u.Name != nil {
		add("name", *u.Name)
	}
	if u.Category != nil {
		add("category", *u.Category)
	}
	if u.PriceCents != nil {
		add("price_cents", *u.PriceCents)
	}
	if u.StockQty != nil {
		add("stock_quantity", *u.StockQty)
	}
	if len(set) == 0 {
		return s.Get(ctx, id)
	}
	set = append(set, "updated_at=now()")
	args = append(args, id)
	ct, err := s.DB.Exec(ctx,
		fmt.Sprintf(`UPDATE car_parts SET %s WHERE id=$%d`, strings.Join(set, ", "), len(args)),
		args...,
	)
	if err != nil {
		return Part{}, err
	}
	if ct.RowsAffected() == 0 {
		return Part{}, ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	ct, err := s.DB.Exec(ctx, `DELETE FROM car_parts WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
