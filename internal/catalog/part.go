package catalog

import (
	"errors"
	"strconv"
	"time"
)

var ErrNotFound = errors.New("catalog: part not found")

// Part is a catalog entry. Prices are integer minor units (cents); stock is
// never allowed below zero.
type Part struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	PriceCents int64     `json:"price_cents"`
	StockQty   int       `json:"stock_quantity"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PriceString renders the unit price as a decimal string, e.g. 12345 -> "123.45".
func (p Part) PriceString() string {
	return FormatCents(p.PriceCents)
}

func FormatCents(c int64) string {
	neg := ""
	if c < 0 {
		neg, c = "-", -c
	}
	return neg + strconv.FormatInt(c/100, 10) + "." + pad2(c%100)
}

func pad2(c int64) string {
	if c < 10 {
		return "0" + strconv.FormatInt(c, 10)
	}
	return strconv.FormatInt(c, 10)
}

// Filter narrows List results. Zero values mean "no constraint".
type Filter struct {
	Category      string
	MinPriceCents int64
	MaxPriceCents int64
	Page          int
	PerPage       int
}

func (f Filter) normalized() Filter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 || f.PerPage > 100 {
		f.PerPage = 10
	}
	return f
}
