// Package orders persists a journal of confirmation attempts in
// Postgres. The journal is an audit trail: the remote service remains
// the system of record for orders.
package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/funnelbot/funnel"
)

// Journal writes order records. It satisfies funnel.Journal.
type Journal struct {
	db *sqlx.DB
}

// NewJournal wraps an open database handle.
func NewJournal(db *sqlx.DB) *Journal {
	return &Journal{db: db}
}

type orderRow struct {
	OrderID     string    `db:"order_id"`
	SessionID   string    `db:"session_id"`
	ProductID   string    `db:"product_id"`
	ProductName string    `db:"product_name"`
	CityID      string    `db:"city_id"`
	CityName    string    `db:"city_name"`
	AreaID      string    `db:"area_id"`
	AreaName    string    `db:"area_name"`
	Outcome     string    `db:"outcome"`
	SubmittedAt time.Time `db:"submitted_at"`
}

const insertOrder = `
	INSERT INTO orders (
		order_id, session_id,
		product_id, product_name,
		city_id, city_name,
		area_id, area_name,
		outcome, submitted_at
	) VALUES (
		:order_id, :session_id,
		:product_id, :product_name,
		:city_id, :city_name,
		:area_id, :area_name,
		:outcome, :submitted_at
	)`

// Record inserts one journal row.
func (j *Journal) Record(ctx context.Context, rec funnel.OrderRecord) error {
	row := orderRow{
		OrderID:     rec.OrderID,
		SessionID:   rec.SessionID,
		ProductID:   rec.ProductID,
		ProductName: rec.ProductName,
		CityID:      rec.CityID,
		CityName:    rec.CityName,
		AreaID:      rec.AreaID,
		AreaName:    rec.AreaName,
		Outcome:     rec.Outcome,
		SubmittedAt: rec.SubmittedAt.UTC(),
	}
	if _, err := j.db.NamedExecContext(ctx, insertOrder, row); err != nil {
		return fmt.Errorf("orders: record %s: %w", rec.OrderID, err)
	}
	return nil
}
