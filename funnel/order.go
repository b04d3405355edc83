package funnel

import (
	"context"
	"math/rand/v2"
	"strconv"
	"time"
)

// Order is the payload handed to the gateway on confirmation. Built
// once at confirmation time, never persisted by the funnel itself.
type Order struct {
	OrderID   string
	ProductID string
	CityID    string
	AreaID    string
	SessionID string
}

// Outcome values recorded by the order journal.
const (
	OutcomeSubmitted     = "submitted"
	OutcomeGatewayFailed = "gateway_failed"
)

// OrderRecord is the journal entry for one confirmation attempt.
type OrderRecord struct {
	Order
	ProductName string
	CityName    string
	AreaName    string
	Outcome     string
	SubmittedAt time.Time
}

// Journal receives a record of every confirmation attempt. Journal
// failures never influence the user-visible flow.
type Journal interface {
	Record(ctx context.Context, rec OrderRecord) error
}

// NewOrderID draws a 10-digit decimal order identifier uniformly from
// [1_000_000_000, 10_000_000_000). Uniqueness is not checked locally;
// the remote service is the source of truth for collisions.
func NewOrderID() string {
	n := int64(1_000_000_000) + rand.Int64N(9_000_000_000)
	return strconv.FormatInt(n, 10)
}

func buildOrder(id string, sessionID int64, st AwaitingConfirmation) Order {
	return Order{
		OrderID:   id,
		ProductID: st.Product.ID,
		CityID:    st.City.ID,
		AreaID:    st.Area.ID,
		SessionID: strconv.FormatInt(sessionID, 10),
	}
}
