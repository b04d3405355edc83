package funnel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/m3rciful/funnelbot/core/logger"
	"log/slog"
)

// Gateway is the content/order service the controller consumes. List
// calls may fail; the controller degrades a failed fetch to an empty
// catalog. SubmitOrder is attempted at most once per confirmation.
type Gateway interface {
	ListProducts(ctx context.Context) ([]CatalogItem, error)
	ListCities(ctx context.Context) ([]CatalogItem, error)
	ListAreas(ctx context.Context, cityID string) ([]CatalogItem, error)
	SubmitOrder(ctx context.Context, order Order) error
}

// SignalKind tags the two inbound event shapes.
type SignalKind int

const (
	// SignalCommand is the /start command opening the funnel.
	SignalCommand SignalKind = iota
	// SignalToken is a pressed inline button's callback payload.
	SignalToken
)

// Signal is one inbound event from a session.
type Signal struct {
	Kind  SignalKind
	Token string
}

// StartSignal returns the funnel-opening command signal.
func StartSignal() Signal { return Signal{Kind: SignalCommand} }

// TokenSignal wraps a callback payload.
func TokenSignal(token string) Signal { return Signal{Kind: SignalToken, Token: token} }

// ReplyKind tells the transport what to do with the reply.
type ReplyKind int

const (
	// ReplyNone means the signal was dropped; nothing to deliver.
	ReplyNone ReplyKind = iota
	// ReplySend posts a new message.
	ReplySend
	// ReplyEdit rewrites the message the signal came from.
	ReplyEdit
	// ReplyDelete removes the message the signal came from.
	ReplyDelete
)

// Reply is the controller's answer for one turn, handed to the
// transport for delivery.
type Reply struct {
	Kind     ReplyKind
	Text     string
	Keyboard [][]Button
}

const (
	promptProduct = "Выберите товар:"
	promptCity    = "Выберите город:"
	promptArea    = "Выберите район:"
	promptConfirm = "Отправить на рассмотрение"

	msgOrderFailed = "Не удалось отправить заказ. Попробуйте позже, отправив /start."
)

func orderSummary(orderID string, st AwaitingConfirmation) string {
	return fmt.Sprintf(
		"Ваш заказ %s\n\nТовар: %s\nГород: %s\nРайон: %s\n\nС вами свяжется модератор",
		orderID, st.Product.Name, st.City.Name, st.Area.Name,
	)
}

// Controller owns the transition table of the funnel. It is the single
// place deciding whether an external failure degrades, is reported to
// the user, or resets the session.
type Controller struct {
	store      Store
	gw         Gateway
	journal    Journal // optional
	newOrderID func() string
}

// ControllerOption customizes a Controller.
type ControllerOption func(*Controller)

// WithJournal records every confirmation attempt in the given journal.
func WithJournal(j Journal) ControllerOption {
	return func(c *Controller) { c.journal = j }
}

// WithOrderIDFunc overrides order id generation, for tests.
func WithOrderIDFunc(fn func() string) ControllerOption {
	return func(c *Controller) { c.newOrderID = fn }
}

// NewController wires the state machine to its collaborators.
func NewController(store Store, gw Gateway, opts ...ControllerOption) *Controller {
	c := &Controller{
		store:      store,
		gw:         gw,
		newOrderID: NewOrderID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Handle processes one signal for one session: it takes the session's
// exclusive section, reads the state, runs the transition, and writes
// the new state back. Signals that do not fit the current state leave
// it untouched and yield ReplyNone.
func (c *Controller) Handle(ctx context.Context, sessionID int64, sig Signal) (Reply, error) {
	release := c.store.Acquire(sessionID)
	defer release()

	st, err := c.store.Get(ctx, sessionID)
	if err != nil {
		logger.Error(ctx, "funnel", "session.load.fail",
			slog.Int64("session_id", sessionID),
			slog.String("err", err.Error()),
		)
		return Reply{Kind: ReplyNone}, nil
	}

	next, reply, err := c.transition(ctx, sessionID, st, sig)
	if err != nil {
		if errors.Is(err, ErrUnexpectedSignal) || errors.Is(err, ErrMalformedToken) {
			logger.Debug(ctx, "funnel", "signal.rejected",
				slog.Int64("session_id", sessionID),
				slog.String("state", st.Stage()),
				slog.String("signal", describeSignal(sig)),
				slog.String("err", err.Error()),
			)
			return Reply{Kind: ReplyNone}, nil
		}
		return Reply{Kind: ReplyNone}, err
	}

	if err := c.store.Put(ctx, sessionID, next); err != nil {
		logger.Error(ctx, "funnel", "session.save.fail",
			slog.Int64("session_id", sessionID),
			slog.String("state", next.Stage()),
			slog.String("err", err.Error()),
		)
	}
	logger.Debug(ctx, "funnel", "transition",
		slog.Int64("session_id", sessionID),
		slog.String("state", st.Stage()),
		slog.String("next", next.Stage()),
	)
	return reply, nil
}

func (c *Controller) transition(ctx context.Context, sessionID int64, st State, sig Signal) (State, Reply, error) {
	switch cur := st.(type) {
	case Start:
		if sig.Kind != SignalCommand {
			return st, Reply{}, ErrUnexpectedSignal
		}
		items := c.fetchLenient(ctx, "products", func() ([]CatalogItem, error) {
			return c.gw.ListProducts(ctx)
		})
		return AwaitingProduct{}, Reply{
			Kind:     ReplySend,
			Text:     promptProduct,
			Keyboard: RenderKeyboard(items, false),
		}, nil

	case AwaitingProduct:
		product, err := c.decodeSelection(sig)
		if err != nil {
			return st, Reply{}, err
		}
		items := c.fetchLenient(ctx, "cities", func() ([]CatalogItem, error) {
			return c.gw.ListCities(ctx)
		})
		return AwaitingCity{Product: product}, Reply{
			Kind:     ReplyEdit,
			Text:     promptCity,
			Keyboard: RenderKeyboard(items, true),
		}, nil

	case AwaitingCity:
		if sig.Kind == SignalToken && sig.Token == TokenBack {
			items := c.fetchLenient(ctx, "products", func() ([]CatalogItem, error) {
				return c.gw.ListProducts(ctx)
			})
			return AwaitingProduct{}, Reply{
				Kind:     ReplyEdit,
				Text:     promptProduct,
				Keyboard: RenderKeyboard(items, false),
			}, nil
		}
		city, err := c.decodeSelection(sig)
		if err != nil {
			return st, Reply{}, err
		}
		items := c.fetchLenient(ctx, "areas", func() ([]CatalogItem, error) {
			return c.gw.ListAreas(ctx, city.ID)
		})
		return AwaitingArea{Product: cur.Product, City: city}, Reply{
			Kind:     ReplyEdit,
			Text:     promptArea,
			Keyboard: RenderKeyboard(items, true),
		}, nil

	case AwaitingArea:
		if sig.Kind == SignalToken && sig.Token == TokenBack {
			items := c.fetchLenient(ctx, "cities", func() ([]CatalogItem, error) {
				return c.gw.ListCities(ctx)
			})
			return AwaitingCity{Product: cur.Product}, Reply{
				Kind:     ReplyEdit,
				Text:     promptCity,
				Keyboard: RenderKeyboard(items, true),
			}, nil
		}
		area, err := c.decodeSelection(sig)
		if err != nil {
			return st, Reply{}, err
		}
		return AwaitingConfirmation{Product: cur.Product, City: cur.City, Area: area}, Reply{
			Kind:     ReplyEdit,
			Text:     promptConfirm,
			Keyboard: ConfirmKeyboard(),
		}, nil

	case AwaitingConfirmation:
		if sig.Kind != SignalToken {
			return st, Reply{}, ErrUnexpectedSignal
		}
		switch sig.Token {
		case TokenConfirm:
			return Start{}, c.submit(ctx, sessionID, cur), nil
		case TokenCancel:
			return Start{}, Reply{Kind: ReplyDelete}, nil
		default:
			return st, Reply{}, ErrUnexpectedSignal
		}

	default:
		return st, Reply{}, fmt.Errorf("funnel: unknown state %T", st)
	}
}

// decodeSelection turns a token signal into a Selectable. Command
// signals and reserved tokens that were not consumed by the caller
// (back on the product step, stray confirm/cancel) are rejected before
// the codec ever sees them.
func (c *Controller) decodeSelection(sig Signal) (Selectable, error) {
	if sig.Kind != SignalToken {
		return Selectable{}, ErrUnexpectedSignal
	}
	if isReservedToken(sig.Token) {
		return Selectable{}, ErrUnexpectedSignal
	}
	return DecodeChoice(sig.Token)
}

// fetchLenient degrades a failed catalog read to an empty list so the
// session keeps going with an empty-but-valid keyboard.
func (c *Controller) fetchLenient(ctx context.Context, what string, fetch func() ([]CatalogItem, error)) []CatalogItem {
	items, err := fetch()
	if err != nil {
		logger.Warn(ctx, "funnel", "catalog.degraded",
			slog.String("catalog", what),
			slog.String("err", err.Error()),
		)
		return nil
	}
	return items
}

// submit builds the order, hands it to the gateway exactly once, and
// journals the attempt. The session resets to Start regardless of the
// gateway outcome; a failure is reported to the user explicitly.
func (c *Controller) submit(ctx context.Context, sessionID int64, st AwaitingConfirmation) Reply {
	order := buildOrder(c.newOrderID(), sessionID, st)

	submitErr := c.gw.SubmitOrder(ctx, order)
	outcome := OutcomeSubmitted
	if submitErr != nil {
		outcome = OutcomeGatewayFailed
		logger.Error(ctx, "funnel", "order.submit.fail",
			slog.String("order_id", order.OrderID),
			slog.String("session_id", order.SessionID),
			slog.String("err", submitErr.Error()),
		)
	} else {
		logger.Info(ctx, "funnel", "order.submitted",
			slog.String("order_id", order.OrderID),
			slog.String("product_id", order.ProductID),
			slog.String("city_id", order.CityID),
			slog.String("area_id", order.AreaID),
			slog.String("session_id", order.SessionID),
		)
	}

	if c.journal != nil {
		rec := OrderRecord{
			Order:       order,
			ProductName: st.Product.Name,
			CityName:    st.City.Name,
			AreaName:    st.Area.Name,
			Outcome:     outcome,
			SubmittedAt: time.Now().UTC(),
		}
		if err := c.journal.Record(ctx, rec); err != nil {
			logger.Warn(ctx, "funnel", "journal.fail",
				slog.String("order_id", order.OrderID),
				slog.String("err", err.Error()),
			)
		}
	}

	if submitErr != nil {
		return Reply{Kind: ReplyEdit, Text: msgOrderFailed}
	}
	return Reply{Kind: ReplyEdit, Text: orderSummary(order.OrderID, st)}
}

func describeSignal(sig Signal) string {
	if sig.Kind == SignalCommand {
		return "command"
	}
	return "token:" + logger.SanitizeLimit(sig.Token, 64)
}
