// Package bot binds the purchase funnel to Telegram endpoints: the
// /start command opens a funnel, inline button presses advance it.
package bot

import (
	"time"

	"github.com/m3rciful/funnelbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/funnelbot/core/telegram/helpers"
	"github.com/m3rciful/funnelbot/funnel"

	tele "gopkg.in/telebot.v4"
)

// Handler adapts Telegram updates to funnel signals and funnel replies
// back to Telegram calls.
type Handler struct {
	ctrl *funnel.Controller
}

// NewHandler wraps the funnel controller.
func NewHandler(ctrl *funnel.Controller) *Handler {
	return &Handler{ctrl: ctrl}
}

// Start handles the /start command.
func (h *Handler) Start(c tele.Context) error {
	return h.handle(c, "start", funnel.StartSignal())
}

// Callback handles every inline button press. The callback is always
// answered so the client stops its spinner, even for dropped signals.
func (h *Handler) Callback(c tele.Context) error {
	defer func() { _ = c.Respond() }()
	return h.handle(c, "callback", funnel.TokenSignal(callbacks.Data(c)))
}

func (h *Handler) handle(c tele.Context, name string, sig funnel.Signal) error {
	start := time.Now()
	ctx := tghelpers.WithHandler(c, name)

	chat := c.Chat()
	if chat == nil {
		logSummary(c, name, start, nil)
		return nil
	}

	reply, err := h.ctrl.Handle(ctx, chat.ID, sig)
	if err == nil {
		err = deliver(c, reply)
	}
	logSummary(c, name, start, err)
	return err
}

func deliver(c tele.Context, reply funnel.Reply) error {
	switch reply.Kind {
	case funnel.ReplySend:
		return tghelpers.SendText(c, reply.Text, toMarkup(reply.Keyboard))
	case funnel.ReplyEdit:
		if rm := toMarkup(reply.Keyboard); rm != nil {
			return c.Edit(reply.Text, rm)
		}
		return c.Edit(reply.Text)
	case funnel.ReplyDelete:
		return c.Delete()
	default:
		return nil
	}
}

// toMarkup converts funnel rows to telebot inline markup. Buttons carry
// raw Data so the callback payload round-trips byte for byte.
func toMarkup(rows [][]funnel.Button) *tele.ReplyMarkup {
	if len(rows) == 0 {
		return nil
	}
	keyboard := make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		line := make([]tele.InlineButton, 0, len(row))
		for _, b := range row {
			line = append(line, tele.InlineButton{Text: b.Text, Data: b.Data})
		}
		keyboard = append(keyboard, line)
	}
	return &tele.ReplyMarkup{InlineKeyboard: keyboard}
}
