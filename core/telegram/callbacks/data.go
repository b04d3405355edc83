// Package callbacks reads raw callback payloads. Buttons are built with
// explicit Data values, so the payload is used whole; the telebot
// unique-prefix convention does not apply here.
package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Data returns the raw callback payload of the current update, with
// telebot's leading "\f" marker stripped when present.
func Data(c tele.Context) string {
	cb := c.Callback()
	if cb == nil {
		return ""
	}
	return strings.TrimPrefix(cb.Data, "\f")
}
