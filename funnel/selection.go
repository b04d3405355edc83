// Package funnel implements the four-step purchase conversation:
// product, city, area, confirmation. It owns the session state machine,
// the callback token codec, and keyboard layout; the Telegram transport
// and the content gateway are collaborators behind interfaces.
package funnel

import (
	"fmt"
	"strings"
)

// Selectable is one catalog entry the user can pick: an opaque id plus
// the name shown on the button. ID round-trips unchanged through the
// callback token.
type Selectable struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CatalogItem is a Selectable with the optional price tag the catalog
// returns for products. Price participates in the button label only and
// never enters the token.
type CatalogItem struct {
	Selectable
	Price string
}

// tokenSeparator splits id from name inside a callback token. Ids must
// not contain it; names keep the documented limitation that a separator
// inside the name truncates nothing but cannot be told apart on decode.
const tokenSeparator = "|"

// Reserved control tokens. The controller recognizes them before any
// decode attempt; DecodeChoice never sees them.
const (
	TokenBack    = "back"
	TokenConfirm = "confirm"
	TokenCancel  = "cancel"
)

func isReservedToken(token string) bool {
	switch token {
	case TokenBack, TokenConfirm, TokenCancel:
		return true
	}
	return false
}

// EncodeChoice packs a selection into the "{id}|{name}" callback token.
func EncodeChoice(s Selectable) (string, error) {
	if s.ID == "" {
		return "", fmt.Errorf("funnel: encode: empty id")
	}
	if strings.Contains(s.ID, tokenSeparator) {
		return "", fmt.Errorf("funnel: encode: id %q contains separator", s.ID)
	}
	return s.ID + tokenSeparator + s.Name, nil
}

// DecodeChoice unpacks a callback token produced by EncodeChoice.
// DecodeChoice(EncodeChoice(x)) == x for every valid x.
func DecodeChoice(token string) (Selectable, error) {
	id, name, found := strings.Cut(token, tokenSeparator)
	if !found || id == "" {
		return Selectable{}, fmt.Errorf("%w: %q", ErrMalformedToken, token)
	}
	return Selectable{ID: id, Name: name}, nil
}
