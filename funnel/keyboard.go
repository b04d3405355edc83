package funnel

// Button is one inline control: the label the user sees and the raw
// callback data sent back when pressed.
type Button struct {
	Text string
	Data string
}

const (
	keyboardColumns = 2

	backButtonText    = "Назад"
	confirmButtonText = "Подтвердить"
	cancelButtonText  = "Отменить"
)

// RenderKeyboard lays the catalog out as an inline keyboard grid:
// row-major, two buttons per row, the final row may hold one. The
// catalog's order is the UI order. When includeBack is true a back
// button is appended as the last control. Items that cannot be encoded
// are skipped. Pure function.
func RenderKeyboard(items []CatalogItem, includeBack bool) [][]Button {
	buttons := make([]Button, 0, len(items)+1)
	for _, item := range items {
		data, err := EncodeChoice(item.Selectable)
		if err != nil {
			continue
		}
		label := item.Name
		if item.Price != "" {
			label = item.Name + " - " + item.Price
		}
		buttons = append(buttons, Button{Text: label, Data: data})
	}
	if includeBack {
		buttons = append(buttons, Button{Text: backButtonText, Data: TokenBack})
	}
	return chunkButtons(buttons, keyboardColumns)
}

// ConfirmKeyboard returns the confirm/cancel prompt row.
func ConfirmKeyboard() [][]Button {
	return [][]Button{{
		{Text: confirmButtonText, Data: TokenConfirm},
		{Text: cancelButtonText, Data: TokenCancel},
	}}
}

func chunkButtons(buttons []Button, n int) [][]Button {
	if len(buttons) == 0 {
		return nil
	}
	if n <= 1 {
		rows := make([][]Button, 0, len(buttons))
		for _, b := range buttons {
			rows = append(rows, []Button{b})
		}
		return rows
	}
	var rows [][]Button
	for i := 0; i < len(buttons); i += n {
		end := i + n
		if end > len(buttons) {
			end = len(buttons)
		}
		rows = append(rows, buttons[i:end])
	}
	return rows
}
