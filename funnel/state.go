package funnel

// State is the progress of one chat session through the funnel. It is a
// closed set of variants; the fields attached to a variant are exactly
// the selections completed so far and are never mutated once set. A
// transition replaces the whole value.
type State interface {
	// Stage returns a stable identifier used for logging and the
	// serialized session form.
	Stage() string

	isState()
}

// Start is the initial state and the state after the funnel completes.
type Start struct{}

// AwaitingProduct means the product list has been shown, nothing chosen.
type AwaitingProduct struct{}

// AwaitingCity means a product has been chosen and the city list shown.
type AwaitingCity struct {
	Product Selectable
}

// AwaitingArea means product and city are chosen and the area list shown.
type AwaitingArea struct {
	Product Selectable
	City    Selectable
}

// AwaitingConfirmation means all three selections are made and the
// confirm/cancel prompt is pending.
type AwaitingConfirmation struct {
	Product Selectable
	City    Selectable
	Area    Selectable
}

const (
	stageStart        = "start"
	stageProduct      = "awaiting_product"
	stageCity         = "awaiting_city"
	stageArea         = "awaiting_area"
	stageConfirmation = "awaiting_confirmation"
)

func (Start) Stage() string                { return stageStart }
func (AwaitingProduct) Stage() string      { return stageProduct }
func (AwaitingCity) Stage() string         { return stageCity }
func (AwaitingArea) Stage() string         { return stageArea }
func (AwaitingConfirmation) Stage() string { return stageConfirmation }

func (Start) isState()                {}
func (AwaitingProduct) isState()      {}
func (AwaitingCity) isState()         {}
func (AwaitingArea) isState()         {}
func (AwaitingConfirmation) isState() {}
