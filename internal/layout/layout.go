// Package layout computes per-item pixel metrics for a row of forecast
// slots inside a resizable container.
package layout

import "math"

// State is the result of one layout pass. ItemWidth folds the distributed
// gap into each item's box so flush-left absolute positioning still spaces
// items visually.
type State struct {
	ItemWidth    float64 `json:"item_width"`
	Gap          float64 `json:"gap"`
	ItemsPerView int     `json:"items_per_view"`
	IsScrollable bool    `json:"is_scrollable"`
}

// Engine derives item widths from a container width and item count. It
// keeps the last computed state so transient zero-width measurements (a
// popup mid-animation reports width 0) do not collapse the layout.
type Engine struct {
	minItemWidth float64
	prev         State
}

// NewEngine returns an engine with the given minimum item width in pixels.
func NewEngine(minItemWidth float64) *Engine {
	return &Engine{minItemWidth: minItemWidth}
}

// Layout computes metrics for itemCount items in a container of the given
// width. A non-positive width, an unset minimum width, or a zero item count
// returns the previous state unchanged.
func (e *Engine) Layout(containerWidth float64, itemCount int) State {
	if containerWidth <= 0 || e.minItemWidth <= 0 || itemCount <= 0 {
		return e.prev
	}

	itemsPerView := int(math.Floor(containerWidth / e.minItemWidth))
	if itemsPerView < 1 {
		itemsPerView = 1
	}

	baseItemWidth := math.Floor(containerWidth / float64(itemsPerView))
	freeSpace := containerWidth - float64(itemCount)*baseItemWidth

	var gap float64
	if itemCount > 1 && freeSpace > 0 {
		gap = freeSpace / float64(itemCount-1)
	}

	e.prev = State{
		ItemWidth:    baseItemWidth + gap,
		Gap:          gap,
		ItemsPerView: itemsPerView,
		IsScrollable: itemCount > itemsPerView,
	}
	return e.prev
}

// Current returns the last computed state.
func (e *Engine) Current() State {
	return e.prev
}
