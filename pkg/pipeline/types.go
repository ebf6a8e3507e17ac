// Package pipeline holds the JSON types exchanged with the photo pipeline
// HTTP API.
package pipeline

// Photo is the render state of one row
type Photo struct {
	Row          int    `json:"row"`
	Name         string `json:"name"`
	Title        string `json:"title"`
	State        string `json:"state"` // new, downloaded, filtered, failed
	Busy         bool   `json:"busy"`
	Failed       bool   `json:"failed"`
	FilterFailed bool   `json:"filter_failed"`
	Revision     uint64 `json:"revision"`
	ImageURL     string `json:"image_url"`
}

// ViewportRequest moves the visible window. Nil fields keep their value.
type ViewportRequest struct {
	First    *int `json:"first,omitempty"`
	Count    *int `json:"count,omitempty"`
	Dragging bool `json:"dragging"`
}

// Viewport describes the visible window and the work in flight
type Viewport struct {
	First    int   `json:"first"`
	Count    int   `json:"count"`
	Rows     int   `json:"rows"`
	Visible  []int `json:"visible"`
	InFlight []int `json:"in_flight"`
	Settled  bool  `json:"settled"`
}

// Health is returned by GET /health
type Health struct {
	Status  string `json:"status"`
	Rows    int    `json:"rows"`
	Settled bool   `json:"settled"`
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error string `json:"error"`
}
