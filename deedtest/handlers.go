package deedtest

import "github.com/iov-one/deedhouse"

// Handler is a mock implementation of the deedhouse.Handler interface. It
// returns the configured result and counts calls.
type Handler struct {
	deliverCall   int
	DeliverResult deedhouse.DeliverResult
	DeliverErr    error
}

var _ deedhouse.Handler = (*Handler)(nil)

func (h *Handler) Deliver(ctx deedhouse.Context, db deedhouse.KVStore, tx deedhouse.Tx) (*deedhouse.DeliverResult, error) {
	h.deliverCall++
	if h.DeliverErr != nil {
		return nil, h.DeliverErr
	}
	res := h.DeliverResult
	return &res, nil
}

func (h *Handler) CallCount() int {
	return h.deliverCall
}

// Decorator is a mock implementation of the deedhouse.Decorator interface.
//
// Set DeliverErr to force error response. If not set, the wrapped handler is
// called and its result returned. Each call is counted regardless of the
// result.
type Decorator struct {
	deliverCall int
	// DeliverErr if set is returned by the Deliver method before calling
	// the wrapped handler.
	DeliverErr error
}

var _ deedhouse.Decorator = (*Decorator)(nil)

func (d *Decorator) Deliver(ctx deedhouse.Context, db deedhouse.KVStore, tx deedhouse.Tx, next deedhouse.Handler) (*deedhouse.DeliverResult, error) {
	d.deliverCall++
	if d.DeliverErr != nil {
		return nil, d.DeliverErr
	}
	return next.Deliver(ctx, db, tx)
}

func (d *Decorator) CallCount() int {
	return d.deliverCall
}

// Decorate returns a handler that passes every call through the decorator.
func Decorate(h deedhouse.Handler, d deedhouse.Decorator) deedhouse.Handler {
	return &decoratedHandler{hn: h, dc: d}
}

type decoratedHandler struct {
	hn deedhouse.Handler
	dc deedhouse.Decorator
}

func (d *decoratedHandler) Deliver(ctx deedhouse.Context, db deedhouse.KVStore, tx deedhouse.Tx) (*deedhouse.DeliverResult, error) {
	return d.dc.Deliver(ctx, db, tx, d.hn)
}
