package app

import (
	"fmt"

	"github.com/iov-one/deedhouse"
	"github.com/iov-one/deedhouse/errors"
)

// Router allows us to register many handlers with different paths and
// dispatch every message to the handler registered for its path.
type Router struct {
	routes map[string]deedhouse.Handler
}

var _ deedhouse.Registry = (*Router)(nil)
var _ deedhouse.Handler = (*Router)(nil)

// NewRouter returns a new empty router instance.
func NewRouter() *Router {
	return &Router{
		routes: make(map[string]deedhouse.Handler),
	}
}

// Handle adds a new Handler for the given path. This function panics if a
// handler for given path is already registered or the path is not valid.
func (r *Router) Handle(path string, h deedhouse.Handler) {
	if !deedhouse.IsValidPath(path) {
		panic(fmt.Sprintf("invalid path: %q", path))
	}
	if _, ok := r.routes[path]; ok {
		panic(fmt.Sprintf("re-registering route: %s", path))
	}
	r.routes[path] = h
}

// Paths returns all registered paths.
func (r *Router) Paths() []string {
	paths := make([]string, 0, len(r.routes))
	for p := range r.routes {
		paths = append(paths, p)
	}
	return paths
}

// handler returns the registered Handler for this path. If no path is found,
// returns a noSuchPath Handler. This method always returns a non nil value.
func (r *Router) handler(path string) deedhouse.Handler {
	if h, ok := r.routes[path]; ok {
		return h
	}
	return notFoundHandler(path)
}

// Deliver dispatches the message of the transaction to the registered
// handler.
func (r *Router) Deliver(ctx deedhouse.Context, store deedhouse.KVStore, tx deedhouse.Tx) (*deedhouse.DeliverResult, error) {
	msg, err := tx.GetMsg()
	if err != nil {
		return nil, errors.Wrap(err, "cannot load msg")
	}
	return r.handler(msg.Path()).Deliver(ctx, store, tx)
}

// notFoundHandler always returns ErrNotFound error regardless of the
// arguments passed.
type notFoundHandler string

func (path notFoundHandler) Deliver(deedhouse.Context, deedhouse.KVStore, deedhouse.Tx) (*deedhouse.DeliverResult, error) {
	return nil, errors.Wrapf(errors.ErrNotFound, "no handler for message path %q", string(path))
}
