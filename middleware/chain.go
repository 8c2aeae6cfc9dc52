// Package middleware implements the HTTP middleware chain. Middlewares are
// ordered by weight, lowest first.
package middleware

import (
	"sort"

	"github.com/valyala/fasthttp"

	"github.com/shorecrew/shorecrew/types"
)

type Middleware interface {
	Name() string
	Weight() int
	Handle(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx))
}

type Chain struct {
	entries []Middleware
	built   bool
}

func NewChain() *Chain {
	return &Chain{}
}

func (c *Chain) Register(mw Middleware) error {
	if mw == nil {
		return types.ErrHandlerIsNil
	}
	if c.built {
		return types.NewErrorf("cannot register middleware after build")
	}

	for _, existing := range c.entries {
		if existing.Name() == mw.Name() {
			return types.NewErrorf("middleware already registered: %s", mw.Name())
		}
		if existing.Weight() == mw.Weight() {
			return types.NewErrorf("duplicate weight %d for middlewares %q and %q",
				mw.Weight(), existing.Name(), mw.Name())
		}
	}

	c.entries = append(c.entries, mw)
	return nil
}

// Build freezes the chain and sorts it by weight.
func (c *Chain) Build() {
	sort.Slice(c.entries, func(i, j int) bool {
		return c.entries[i].Weight() < c.entries[j].Weight()
	})
	c.built = true
}

// Wrap returns handler wrapped in the full chain.
func (c *Chain) Wrap(handler fasthttp.RequestHandler) fasthttp.RequestHandler {
	if len(c.entries) == 0 {
		return handler
	}

	wrapped := handler
	for i := len(c.entries) - 1; i >= 0; i-- {
		mw := c.entries[i]
		next := wrapped
		wrapped = func(ctx *fasthttp.RequestCtx) {
			mw.Handle(ctx, next)
		}
	}
	return wrapped
}

// Names lists the registered middlewares in execution order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.entries))
	for i, mw := range c.entries {
		names[i] = mw.Name()
	}
	return names
}
