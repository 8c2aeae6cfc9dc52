package server

import (
	"strings"

	"github.com/valyala/fasthttp"

	"github.com/shorecrew/shorecrew/types"
	"github.com/shorecrew/shorecrew/utils"
)

// Router dispatches on method and path. Static routes hit a map; patterns
// with {param} segments are matched per segment and expose their values via
// ctx.UserValue.
type Router struct {
	static  map[string]fasthttp.RequestHandler
	dynamic []*dynamicRoute
}

type dynamicRoute struct {
	method   string
	segments []string
	handler  fasthttp.RequestHandler
}

func NewRouter() *Router {
	return &Router{
		static: make(map[string]fasthttp.RequestHandler),
	}
}

func (r *Router) Add(method, path string, handler fasthttp.RequestHandler) error {
	if handler == nil {
		return types.ErrHandlerIsNil
	}

	if !strings.Contains(path, "{") {
		r.static[method+":"+path] = handler
		return nil
	}

	r.dynamic = append(r.dynamic, &dynamicRoute{
		method:   method,
		segments: splitPath(path),
		handler:  handler,
	})
	return nil
}

// Handle is the fasthttp entry point.
func (r *Router) Handle(ctx *fasthttp.RequestCtx) {
	method := string(ctx.Method())
	path := utils.BytesToString(ctx.Path())

	if handler, ok := r.static[method+":"+path]; ok {
		handler(ctx)
		return
	}

	segments := splitPath(path)
	for _, route := range r.dynamic {
		if route.method != method {
			continue
		}
		if route.match(ctx, segments) {
			route.handler(ctx)
			return
		}
	}

	ctx.SetStatusCode(fasthttp.StatusNotFound)
	ctx.SetContentType("application/json")
	ctx.SetBodyString(`{"error":"not found"}`)
}

func (d *dynamicRoute) match(ctx *fasthttp.RequestCtx, segments []string) bool {
	if len(segments) != len(d.segments) {
		return false
	}

	for i, seg := range d.segments {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			continue
		}
		if seg != segments[i] {
			return false
		}
	}

	for i, seg := range d.segments {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			ctx.SetUserValue(seg[1:len(seg)-1], segments[i])
		}
	}
	return true
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
