package transport

// Middleware decorates a ChatHandler.
type Middleware func(ChatHandler) ChatHandler

// Chain composes middlewares so that Chain(a, b)(h) == a(b(h)); a sees
// each exchange first.
func Chain(middlewares ...Middleware) Middleware {
	return func(h ChatHandler) ChatHandler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			h = middlewares[i](h)
		}
		return h
	}
}
