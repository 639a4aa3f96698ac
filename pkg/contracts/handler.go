package contracts

import "github.com/julienschmidt/httprouter"

// Handler is implemented by every bounded context's HTTP handler so the
// application shell can mount them without knowing their routes.
type Handler interface {
	RegisterRoutes(router *httprouter.Router)
}
