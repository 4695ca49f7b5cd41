package routes

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/janisto/huma-webapi-bench/internal/http/v1/hello"
)

// Register wires all application routes into the provided API router.
func Register(api huma.API) {
	hello.Register(api)
}
