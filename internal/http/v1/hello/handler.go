package hello

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	applog "github.com/janisto/huma-webapi-bench/internal/platform/logging"
)

const (
	// Message identifies this implementation among the benchmark entries.
	Message = "Hello from Go (huma)"
	// Value is the fixed payload value every entry returns.
	Value = 42
)

// Register wires the JSON route into the provided API router.
func Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "get-json",
		Method:      http.MethodGet,
		Path:        "/json",
		Summary:     "Return the fixed JSON payload",
		Tags:        []string{"Benchmark"},
	}, getHandler)
}

func getHandler(ctx context.Context, _ *struct{}) (*GetOutput, error) {
	applog.LogDebug(ctx, "json get")
	return &GetOutput{Body: Data{Message: Message, Value: Value}}, nil
}
