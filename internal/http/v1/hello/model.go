package hello

// Data models the response payload for the JSON endpoint.
type Data struct {
	Message string `json:"message" doc:"Identifies the implementation that answered" example:"Hello from Go (huma)"`
	Value   int    `json:"value"   doc:"Constant payload value"                       example:"42"`
}

// GetOutput wraps Data as the response body.
type GetOutput struct {
	Body Data
}
