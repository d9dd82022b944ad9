package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/JakeFAU/pace/internal/progress"
)

// ExampleServer shows how to expose the latest progress frame over HTTP.
func ExampleServer() {
	tr := progress.NewTracker()
	tr.Apply(progress.RootID, progress.Begin(1, "fetch", 4))
	tr.Apply(1, progress.Step())

	fb := progress.NewFrameBuffer()
	if err := fb.Render(tr); err != nil {
		panic(err)
	}
	server := NewServer(fb, "run-1", nil)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/frame", nil))
	fmt.Print(rec.Body.String())
	// Output:
	// fetch  1/4
}
