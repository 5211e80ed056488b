package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS_OptIn(t *testing.T) {
	resetGlobals(t)
	req := httptest.NewRequest(http.MethodOptions, "/serving/endpoints", nil)
	req.Header.Set("Origin", "https://ui.example")
	req.Header.Set("Access-Control-Request-Method", "GET")

	w := httptest.NewRecorder()
	NewMux(&mockService{}, nil).ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("CORS headers without opt-in")
	}

	SetCORSOptions(true, []string{"https://ui.example"}, nil, nil)
	w = httptest.NewRecorder()
	NewMux(&mockService{}, nil).ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://ui.example" {
		t.Fatalf("allow-origin=%q", got)
	}
}
