package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/castwell/launch-backend/pkg/logger"
)

func TestRequestIDKeepsCallerValue(t *testing.T) {
	handler := RequestID(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "edge-7f3a")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if got := resp.Header().Get(requestIDHeader); got != "edge-7f3a" {
		t.Fatalf("expected caller id echoed, got %q", got)
	}
}

func TestRequestIDReplacesUnusableValues(t *testing.T) {
	cases := map[string]string{
		"empty":     "",
		"too long":  strings.Repeat("a", maxRequestIDLength+1),
		"has space": "two words",
		"control":   "id\x07",
	}
	for name, incoming := range cases {
		t.Run(name, func(t *testing.T) {
			handler := RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if incoming != "" {
				req.Header.Set(requestIDHeader, incoming)
			}
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, req)

			got := resp.Header().Get(requestIDHeader)
			if got == "" || got == incoming {
				t.Fatalf("expected a minted id, got %q", got)
			}
		})
	}
}

func TestRecovererReturns500(t *testing.T) {
	handler := Recoverer(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("kiln offline")
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/inventory", nil))

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
	if strings.Contains(resp.Body.String(), "kiln offline") {
		t.Fatalf("panic value leaked into response: %s", resp.Body.String())
	}
}

func TestRecovererRepanicsOnAbort(t *testing.T) {
	handler := Recoverer(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Fatalf("expected ErrAbortHandler to propagate, got %v", rec)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}
