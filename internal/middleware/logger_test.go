package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.ReleaseMode)

	var out bytes.Buffer

	engine := gin.New()
	engine.Use(RequestLogger(zerolog.New(&out)))
	engine.GET("/ping", func(gctx *gin.Context) {
		zerolog.Ctx(gctx.Request.Context()).Info().Msg("inside handler")
		gctx.Status(http.StatusNoContent)
	})

	t.Run("GeneratesID", func(t *testing.T) {
		out.Reset()

		recorder := httptest.NewRecorder()
		engine.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/ping", nil))

		id := recorder.Header().Get(RequestIDHeader)
		if id == "" {
			t.Fatalf("%s header is empty", RequestIDHeader)
		}

		if got := strings.Count(out.String(), `"request_id":"`+id+`"`); got != 2 {
			t.Errorf("log lines with request id = %d, want 2; log:\n%s", got, out.String())
		}
	})

	t.Run("KeepsCallerID", func(t *testing.T) {
		out.Reset()

		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(RequestIDHeader, "req-42")

		recorder := httptest.NewRecorder()
		engine.ServeHTTP(recorder, req)

		if got := recorder.Header().Get(RequestIDHeader); got != "req-42" {
			t.Errorf("%s = %q, want %q", RequestIDHeader, got, "req-42")
		}

		if !strings.Contains(out.String(), `"status_code":204`) {
			t.Errorf("log does not contain the status code:\n%s", out.String())
		}
	})
}
