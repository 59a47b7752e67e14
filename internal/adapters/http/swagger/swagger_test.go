package swagger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/smartystreets/goconvey/convey"
	"gopkg.in/yaml.v3"
)

func TestSwaggerHandler(t *testing.T) {
	convey.Convey("Given a swagger handler", t, func() {
		ctx := context.Background()
		r := chi.NewRouter()

		convey.Convey("When registering on a nil router", func() {
			convey.So(Register(ctx, nil), convey.ShouldEqual, ErrNilRouter)
		})

		convey.Convey("When registering the swagger handler", func() {
			convey.So(Register(ctx, r), convey.ShouldBeNil)

			convey.Convey("Then it should serve /openapi.yaml", func() {
				req := httptest.NewRequest(http.MethodGet, "/openapi.yaml", http.NoBody)
				w := httptest.NewRecorder()
				r.ServeHTTP(w, req)

				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(w.Header().Get("Content-Type"), convey.ShouldEqual, "application/yaml; charset=utf-8")

				var doc map[string]any
				convey.So(yaml.Unmarshal(w.Body.Bytes(), &doc), convey.ShouldBeNil)
				paths, ok := doc["paths"].(map[string]any)
				convey.So(ok, convey.ShouldBeTrue)
				for _, p := range []string{"/webhook", "/plate-status", "/spot-status", "/revenue", "/garage", "/garage/import"} {
					convey.So(paths, convey.ShouldContainKey, p)
				}
			})

			convey.Convey("And it should serve /api-docs", func() {
				req := httptest.NewRequest(http.MethodGet, "/api-docs", http.NoBody)
				w := httptest.NewRecorder()
				r.ServeHTTP(w, req)

				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(w.Header().Get("Content-Type"), convey.ShouldEqual, "text/html; charset=utf-8")
				convey.So(w.Body.String(), convey.ShouldContainSubstring, "redoc-container")
			})
		})
	})
}
