package server

import (
	"context"
	"net"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/sensorhub/onboarding/internal/core"
	"github.com/sensorhub/onboarding/internal/server/endpoints"
	"github.com/sensorhub/onboarding/internal/server/endpoints/onboard"
)

// NewRouter assembles the HTTP API on top of an initialized core
func NewRouter(c *core.Core) chi.Router {
	r := chi.NewRouter()

	//---------------------------------------------------------------------------
	// API ROUTING (V1)
	//---------------------------------------------------------------------------
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(endpoints.MiddlewareAuth(c.Config().JWTSecret))

		r.Route("/onboard", func(r chi.Router) {
			r.Method(http.MethodPost, "/{serialNumber}", endpoints.NewEndpoint(c, onboard.Post, "onboard_device"))
			r.Method(http.MethodGet, "/{deviceGroup}/{serialNumber}", endpoints.NewEndpoint(c, onboard.Get, "get_onboarding_record"))
			r.Method(http.MethodDelete, "/{deviceGroup}/{serialNumber}", endpoints.NewEndpoint(c, onboard.Delete, "deprovision_device"))
		})
	})

	return r
}

// Run serves the onboarding API until the listener fails or the
// context is canceled
func Run(ctx context.Context, c *core.Core, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: NewRouter(c),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	return srv.ListenAndServe()
}
