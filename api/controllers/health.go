package controllers

import (
	"context"
	"net/http"

	"github.com/mariselaquino/tradepost-backend/api/responses"
	"github.com/mariselaquino/tradepost-backend/pkg/config"
	pkgerrors "github.com/mariselaquino/tradepost-backend/pkg/errors"
	"github.com/mariselaquino/tradepost-backend/pkg/logger"
)

// Pinger is the readiness surface of a backing resource.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Tradepost-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings each backing resource and fails closed when any is
// unreachable.
func HealthReady(cfg *config.Config, logg *logger.Logger, resources map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Tradepost-Env", cfg.App.Env)

		for name, resource := range resources {
			if resource == nil {
				continue
			}
			if err := resource.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resource unavailable").
						WithDetails(map[string]string{"resource": name}))
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
