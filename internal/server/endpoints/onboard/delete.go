package onboard

import (
	"context"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/sensorhub/onboarding/internal/core"
	"github.com/sensorhub/onboarding/pkg/onboarding"
)

// Delete decommissions a device; idempotent, an unknown device is
// still a success
func Delete(ctx context.Context, c *core.Core, w http.ResponseWriter, r *http.Request) (result interface{}, code int, err error) {
	group := chi.URLParam(r, "deviceGroup")
	serial := chi.URLParam(r, "serialNumber")

	if group == "" {
		return nil, http.StatusBadRequest, &onboarding.ValidationError{Field: "deviceGroup", Reason: "must not be empty"}
	}

	if serial == "" {
		return nil, http.StatusBadRequest, &onboarding.ValidationError{Field: "serialNumber", Reason: "must not be empty"}
	}

	if err = c.Manager().Deprovision(ctx, group, serial); err != nil {
		return nil, 0, err
	}

	return "deprovisioned", http.StatusOK, nil
}
