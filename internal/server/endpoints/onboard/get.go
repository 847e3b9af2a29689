package onboard

import (
	"context"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/sensorhub/onboarding/internal/core"
	"github.com/sensorhub/onboarding/pkg/onboarding"
)

// Get returns the onboarding ledger record for a device; records
// never contain key material
func Get(ctx context.Context, c *core.Core, w http.ResponseWriter, r *http.Request) (result interface{}, code int, err error) {
	group := chi.URLParam(r, "deviceGroup")
	serial := chi.URLParam(r, "serialNumber")

	if group == "" {
		return nil, http.StatusBadRequest, &onboarding.ValidationError{Field: "deviceGroup", Reason: "must not be empty"}
	}

	if serial == "" {
		return nil, http.StatusBadRequest, &onboarding.ValidationError{Field: "serialNumber", Reason: "must not be empty"}
	}

	rec, err := c.Ledger().Get(ctx, group, serial)
	if err != nil {
		return nil, 0, err
	}

	return rec, http.StatusOK, nil
}
