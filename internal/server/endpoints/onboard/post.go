package onboard

import (
	"context"
	"net/http"

	"github.com/go-chi/chi"
	jsoniter "github.com/json-iterator/go"
	"github.com/sensorhub/onboarding/internal/core"
	"github.com/sensorhub/onboarding/internal/server/endpoints"
	"github.com/sensorhub/onboarding/pkg/onboarding"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type postBody struct {
	DeviceGroup    string `json:"device_group"`
	TopicNamespace string `json:"topic_namespace"`
}

// Post provisions the device identified by the URL serial number.
// The response carries private key material exactly once, on the run
// that issued the credential.
func Post(ctx context.Context, c *core.Core, w http.ResponseWriter, r *http.Request) (result interface{}, code int, err error) {
	var body postBody
	if err = json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, http.StatusBadRequest, &onboarding.ValidationError{Field: "body", Reason: "malformed payload"}
	}

	req := onboarding.Request{
		DeviceGroup:    body.DeviceGroup,
		SerialNumber:   chi.URLParam(r, "serialNumber"),
		TopicNamespace: body.TopicNamespace,
	}

	if caller, ok := ctx.Value(endpoints.CKCaller).(string); ok {
		req.CallerIdentity = caller
	}

	res, err := c.Manager().Onboard(ctx, req)
	if err != nil {
		return nil, 0, err
	}

	return res, http.StatusOK, nil
}
