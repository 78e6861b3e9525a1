package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lifeline/internal/domain"
	dErrors "lifeline/pkg/domain-errors"
	"lifeline/pkg/platform/httputil"
)

// handleAssignDelivery records that a courier picked up the request: the
// delivery starts in assigned, which moves the request into in-delivery.
func (h *Handler) handleAssignDelivery(w http.ResponseWriter, r *http.Request) {
	req, err := h.requests.HandleDeliveryUpdate(r.Context(),
		chi.URLParam(r, "requestID"), domain.DeliveryAssigned)
	if err != nil {
		h.writeServiceError(w, r, "assign delivery", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, req)
}

type deliveryStatusBody struct {
	Status string `json:"status"`
}

func (h *Handler) handleDeliveryStatus(w http.ResponseWriter, r *http.Request) {
	var body deliveryStatusBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	req, err := h.requests.HandleDeliveryUpdate(r.Context(),
		chi.URLParam(r, "requestID"), domain.DeliveryStatus(body.Status))
	if err != nil {
		h.writeServiceError(w, r, "update delivery status", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, req)
}
