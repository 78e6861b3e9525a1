package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"lifeline/internal/domain"
	"lifeline/internal/donation"
	"lifeline/internal/platform/middleware"
	dErrors "lifeline/pkg/domain-errors"
	"lifeline/pkg/platform/httputil"
)

type scheduleDonationBody struct {
	ScheduledDate time.Time `json:"scheduled_date"`
	Units         int       `json:"units"`
}

func (h *Handler) handleScheduleDonation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body scheduleDonationBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	d, err := h.donations.Schedule(ctx, donation.ScheduleParams{
		DonorID:       middleware.GetUserID(ctx),
		ScheduledDate: body.ScheduledDate,
		Units:         body.Units,
	})
	if err != nil {
		h.writeServiceError(w, r, "schedule donation", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, d)
}

func (h *Handler) handleDonationHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	donations, err := h.donations.History(ctx, middleware.GetUserID(ctx))
	if err != nil {
		h.writeServiceError(w, r, "donation history", err)
		return
	}
	if donations == nil {
		donations = []*domain.Donation{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"donations": donations})
}
