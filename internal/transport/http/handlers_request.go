package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lifeline/internal/domain"
	"lifeline/internal/platform/middleware"
	"lifeline/internal/request"
	dErrors "lifeline/pkg/domain-errors"
	"lifeline/pkg/geo"
	"lifeline/pkg/platform/httputil"
)

type createRequestBody struct {
	BloodType string          `json:"blood_type"`
	Units     int             `json:"units"`
	Urgency   string          `json:"urgency"`
	Location  *geo.Coordinate `json:"location"`
}

func (h *Handler) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var body createRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	req, err := h.requests.Create(ctx, request.CreateParams{
		RecipientID: userID,
		BloodType:   domain.BloodType(body.BloodType),
		Units:       body.Units,
		Urgency:     domain.Urgency(body.Urgency),
		Location:    body.Location,
	})
	if err != nil {
		h.writeServiceError(w, r, "create blood request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, req)
}

func (h *Handler) handleListRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.RequestFilter{
		Status:    domain.RequestStatus(q.Get("status")),
		BloodType: domain.BloodType(q.Get("blood_type")),
		Urgency:   domain.Urgency(q.Get("urgency")),
	}
	if q.Get("mine") == "true" {
		filter.RecipientID = middleware.GetUserID(r.Context())
	}

	reqs, err := h.requests.List(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, "list blood requests", err)
		return
	}
	if reqs == nil {
		reqs = []*domain.BloodRequest{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"requests": reqs})
}

func (h *Handler) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.requests.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, "get blood request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, req)
}

type respondBody struct {
	Decision string `json:"decision"`
}

func (h *Handler) handleRespond(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	donorID := middleware.GetUserID(ctx)

	var body respondBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	req, donation, err := h.requests.Respond(ctx, chi.URLParam(r, "id"), donorID, request.Decision(body.Decision))
	if err != nil {
		h.writeServiceError(w, r, "respond to blood request", err)
		return
	}

	resp := map[string]any{"request": req}
	if donation != nil {
		resp["donation"] = donation
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleCancelRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := h.requests.Cancel(ctx, chi.URLParam(r, "id"), middleware.GetUserID(ctx))
	if err != nil {
		h.writeServiceError(w, r, "cancel blood request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, req)
}

// writeServiceError logs internal failures with their request id and hands
// everything to the shared error writer.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, action string, err error) {
	ctx := r.Context()
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "request failed",
			"action", action,
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}
