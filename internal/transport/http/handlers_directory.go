package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"lifeline/internal/directory"
	"lifeline/internal/domain"
	"lifeline/internal/match"
	"lifeline/internal/platform/middleware"
	dErrors "lifeline/pkg/domain-errors"
	"lifeline/pkg/geo"
	"lifeline/pkg/platform/httputil"
	"lifeline/pkg/platform/sentinel"
)

type upsertDonorBody struct {
	BloodType string          `json:"blood_type"`
	Location  *geo.Coordinate `json:"location"`
	Eligible  bool            `json:"eligible"`
}

// handleUpsertDonor registers the authenticated user as a donor.
func (h *Handler) handleUpsertDonor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body upsertDonorBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	profile := directory.Profile{
		ID:        middleware.GetUserID(ctx),
		BloodType: domain.BloodType(body.BloodType),
		Location:  body.Location,
		Eligible:  body.Eligible,
	}
	if err := h.directory.Upsert(profile); err != nil {
		h.writeServiceError(w, r, "upsert donor", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

func (h *Handler) handleUpdateLocation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var coord geo.Coordinate
	if err := json.NewDecoder(r.Body).Decode(&coord); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	if err := h.directory.UpdateLocation(ctx, middleware.GetUserID(ctx), coord); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "donor is not registered"))
			return
		}
		h.writeServiceError(w, r, "update donor location", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleNearbyDonors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
	lng, lngErr := strconv.ParseFloat(q.Get("lng"), 64)
	if latErr != nil || lngErr != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "lat and lng are required"))
		return
	}

	radiusKm := match.DefaultRadiusKm
	if raw := q.Get("radius_km"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid radius_km"))
			return
		}
		radiusKm = parsed
	}

	donors, err := h.directory.Nearby(r.Context(),
		domain.BloodType(q.Get("blood_type")),
		geo.Coordinate{Lat: lat, Lng: lng},
		radiusKm,
	)
	if err != nil {
		h.writeServiceError(w, r, "nearby donors", err)
		return
	}
	if donors == nil {
		donors = []directory.NearbyDonor{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"donors": donors})
}
