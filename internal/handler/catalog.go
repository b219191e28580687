package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/forez0/bikeshop/internal/domain/catalog"
)

// ListBikes returns the catalog, optionally filtered by bike type.
func (h *Handler) ListBikes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	bikeType := r.URL.Query().Get("type")
	if bikeType != "" {
		if err := h.validate.Var(bikeType, "oneof=mountain road city"); err != nil {
			writeError(w, http.StatusBadRequest, "unknown bike type")
			return
		}
	}

	bikes, err := h.bikes.List(ctx, catalog.BikeType(bikeType))
	if err != nil {
		zctx.From(ctx).Error("list bikes failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]bikeResponse, len(bikes))
	for i := range bikes {
		resp[i] = bikeToResponse(&bikes[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetBike returns a single catalog bike by its ID.
func (h *Handler) GetBike(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	bike, err := h.bikes.GetByID(ctx, id)
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "bike not found")
		return
	}
	if err != nil {
		zctx.From(ctx).Error("get bike failed", zap.String("bike_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, bikeToResponse(bike))
}
