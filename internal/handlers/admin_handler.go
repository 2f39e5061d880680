package handlers

import (
	"context"
	"net/http"

	"github.com/chamapay/backend/internal/models"
)

type TotalsService interface {
	GroupStats(ctx context.Context) (*models.GroupStats, error)
	Drift(ctx context.Context) ([]models.TotalsDrift, error)
}

type AdminHandler struct {
	totals TotalsService
}

func NewAdminHandler(totals TotalsService) *AdminHandler {
	return &AdminHandler{totals: totals}
}

// GroupStats
// @Summary Group statistics
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{success=bool,data=models.GroupStats}
// @Failure 403 {object} services.ErrorResponse
// @Router /admin/stats [get]
func (h *AdminHandler) GroupStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.totals.GroupStats(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": stats})
}

// TotalsDrift lists members whose cached totals disagree with their transactions
// @Summary Totals drift report
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{success=bool,data=[]models.TotalsDrift}
// @Router /admin/totals/drift [get]
func (h *AdminHandler) TotalsDrift(w http.ResponseWriter, r *http.Request) {
	drift, err := h.totals.Drift(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if drift == nil {
		drift = []models.TotalsDrift{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": drift})
}
