package handler

import (
	"log/slog"
	"net/http"

	"github.com/averyhart/pettycoon/internal/catalog"
	"github.com/averyhart/pettycoon/internal/domain"
)

// CatalogHandler serves the static game catalog: purchasable eggs and store
// tiers.
type CatalogHandler struct {
	catalog *catalog.Catalog
	logger  *slog.Logger
}

// NewCatalogHandler creates a CatalogHandler.
func NewCatalogHandler(c *catalog.Catalog, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: c, logger: logger}
}

// catalogResponse bundles the full catalog in one payload.
type catalogResponse struct {
	Eggs  []domain.Egg       `json:"eggs"`
	Tiers []domain.StoreTier `json:"tiers"`
}

// GetCatalog returns every egg and store tier.
// GET /api/catalog
func (h *CatalogHandler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, catalogResponse{
		Eggs:  h.catalog.Eggs(),
		Tiers: h.catalog.Tiers(),
	})
}
