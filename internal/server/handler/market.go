package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/polyhub/internal/domain"
	"github.com/alanyoungcy/polyhub/internal/service"
)

// MarketService defines the methods that the market handler requires from the
// service layer. It is declared locally so the handler package does not depend
// on the concrete service implementation.
type MarketService interface {
	List(ctx context.Context, req service.Request) service.Response
	Get(ctx context.Context, id string, target int) (domain.Market, error)
}

// MarketHandler serves market-related HTTP endpoints.
type MarketHandler struct {
	markets MarketService
	limits  Limits
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given service and logger.
func NewMarketHandler(markets MarketService, limits Limits, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		limits:  limits,
		logger:  logHandler(logger, "market"),
	}
}

// ListMarkets returns the aggregated listing. Upstream trouble is reported
// in the body; the status is always 200.
// GET /api/markets?type=featured&limit=100&refresh=true
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	req := service.Request{
		Type:    service.ParseListType(r.URL.Query().Get("type")),
		Limit:   parseLimit(r, h.limits),
		Refresh: parseBool(r, "refresh"),
	}
	writeJSON(w, http.StatusOK, h.markets.List(r.Context(), req))
}

// GetMarket returns a single listing by its ID.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	m, err := h.markets.Get(r.Context(), id, h.limits.Default)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "market not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get market failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "upstream unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": m})
}
