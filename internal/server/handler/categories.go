package handler

import (
	"net/http"

	"github.com/alanyoungcy/polyhub/internal/domain"
)

// ListCategories returns the fixed category set.
// GET /api/categories
func ListCategories(w http.ResponseWriter, r *http.Request) {
	cats := domain.Categories()
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    cats,
		"count":   len(cats),
	})
}
