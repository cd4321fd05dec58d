package catalog

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/eoafashion/storefront-api/internal/common"
)

// Handler exposes public catalog endpoints.
type Handler struct {
	Currency       string
	DefaultPerPage int
}

// Products handles GET /api/v1/products with collection, category and gender filters.
func (h Handler) Products(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	all := List(Filter{
		Collection: q.Get("collection"),
		Category:   q.Get("category"),
		Gender:     q.Get("gender"),
	})
	page := common.ParsePage(r, h.DefaultPerPage)
	start, end := page.Bounds(len(all))
	w.Header().Set("X-Total-Count", strconv.Itoa(len(all)))
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       all[start:end],
		"currency":   h.Currency,
		"pagination": page.Meta(len(all)),
	})
}

// ProductDetail handles GET /api/v1/products/{id}.
func (h Handler) ProductDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	product, ok := Find(id)
	if !ok {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": product, "currency": h.Currency})
}
