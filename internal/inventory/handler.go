package inventory

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ngshijun/clinic-inventory-manager/internal/platform/httpx"
	"github.com/ngshijun/clinic-inventory-manager/internal/shared"
)

// Handler wires HTTP endpoints for the inventory store.
type Handler struct {
	logger   *slog.Logger
	store    *Store
	validate *validator.Validate
}

// NewHandler constructs an inventory handler.
func NewHandler(logger *slog.Logger, store *Store) *Handler {
	return &Handler{logger: logger, store: store, validate: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/stats", h.stats)
	r.Get("/low-stock", h.lowStock)
	r.Get("/out-of-stock", h.outOfStock)
	r.Route("/{itemID}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Patch("/", h.update)
		r.Delete("/", h.remove)
		r.Post("/stock-in", h.stockIn)
		r.Post("/stock-out", h.stockOut)
		r.Put("/order", h.markOrdered)
		r.Delete("/order", h.clearOrder)
		r.Put("/non-order-reason", h.setReason)
	})
}

type listResponse struct {
	Items      []Item            `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
	Loading    bool              `json:"loading"`
	Error      string            `json:"error,omitempty"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items := h.store.Search(q.Get("q"))
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	p := shared.NewPagination(page, perPage, len(items))
	httpx.JSON(w, http.StatusOK, listResponse{
		Items:      shared.Paginate(items, p),
		Pagination: p,
		Loading:    h.store.Loading(),
		Error:      h.store.LastError(),
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in NewItem
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.store.Add(r.Context(), in)
	if err != nil {
		h.logger.Error("create item", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	item, err := h.store.Get(chi.URLParam(r, "itemID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var upd ItemUpdate
	if err := httpx.DecodeJSON(r, &upd); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	itemID := chi.URLParam(r, "itemID")
	if err := h.store.Update(r.Context(), itemID, upd); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.store.Get(itemID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Remove(r.Context(), chi.URLParam(r, "itemID")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type stockChangeRequest struct {
	Quantity       int64 `json:"quantity" validate:"gt=0"`
	ClearOrderDate bool  `json:"clear_order_date"`
}

func (h *Handler) stockIn(w http.ResponseWriter, r *http.Request) {
	var req stockChangeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	itemID := chi.URLParam(r, "itemID")
	if err := h.store.StockIn(r.Context(), itemID, req.Quantity, req.ClearOrderDate); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.respondItem(w, itemID)
}

func (h *Handler) stockOut(w http.ResponseWriter, r *http.Request) {
	var req stockChangeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	itemID := chi.URLParam(r, "itemID")
	if err := h.store.StockOut(r.Context(), itemID, req.Quantity); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.respondItem(w, itemID)
}

type markOrderedRequest struct {
	OrderDate *time.Time `json:"order_date"`
}

func (h *Handler) markOrdered(w http.ResponseWriter, r *http.Request) {
	var req markOrderedRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	itemID := chi.URLParam(r, "itemID")
	if err := h.store.MarkAsOrdered(r.Context(), itemID, req.OrderDate); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.respondItem(w, itemID)
}

func (h *Handler) clearOrder(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")
	if err := h.store.ClearOrderDate(r.Context(), itemID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.respondItem(w, itemID)
}

type reasonRequest struct {
	Reason *string `json:"reason"`
}

func (h *Handler) setReason(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	itemID := chi.URLParam(r, "itemID")
	if err := h.store.SetNonOrderReason(r.Context(), itemID, req.Reason); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.respondItem(w, itemID)
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.store.LowStock())
}

func (h *Handler) outOfStock(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.store.OutOfStock())
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.store.Stats())
}

func (h *Handler) respondItem(w http.ResponseWriter, itemID string) {
	item, err := h.store.Get(itemID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}
