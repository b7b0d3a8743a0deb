package stockmove

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ngshijun/clinic-inventory-manager/internal/platform/httpx"
	"github.com/ngshijun/clinic-inventory-manager/internal/shared"
)

// Handler wires HTTP endpoints for the movement log.
type Handler struct {
	logger *slog.Logger
	store  *Store
}

// NewHandler constructs a movements handler.
func NewHandler(logger *slog.Logger, store *Store) *Handler {
	return &Handler{logger: logger, store: store}
}

// MountRoutes registers movement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Patch("/{movementID}/remark", h.updateRemark)
}

type listResponse struct {
	Movements  []Movement        `json:"movements"`
	Pagination shared.Pagination `json:"pagination"`
	Loading    bool              `json:"loading"`
	Error      string            `json:"error,omitempty"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	moves := h.store.Search(q.Get("q"))
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	p := shared.NewPagination(page, perPage, len(moves))
	httpx.JSON(w, http.StatusOK, listResponse{
		Movements:  shared.Paginate(moves, p),
		Pagination: p,
		Loading:    h.store.Loading(),
		Error:      h.store.LastError(),
	})
}

type remarkRequest struct {
	Remark string `json:"remark"`
}

func (h *Handler) updateRemark(w http.ResponseWriter, r *http.Request) {
	var req remarkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	movementID := chi.URLParam(r, "movementID")
	if err := h.store.UpdateRemark(r.Context(), movementID, req.Remark); err != nil {
		httpx.RespondError(w, err)
		return
	}
	move, err := h.store.Get(movementID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, move)
}
