package stockreq

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ngshijun/clinic-inventory-manager/internal/platform/httpx"
	"github.com/ngshijun/clinic-inventory-manager/internal/shared"
)

// Handler wires HTTP endpoints for stock requests.
type Handler struct {
	logger   *slog.Logger
	store    *Store
	validate *validator.Validate
}

// NewHandler constructs a requests handler.
func NewHandler(logger *slog.Logger, store *Store) *Handler {
	return &Handler{logger: logger, store: store, validate: validator.New()}
}

// MountRoutes registers request routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/pending", h.pending)
	r.Route("/{requestID}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Patch("/", h.update)
		r.Delete("/", h.remove)
		r.Post("/approve", h.approve)
		r.Post("/cancel", h.cancel)
	})
}

type listResponse struct {
	Requests   []Request         `json:"requests"`
	Pagination shared.Pagination `json:"pagination"`
	Loading    bool              `json:"loading"`
	Error      string            `json:"error,omitempty"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var reqs []Request
	switch {
	case q.Get("q") != "":
		reqs = h.store.Search(q.Get("q"))
	case q.Get("status") != "":
		reqs = h.store.FilterByStatus(Status(q.Get("status")))
	case q.Get("date") != "":
		day, err := time.Parse("2006-01-02", q.Get("date"))
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be YYYY-MM-DD")
			return
		}
		reqs = h.store.FilterByDate(day)
	default:
		reqs = h.store.Search("")
	}
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	p := shared.NewPagination(page, perPage, len(reqs))
	httpx.JSON(w, http.StatusOK, listResponse{
		Requests:   shared.Paginate(reqs, p),
		Pagination: p,
		Loading:    h.store.Loading(),
		Error:      h.store.LastError(),
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in NewRequest
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req, err := h.store.Add(r.Context(), in)
	if err != nil {
		h.logger.Error("create request", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, req)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	req, err := h.store.Get(chi.URLParam(r, "requestID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var upd RequestUpdate
	if err := httpx.DecodeJSON(r, &upd); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	requestID := chi.URLParam(r, "requestID")
	if err := h.store.Update(r.Context(), requestID, upd); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req, err := h.store.Get(requestID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Remove(r.Context(), chi.URLParam(r, "requestID")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")
	if err := h.store.Approve(r.Context(), requestID); err != nil {
		if errors.Is(err, ErrNotPending) {
			httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
			return
		}
		h.logger.Error("approve request", slog.String("request_id", requestID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	req, err := h.store.Get(requestID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

type cancelRequest struct {
	Remark *string `json:"remark"`
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	var body cancelRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	requestID := chi.URLParam(r, "requestID")
	if err := h.store.Cancel(r.Context(), requestID, body.Remark); err != nil {
		if errors.Is(err, ErrNotPending) {
			httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
			return
		}
		httpx.RespondError(w, err)
		return
	}
	req, err := h.store.Get(requestID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) pending(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.store.Pending())
}
