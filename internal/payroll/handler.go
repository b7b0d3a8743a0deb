package payroll

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ngshijun/clinic-inventory-manager/internal/platform/httpx"
	"github.com/ngshijun/clinic-inventory-manager/internal/shared"
)

// Handler wires HTTP endpoints for payroll. Access control is mounted by the
// router; every route here assumes an admin session.
type Handler struct {
	logger   *slog.Logger
	store    *Store
	validate *validator.Validate
}

// NewHandler constructs a payroll handler.
func NewHandler(logger *slog.Logger, store *Store) *Handler {
	return &Handler{logger: logger, store: store, validate: validator.New()}
}

// MountRoutes registers payroll routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/report", h.report)
	r.Route("/{employeeID}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Patch("/", h.update)
		r.Delete("/", h.remove)
	})
}

type listResponse struct {
	Employees        []Employee        `json:"employees"`
	Pagination       shared.Pagination `json:"pagination"`
	TotalEmployees   int               `json:"total_employees"`
	TotalBasicSalary float64           `json:"total_basic_salary"`
	Loading          bool              `json:"loading"`
	Error            string            `json:"error,omitempty"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	employees := h.store.Search(q.Get("q"))
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	p := shared.NewPagination(page, perPage, len(employees))
	httpx.JSON(w, http.StatusOK, listResponse{
		Employees:        shared.Paginate(employees, p),
		Pagination:       p,
		TotalEmployees:   h.store.TotalEmployees(),
		TotalBasicSalary: h.store.TotalBasicSalary(),
		Loading:          h.store.Loading(),
		Error:            h.store.LastError(),
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in NewEmployee
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	if err := in.Validate(h.validate); err != nil {
		httpx.RespondError(w, err)
		return
	}
	employee, err := h.store.Add(r.Context(), in)
	if err != nil {
		h.logger.Error("create employee", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, employee)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	employee, err := h.store.Get(chi.URLParam(r, "employeeID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, employee)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var upd EmployeeUpdate
	if err := httpx.DecodeJSON(r, &upd); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	if err := h.validate.Struct(upd); err != nil {
		httpx.RespondError(w, err)
		return
	}
	employeeID := chi.URLParam(r, "employeeID")
	if err := h.store.Update(r.Context(), employeeID, upd); err != nil {
		httpx.RespondError(w, err)
		return
	}
	employee, err := h.store.Get(employeeID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, employee)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Remove(r.Context(), chi.URLParam(r, "employeeID")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reportResponse struct {
	Lines   []Line  `json:"lines"`
	Summary Summary `json:"summary"`
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	lines, summary := h.store.Report()
	httpx.JSON(w, http.StatusOK, reportResponse{Lines: lines, Summary: summary})
}
