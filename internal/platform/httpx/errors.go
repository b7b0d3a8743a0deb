package httpx

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/ngshijun/clinic-inventory-manager/internal/gateway"
	"github.com/ngshijun/clinic-inventory-manager/internal/shared"
)

// RespondError maps store and gateway errors to RFC7807 responses. Unknown
// errors become opaque 500s.
func RespondError(w http.ResponseWriter, err error) {
	var verr validator.ValidationErrors
	switch {
	case errors.As(err, &verr):
		Problem(w, http.StatusBadRequest, "Validation Failed", verr.Error())
	case errors.Is(err, shared.ErrNotFound), errors.Is(err, gateway.ErrNoRows):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, gateway.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, gateway.ErrPermission):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
