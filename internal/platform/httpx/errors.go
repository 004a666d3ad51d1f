package httpx

import (
	"net/http"

	"github.com/meridian-dist/meridian/internal/shared"
)

// RespondError maps a typed domain error to an HTTP problem response.
// Validation, invalid state and insufficient resource map to 400, missing
// references to 404, everything else to 500.
func RespondError(w http.ResponseWriter, err error) {
	switch shared.KindOf(err) {
	case shared.KindValidation:
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case shared.KindInvalidState:
		Problem(w, http.StatusBadRequest, "Invalid State", err.Error())
	case shared.KindInsufficientResource:
		Problem(w, http.StatusBadRequest, "Insufficient Resource", err.Error())
	case shared.KindNotFound:
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
