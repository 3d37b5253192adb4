package middleware

import (
	"net/http"

	apperrors "github.com/carmasterapp/car-master/internal/errors"
	"github.com/carmasterapp/car-master/internal/httputil"
)

func writeErrorWithStatus(w http.ResponseWriter, status int, err *apperrors.AppError) {
	httputil.WriteErrorWithStatus(w, status, err)
}
