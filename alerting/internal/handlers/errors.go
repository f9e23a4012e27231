package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"weaponwatch/alerting/internal/query"
	"weaponwatch/alerting/internal/repository"
)

// writeError maps domain errors onto HTTP status codes.
func writeError(ctx *gin.Context, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, repository.ErrNotFound):
		status = http.StatusNotFound
		message = "Alert not found"
	case errors.Is(err, repository.ErrIllegalTransition):
		status = http.StatusConflict
	case errors.Is(err, repository.ErrInvalidAlert), errors.Is(err, query.ErrUnknownSortKey):
		status = http.StatusBadRequest
	}
	ctx.JSON(status, gin.H{"error": message, "details": err.Error()})
}
