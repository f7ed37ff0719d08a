package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error bodies are {"message": ...}, or {"errors": [...]} for field
// validation failures. Request ids travel in the X-Request-Id header only.

func RespondError(ctx *gin.Context, status int, message string) {
	ctx.JSON(status, gin.H{"message": message})
}

func RespondBadRequest(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusBadRequest, message)
}

func RespondUnauthorized(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusUnauthorized, message)
}

func RespondForbidden(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusForbidden, message)
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, message)
}

func RespondConflict(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusConflict, message)
}

// RespondInternal never leaks store or runtime detail to the caller; the
// cause is logged server-side where the failure happened.
func RespondInternal(ctx *gin.Context) {
	RespondError(ctx, http.StatusInternalServerError, "Internal server error")
}

func RespondValidation(ctx *gin.Context, fields []FieldError) {
	ctx.JSON(http.StatusBadRequest, gin.H{"errors": fields})
}
