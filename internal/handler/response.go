package handler

import (
	"log/slog"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/quocanhngo/lighttalk/internal/apperror"
	"github.com/quocanhngo/lighttalk/internal/model"
)

// respondError writes err as {"error", "code"} with the status of its
// domain error. Anything that is not a domain error is logged and hidden
// behind a 500.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	appErr := apperror.From(err)
	if appErr.Kind == apperror.KindInternal {
		logger.Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
	}
	c.JSON(appErr.Status, model.ErrorResponse{Error: appErr.Message, Code: appErr.Code})
}

// respondBindError reports a request body or query that failed validation
func respondBindError(c *gin.Context, err error) {
	c.JSON(apperror.InvalidInput.Status, model.ErrorResponse{
		Error:   "Invalid request",
		Code:    apperror.InvalidInput.Code,
		Message: err.Error(),
	})
}

// pathID parses a positive integer path parameter. It writes the error
// response itself and reports false when the value is unusable.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		invalid := apperror.InvalidInput
		c.JSON(invalid.Status, model.ErrorResponse{Error: "invalid " + name, Code: invalid.Code})
		return 0, false
	}
	return id, true
}
