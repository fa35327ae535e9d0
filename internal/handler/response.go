package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/JackBerck/guyub-rukun-sub001/internal/apperror"
	"github.com/JackBerck/guyub-rukun-sub001/internal/middleware"
	"github.com/JackBerck/guyub-rukun-sub001/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// respondError writes err with the status matching its kind.
// Validation errors use {"message", "errors": {field: [messages]}}.
func respondError(c *gin.Context, err error) {
	status := apperror.HTTPStatus(err)

	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Kind == apperror.KindValidation {
		c.JSON(status, gin.H{
			"message": appErr.Message,
			"errors":  appErr.Fields,
		})
		return
	}

	if status == http.StatusInternalServerError {
		logger.Log.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}

	c.JSON(status, gin.H{"error": apperror.PublicMessage(err)})
}

var jsonFieldNames sync.Once

// useJSONFieldNames makes binding errors report the request's JSON keys
// (receiver_id) instead of Go field names (ReceiverID)
func useJSONFieldNames() {
	jsonFieldNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

// respondBindError reports request binding failures per field
func respondBindError(c *gin.Context, err error) {
	fields := map[string][]string{}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			name := fe.Field()
			fields[name] = append(fields[name], name+" is "+fe.Tag())
		}
	} else {
		fields["body"] = []string{"invalid request body"}
	}

	logger.Log.Warn("Request binding failed",
		zap.String("path", c.FullPath()),
		zap.String("ip", c.ClientIP()),
		zap.Error(err),
	)

	c.JSON(http.StatusUnprocessableEntity, gin.H{
		"message": "the given data was invalid",
		"errors":  fields,
	})
}

// currentUser returns the authenticated user id or answers 401
func currentUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := middleware.UserIDFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return uuid.Nil, false
	}
	return userID, true
}

// pathUserID parses a :userId path parameter or answers 404
func pathUserID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return uuid.Nil, false
	}
	return id, true
}
