package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"waba-gateway/internal/template"
	"waba-gateway/internal/whatsapp"
)

// writeError maps domain errors onto HTTP responses.
func writeError(c *gin.Context, log logrus.FieldLogger, err error) {
	var verrs template.ValidationErrors
	var stateErr *template.StateError
	var apiErr *whatsapp.APIError

	switch {
	case errors.As(err, &verrs):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "details": verrs})
	case errors.Is(err, template.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": template.ErrNotFound.Error()})
	case errors.Is(err, template.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": template.ErrConflict.Error()})
	case errors.As(err, &stateErr):
		c.JSON(http.StatusConflict, gin.H{"error": stateErr.Error(), "status": stateErr.Status})
	case errors.As(err, &apiErr):
		log.WithError(err).Warn("WhatsApp API request failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": apiErr.Error()})
	default:
		log.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
