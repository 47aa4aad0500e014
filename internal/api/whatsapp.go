package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"waba-gateway/internal/whatsapp"
)

// RemoteTemplates reads and removes templates directly on the Graph API.
type RemoteTemplates interface {
	GetTemplates(ctx context.Context, wabaID string) ([]whatsapp.RemoteTemplate, error)
	DeleteTemplate(ctx context.Context, wabaID, templateName string) error
}

type WhatsAppHandler struct {
	Client RemoteTemplates
	log    logrus.FieldLogger
}

func NewWhatsAppHandler(client RemoteTemplates, log logrus.FieldLogger) *WhatsAppHandler {
	return &WhatsAppHandler{Client: client, log: log}
}

// GetTemplates lists the templates Meta holds for the business account.
func (h *WhatsAppHandler) GetTemplates(c *gin.Context) {
	templates, err := h.Client.GetTemplates(c.Request.Context(), c.Query("waba_id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if templates == nil {
		templates = []whatsapp.RemoteTemplate{}
	}
	c.JSON(http.StatusOK, gin.H{"data": templates})
}

// DeleteTemplate removes every language version of a template on Meta's side.
func (h *WhatsAppHandler) DeleteTemplate(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Template name is required"})
		return
	}

	if err := h.Client.DeleteTemplate(c.Request.Context(), c.Query("waba_id"), name); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Template deleted"})
}
