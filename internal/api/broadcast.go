package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"waba-gateway/internal/auth"
	"waba-gateway/internal/models"
	"waba-gateway/internal/template"
	"waba-gateway/internal/whatsapp"
)

// TemplateSender sends an approved template to one recipient.
type TemplateSender interface {
	SendTemplateMessage(ctx context.Context, to, templateName, languageCode string, components ...whatsapp.ComponentObj) error
}

type BroadcastHandler struct {
	Templates *template.Service
	Client    TemplateSender
	log       logrus.FieldLogger
}

func NewBroadcastHandler(templates *template.Service, client TemplateSender, log logrus.FieldLogger) *BroadcastHandler {
	return &BroadcastHandler{Templates: templates, Client: client, log: log}
}

type BroadcastRequest struct {
	TemplateID string   `json:"template_id" binding:"required"`
	Contacts   []string `json:"contacts" binding:"required,min=1"` // List of WA IDs
	Parameters []string `json:"parameters"`                        // BODY values in {{N}} order
}

// SendBroadcast sends one of the caller's APPROVED templates to every contact.
func (h *BroadcastHandler) SendBroadcast(c *gin.Context) {
	var req BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	t, err := h.Templates.Get(ctx, auth.GetUserID(c), req.TemplateID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if t.Status != models.StatusApproved {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("template is %s, only APPROVED templates can be sent", t.Status)})
		return
	}

	var components []whatsapp.ComponentObj
	if len(req.Parameters) > 0 {
		params := make([]whatsapp.ParameterObj, len(req.Parameters))
		for i, p := range req.Parameters {
			params[i] = whatsapp.ParameterObj{Type: "text", Text: p}
		}
		components = []whatsapp.ComponentObj{{Type: "body", Parameters: params}}
	}

	successCount := 0
	failed := []string{}
	for _, waID := range req.Contacts {
		if err := h.Client.SendTemplateMessage(ctx, waID, t.Name, t.Language, components...); err != nil {
			h.log.WithError(err).WithField("to", waID).Warn("Failed to broadcast")
			failed = append(failed, waID)
			continue
		}
		successCount++
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "Broadcast processed",
		"sent_to": successCount,
		"failed":  failed,
		"total":   len(req.Contacts),
	})
}
