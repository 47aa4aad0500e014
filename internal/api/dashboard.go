package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"waba-gateway/internal/models"
)

const (
	defaultMessageLimit = 100
	maxMessageLimit     = 1000
)

// MessageLister reads the message log kept by the webhook and the client.
type MessageLister interface {
	ListMessages(ctx context.Context, limit int) ([]models.Message, error)
}

// TextSender sends a plain text message.
type TextSender interface {
	SendMessage(ctx context.Context, to, body string) error
}

type DashboardHandler struct {
	Messages MessageLister
	Client   TextSender
	log      logrus.FieldLogger
}

func NewDashboardHandler(messages MessageLister, client TextSender, log logrus.FieldLogger) *DashboardHandler {
	return &DashboardHandler{Messages: messages, Client: client, log: log}
}

func (h *DashboardHandler) GetMessages(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultMessageLimit)))
	if err != nil || limit < 1 {
		limit = defaultMessageLimit
	}
	if limit > maxMessageLimit {
		limit = maxMessageLimit
	}

	messages, err := h.Messages.ListMessages(c.Request.Context(), limit)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	c.JSON(http.StatusOK, messages)
}

type SendRequest struct {
	To      string `json:"to" binding:"required"`
	Content string `json:"content" binding:"required"`
}

func (h *DashboardHandler) SendMessage(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.Client.SendMessage(c.Request.Context(), req.To, req.Content); err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "Message sent"})
}
