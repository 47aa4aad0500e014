package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"waba-gateway/internal/config"
	"waba-gateway/internal/models"
	"waba-gateway/internal/template"
	pkgmodels "waba-gateway/pkg/models"
)

// MessageRecorder persists inbound traffic.
type MessageRecorder interface {
	SaveMessage(ctx context.Context, m *models.Message) error
	UpsertContact(ctx context.Context, waID, name string) error
}

// CredentialReporter tells which Graph API credentials are configured.
type CredentialReporter interface {
	ConfigStatus() map[string]bool
}

// MessageSender sends a plain text message.
type MessageSender interface {
	SendMessage(ctx context.Context, to, body string) error
}

// TemplateStatusUpdater applies provider review results to stored templates.
type TemplateStatusUpdater interface {
	ApplyStatusUpdate(ctx context.Context, u template.StatusUpdate) (*models.Template, error)
}

// Notifier pushes events to connected dashboards.
type Notifier interface {
	NotifyMessage(msg models.Message)
	NotifyTemplateStatus(t *models.Template)
}

type Deps struct {
	Recorder    MessageRecorder
	Templates   TemplateStatusUpdater
	Sender      MessageSender
	Notifier    Notifier
	Credentials CredentialReporter
	Log         logrus.FieldLogger
}

type Handler struct {
	Config *config.Config
	deps   Deps
	log    logrus.FieldLogger

	mu            sync.Mutex
	lastEventAt   time.Time
	eventsHandled int64
}

func NewHandler(cfg *config.Config, deps Deps) *Handler {
	log := deps.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		Config: cfg,
		deps:   deps,
		log:    log,
	}
}

// Register mounts the webhook routes on group (usually /webhook). The
// diagnostic routes that reveal configuration or send messages sit behind
// authRequired.
func (h *Handler) Register(group *gin.RouterGroup, verifier *Verifier, authRequired gin.HandlerFunc) {
	group.GET("", h.VerifyWebhook)
	group.POST("", RawBody(h.Config.WebhookMaxBodyBytes), Signature(verifier, h.log), h.HandleMessage)
	group.GET("/status", h.Status)

	diagnostics := group.Group("", authRequired)
	diagnostics.GET("/test", h.TestWebhook)
	diagnostics.POST("/send-test", h.SendTest)
}

// VerifyWebhook answers Meta's subscription handshake. Anything other than a
// subscribe request carrying the configured token is refused with 403.
func (h *Handler) VerifyWebhook(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && h.Config.VerifyToken != "" && token == h.Config.VerifyToken {
		h.log.Info("Webhook verified successfully")
		c.String(http.StatusOK, challenge)
		return
	}

	h.log.WithField("mode", mode).Warn("Webhook verification failed")
	c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "Verification failed"})
}

// HandleMessage processes a signed delivery. It always acknowledges with 200
// so Meta does not retry; processing problems are only logged.
func (h *Handler) HandleMessage(c *gin.Context) {
	body, _ := GetRawBody(c)

	var payload pkgmodels.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.log.WithError(err).Error("Error parsing webhook payload")
		c.JSON(http.StatusOK, gin.H{"success": false, "error": "Error processing webhook"})
		return
	}

	h.markEvent()
	if payload.Object != "whatsapp_business_account" {
		h.log.WithField("object", payload.Object).Info("Ignoring webhook for unsupported object")
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Webhook received successfully"})
		return
	}

	ctx := c.Request.Context()
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			h.processChange(ctx, entry.ID, change)
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Webhook received successfully"})
}

func (h *Handler) processChange(ctx context.Context, accountID string, change pkgmodels.WebhookChange) {
	if change.Field == "message_template_status_update" {
		h.processTemplateStatus(ctx, accountID, change.Value)
		return
	}

	names := make(map[string]string, len(change.Value.Contacts))
	for _, contact := range change.Value.Contacts {
		names[contact.WaID] = contact.Profile.Name
	}

	for _, message := range change.Value.Messages {
		h.processMessage(ctx, message, names[message.From])
	}
	for _, status := range change.Value.Statuses {
		h.processStatus(ctx, status)
	}
}

func (h *Handler) processMessage(ctx context.Context, message pkgmodels.IncomingMessage, profileName string) {
	content := describeMessage(message)
	h.log.WithFields(logrus.Fields{"from": message.From, "type": message.Type, "id": message.ID}).Info("Received WhatsApp message")

	msg := models.Message{
		WaID:    message.ID,
		Sender:  message.From,
		Content: content,
		Type:    message.Type,
		Status:  "received",
	}

	if h.deps.Recorder != nil {
		if err := h.deps.Recorder.SaveMessage(ctx, &msg); err != nil {
			h.log.WithError(err).WithField("id", message.ID).Error("Error storing message")
		}
		if err := h.deps.Recorder.UpsertContact(ctx, message.From, profileName); err != nil {
			h.log.WithError(err).WithField("wa_id", message.From).Error("Error saving contact")
		}
	}

	if h.deps.Notifier != nil {
		h.deps.Notifier.NotifyMessage(msg)
	}
}

func (h *Handler) processStatus(ctx context.Context, status pkgmodels.MessageStatus) {
	h.log.WithFields(logrus.Fields{"id": status.ID, "status": status.Status, "recipient": status.RecipientId}).Debug("Message status update")
	if h.deps.Recorder == nil {
		return
	}

	err := h.deps.Recorder.SaveMessage(ctx, &models.Message{
		WaID:   status.ID,
		Sender: status.RecipientId,
		Type:   "status",
		Status: status.Status,
	})
	if err != nil {
		h.log.WithError(err).WithField("id", status.ID).Error("Error storing message status")
	}
}

func (h *Handler) processTemplateStatus(ctx context.Context, accountID string, value pkgmodels.WebhookValue) {
	fields := logrus.Fields{
		"whatsapp_template_id": value.MessageTemplateID.String(),
		"name":                 value.MessageTemplateName,
		"event":                value.Event,
	}
	if h.deps.Templates == nil {
		h.log.WithFields(fields).Warn("Template status update received but no template service is configured")
		return
	}

	t, err := h.deps.Templates.ApplyStatusUpdate(ctx, template.StatusUpdate{
		ExternalID:        value.MessageTemplateID.String(),
		BusinessAccountID: accountID,
		Name:              value.MessageTemplateName,
		Language:          value.MessageTemplateLanguage,
		Event:             value.Event,
		Reason:            value.Reason,
	})
	if err != nil {
		h.log.WithError(err).WithFields(fields).Error("Error applying template status update")
		return
	}
	if t != nil && h.deps.Notifier != nil {
		h.deps.Notifier.NotifyTemplateStatus(t)
	}
}

func describeMessage(message pkgmodels.IncomingMessage) string {
	media := func(kind string, m *pkgmodels.MediaMessage, extra string) string {
		if m == nil {
			return "[" + kind + "]"
		}
		content := "[" + kind + "]:" + m.ID
		if extra != "" {
			content += ":" + extra
		}
		return content
	}

	switch message.Type {
	case "text":
		if message.Text != nil {
			return message.Text.Body
		}
	case "image":
		if message.Image != nil {
			return media("image", message.Image, message.Image.Caption)
		}
	case "video":
		if message.Video != nil {
			return media("video", message.Video, message.Video.Caption)
		}
	case "audio":
		return media("audio", message.Audio, "")
	case "document":
		if message.Document != nil {
			return media("document", message.Document, message.Document.Filename)
		}
	case "interactive":
		if message.Interactive != nil {
			if r := message.Interactive.ButtonReply; r != nil {
				return r.Title
			}
			if r := message.Interactive.ListReply; r != nil {
				return r.Title
			}
		}
	}
	return "[" + message.Type + "]"
}

func (h *Handler) markEvent() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastEventAt = time.Now().UTC()
	h.eventsHandled++
}

// TestWebhook reports which webhook and Graph API settings are present.
func (h *Handler) TestWebhook(c *gin.Context) {
	scheme := "http"
	if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}

	var creds map[string]bool
	if h.deps.Credentials != nil {
		creds = h.deps.Credentials.ConfigStatus()
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Webhook configuration status",
		"data": gin.H{
			"configured":        creds["hasAccessToken"] && creds["hasPhoneNumberId"],
			"phoneNumberId":     creds["hasPhoneNumberId"],
			"accessToken":       creds["hasAccessToken"],
			"businessAccountId": creds["hasBusinessAccountId"],
			"verifyTokenSet":    h.Config.VerifyToken != "",
			"appSecretSet":      h.Config.AppSecret != "",
			"webhookUrl":        scheme + "://" + c.Request.Host + "/webhook",
			"environment":       h.Config.GinMode,
		},
	})
}

func (h *Handler) Status(c *gin.Context) {
	h.mu.Lock()
	lastEventAt, handled := h.lastEventAt, h.eventsHandled
	h.mu.Unlock()

	data := gin.H{
		"status":                "active",
		"endpoint":              "/webhook",
		"methods":               []string{http.MethodGet, http.MethodPost},
		"verification":          "enabled",
		"signatureVerification": "enabled",
		"eventsHandled":         handled,
	}
	if !lastEventAt.IsZero() {
		data["lastEventAt"] = lastEventAt
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Webhook is active and receiving messages",
		"data":    data,
	})
}

type sendTestRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Message     string `json:"message"`
}

// SendTest sends a plain text message to check the outbound credentials.
func (h *Handler) SendTest(c *gin.Context) {
	var req sendTestRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PhoneNumber == "" || req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Phone number and message are required"})
		return
	}
	if h.deps.Sender == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "WhatsApp client is not configured"})
		return
	}

	phone := strings.TrimPrefix(req.PhoneNumber, "+")
	if err := h.deps.Sender.SendMessage(c.Request.Context(), phone, req.Message); err != nil {
		h.log.WithError(err).WithField("to", phone).Error("Test message failed")
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "WhatsApp message sent successfully"})
}
