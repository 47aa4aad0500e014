package api

import (
	"context"
	"encoding/csv"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"waba-gateway/internal/models"
)

// ContactLister reads contacts saved from inbound messages.
type ContactLister interface {
	ListContacts(ctx context.Context) ([]models.Contact, error)
}

type ContactHandler struct {
	Contacts ContactLister
	log      logrus.FieldLogger
}

func NewContactHandler(contacts ContactLister, log logrus.FieldLogger) *ContactHandler {
	return &ContactHandler{Contacts: contacts, log: log}
}

func (h *ContactHandler) GetContacts(c *gin.Context) {
	contacts, err := h.Contacts.ListContacts(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	// Return empty array instead of null
	if contacts == nil {
		contacts = []models.Contact{}
	}

	c.JSON(http.StatusOK, contacts)
}

// ExportContacts streams every contact as CSV.
func (h *ContactHandler) ExportContacts(c *gin.Context) {
	contacts, err := h.Contacts.ListContacts(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=contacts.csv")
	c.Status(http.StatusOK)

	writer := csv.NewWriter(c.Writer)
	_ = writer.Write([]string{"wa_id", "name", "created_at"})
	for _, contact := range contacts {
		_ = writer.Write([]string{contact.WaID, contact.Name, contact.CreatedAt.Format(time.RFC3339)})
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		h.log.WithError(err).Error("Error writing contacts export")
	}
}
