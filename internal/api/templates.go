package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"waba-gateway/internal/auth"
	"waba-gateway/internal/models"
	"waba-gateway/internal/template"
)

type TemplateHandler struct {
	Service *template.Service
	log     logrus.FieldLogger
}

func NewTemplateHandler(service *template.Service, log logrus.FieldLogger) *TemplateHandler {
	return &TemplateHandler{Service: service, log: log}
}

func (h *TemplateHandler) Register(group *gin.RouterGroup) {
	group.POST("", h.CreateTemplate)
	group.GET("", h.ListTemplates)
	group.GET("/stats", h.GetStats)
	group.GET("/:id", h.GetTemplate)
	group.PUT("/:id", h.UpdateTemplate)
	group.DELETE("/:id", h.DeleteTemplate)
	group.POST("/:id/submit", h.SubmitTemplate)
}

func (h *TemplateHandler) CreateTemplate(c *gin.Context) {
	var req template.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	t, err := h.Service.Create(c.Request.Context(), auth.GetUserID(c), req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Template created successfully", "template": t})
}

func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	result, err := h.Service.List(c.Request.Context(), auth.GetUserID(c), template.ListQuery{
		Page:     page,
		Limit:    limit,
		Status:   models.Status(c.Query("status")),
		Category: models.Category(c.Query("category")),
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *TemplateHandler) GetStats(c *gin.Context) {
	stats, err := h.Service.Stats(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	t, err := h.Service.Get(c.Request.Context(), auth.GetUserID(c), c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *TemplateHandler) UpdateTemplate(c *gin.Context) {
	var req template.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	t, err := h.Service.Update(c.Request.Context(), auth.GetUserID(c), c.Param("id"), req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Template updated successfully", "template": t})
}

func (h *TemplateHandler) DeleteTemplate(c *gin.Context) {
	if err := h.Service.Delete(c.Request.Context(), auth.GetUserID(c), c.Param("id")); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Template deleted successfully"})
}

type submitRequest struct {
	WhatsAppBusinessAccountID string `json:"whatsapp_business_account_id"`
}

func (h *TemplateHandler) SubmitTemplate(c *gin.Context) {
	var req submitRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	t, err := h.Service.Submit(c.Request.Context(), auth.GetUserID(c), c.Param("id"), req.WhatsAppBusinessAccountID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Template submitted to WhatsApp", "template": t})
}
