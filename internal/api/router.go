package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"waba-gateway/internal/auth"
	"waba-gateway/internal/config"
	"waba-gateway/internal/template"
	"waba-gateway/internal/webhook"
	"waba-gateway/internal/whatsapp"
)

// DataStore is the read side of the message log used by the dashboard.
type DataStore interface {
	MessageLister
	ContactLister
}

// GraphClient is the subset of the Graph API client the routes use.
type GraphClient interface {
	TextSender
	TemplateSender
	RemoteTemplates
}

// WebSocketHub upgrades dashboard connections to the event stream.
type WebSocketHub interface {
	ServeWs(w http.ResponseWriter, r *http.Request)
}

type RouterDeps struct {
	Config    *config.Config
	Log       logrus.FieldLogger
	Templates *template.Service
	Data      DataStore
	Client    GraphClient
	Webhook   *webhook.Handler
	Hub       WebSocketHub
	JWT       *auth.JWTService
}

// SetupRouter wires every HTTP route of the gateway.
func SetupRouter(deps RouterDeps) *gin.Engine {
	log := deps.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(log), CORS(deps.Config.CORSOrigin))

	health := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"message":   "WhatsApp Business API gateway is running",
			"timestamp": time.Now().UTC(),
		})
	}
	r.GET("/health", health)

	authRequired := auth.Middleware(deps.JWT)

	// Webhook Routes
	if deps.Webhook != nil {
		deps.Webhook.Register(r.Group("/webhook"), webhook.NewVerifier(deps.Config.AppSecret), authRequired)
	}

	if deps.Hub != nil {
		r.GET("/ws", authRequired, func(c *gin.Context) {
			deps.Hub.ServeWs(c.Writer, c.Request)
		})
	}

	v1 := r.Group("/api/v1")
	v1.GET("/health", health)

	protected := v1.Group("", authRequired)
	{
		NewTemplateHandler(deps.Templates, log).Register(protected.Group("/templates"))

		dashboard := NewDashboardHandler(deps.Data, deps.Client, log)
		protected.GET("/messages", dashboard.GetMessages)
		protected.POST("/messages/send", dashboard.SendMessage)

		contacts := NewContactHandler(deps.Data, log)
		protected.GET("/contacts", contacts.GetContacts)
		protected.GET("/contacts/export", contacts.ExportContacts)

		broadcast := NewBroadcastHandler(deps.Templates, deps.Client, log)
		protected.POST("/broadcast", broadcast.SendBroadcast)

		remote := NewWhatsAppHandler(deps.Client, log)
		protected.GET("/whatsapp/templates", remote.GetTemplates)
		protected.DELETE("/whatsapp/templates", remote.DeleteTemplate)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
	return r
}

var _ GraphClient = (*whatsapp.Client)(nil)
