package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"waba-gateway/internal/config"
	"waba-gateway/internal/models"
	"waba-gateway/internal/template"
)

// MessageLog persists outbound messages next to the inbound ones.
type MessageLog interface {
	SaveMessage(ctx context.Context, m *models.Message) error
}

type Client struct {
	token         string
	phoneNumberID string
	wabaID        string
	baseURL       string
	httpClient    *http.Client
	messages      MessageLog
	log           logrus.FieldLogger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithMessageLog records every message sent through the client.
func WithMessageLog(l MessageLog) Option {
	return func(c *Client) { c.messages = l }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.log = l }
}

func NewClient(cfg *config.Config, opts ...Option) *Client {
	c := &Client{
		token:         cfg.WhatsAppToken,
		phoneNumberID: cfg.PhoneNumberID,
		wabaID:        cfg.WhatsAppBusinessAccountID,
		baseURL:       strings.TrimRight(cfg.GraphBaseURL(), "/"),
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		log:           logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// --- Message Structures ---

type GenericMessage struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	RecipientType    string       `json:"recipient_type,omitempty"`
	Text             *TextObj     `json:"text,omitempty"`
	Template         *TemplateObj `json:"template,omitempty"`
}

type TextObj struct {
	Body       string `json:"body"`
	PreviewUrl bool   `json:"preview_url,omitempty"`
}

type TemplateObj struct {
	Name       string         `json:"name"`
	Language   LanguageObj    `json:"language"`
	Components []ComponentObj `json:"components,omitempty"`
}

type LanguageObj struct {
	Code string `json:"code"`
}

type ComponentObj struct {
	Type       string         `json:"type"`
	SubType    string         `json:"sub_type,omitempty"`
	Parameters []ParameterObj `json:"parameters"`
	Index      string         `json:"index,omitempty"` // For buttons
}

type ParameterObj struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type SendResponse struct {
	MessagingProduct string `json:"messaging_product"`
	Contacts         []struct {
		Input string `json:"input"`
		WaID  string `json:"wa_id"`
	} `json:"contacts"`
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// APIError is the error envelope returned by the Graph API.
type APIError struct {
	Status    int    `json:"-"`
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      int    `json:"code"`
	FBTraceID string `json:"fbtrace_id"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("whatsapp api error: status %d", e.Status)
	}
	return fmt.Sprintf("whatsapp api error: status %d: %s (type=%s code=%d)", e.Status, e.Message, e.Type, e.Code)
}

func decodeAPIError(status int, body []byte) *APIError {
	var envelope struct {
		Error *APIError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Error == nil {
		return &APIError{Status: status, Message: strings.TrimSpace(string(body))}
	}
	envelope.Error.Status = status
	return envelope.Error
}

// --- Helper Functions ---

func (c *Client) sendRequest(ctx context.Context, method, endpoint string, body interface{}) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return respBody, decodeAPIError(resp.StatusCode, respBody)
	}

	return respBody, nil
}

// --- Messaging Methods ---

func (c *Client) SendRawMessage(ctx context.Context, msg GenericMessage) (*SendResponse, error) {
	if c.phoneNumberID == "" {
		return nil, fmt.Errorf("phone number id is not configured")
	}
	if msg.MessagingProduct == "" {
		msg.MessagingProduct = "whatsapp"
	}

	resp, err := c.sendRequest(ctx, http.MethodPost, "/"+c.phoneNumberID+"/messages", msg)
	if err != nil {
		c.log.WithError(err).WithField("to", msg.To).Error("Failed to send WhatsApp message")
		return nil, err
	}

	var out SendResponse
	if err := json.Unmarshal(resp, &out); err != nil {
		return nil, fmt.Errorf("decode send response: %w", err)
	}

	c.record(ctx, msg, &out)
	return &out, nil
}

// record stores the outbound message with the recipient in Sender so the
// dashboard can group conversations by phone number.
func (c *Client) record(ctx context.Context, msg GenericMessage, resp *SendResponse) {
	if c.messages == nil {
		return
	}

	content := fmt.Sprintf("%s message", msg.Type)
	if msg.Text != nil {
		content = msg.Text.Body
	} else if msg.Template != nil {
		content = "Template: " + msg.Template.Name
	}

	waID := "outgoing-" + msg.To
	if len(resp.Messages) > 0 && resp.Messages[0].ID != "" {
		waID = resp.Messages[0].ID
	}

	err := c.messages.SaveMessage(ctx, &models.Message{
		WaID:    waID,
		Sender:  msg.To,
		Content: content,
		Type:    msg.Type,
		Status:  "sent",
	})
	if err != nil {
		c.log.WithError(err).Warn("Failed to record outbound message")
	}
}

func (c *Client) SendMessage(ctx context.Context, to, body string) error {
	msg := GenericMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text: &TextObj{
			Body: body,
		},
	}
	_, err := c.SendRawMessage(ctx, msg)
	return err
}

func (c *Client) SendTemplateMessage(ctx context.Context, to, templateName, languageCode string, components ...ComponentObj) error {
	msg := GenericMessage{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "template",
		Template: &TemplateObj{
			Name: templateName,
			Language: LanguageObj{
				Code: languageCode,
			},
			Components: components,
		},
	}
	_, err := c.SendRawMessage(ctx, msg)
	return err
}

// --- Template Management Methods ---

// RemoteTemplate is a message template as listed by the Graph API.
type RemoteTemplate struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	Language       string             `json:"language"`
	Status         models.Status      `json:"status"`
	Category       models.Category    `json:"category"`
	RejectedReason string             `json:"rejected_reason,omitempty"`
	Components     []models.Component `json:"components"`
}

func (c *Client) account(wabaID string) (string, error) {
	if wabaID == "" {
		wabaID = c.wabaID
	}
	if wabaID == "" {
		return "", fmt.Errorf("whatsapp business account id is not configured")
	}
	return wabaID, nil
}

func (c *Client) GetTemplates(ctx context.Context, wabaID string) ([]RemoteTemplate, error) {
	wabaID, err := c.account(wabaID)
	if err != nil {
		return nil, err
	}

	resp, err := c.sendRequest(ctx, http.MethodGet, "/"+wabaID+"/message_templates", nil)
	if err != nil {
		return nil, err
	}

	var page struct {
		Data []RemoteTemplate `json:"data"`
	}
	if err := json.Unmarshal(resp, &page); err != nil {
		return nil, fmt.Errorf("decode templates: %w", err)
	}
	return page.Data, nil
}

// CreateTemplate submits a template for review under the given business account.
func (c *Client) CreateTemplate(ctx context.Context, wabaID string, req template.SubmitRequest) (*template.SubmitResult, error) {
	wabaID, err := c.account(wabaID)
	if err != nil {
		return nil, err
	}

	resp, err := c.sendRequest(ctx, http.MethodPost, "/"+wabaID+"/message_templates", req)
	if err != nil {
		return nil, err
	}

	var result template.SubmitResult
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("decode template response: %w", err)
	}
	c.log.WithFields(logrus.Fields{"name": req.Name, "whatsapp_template_id": result.ID}).Info("Template submitted to Graph API")
	return &result, nil
}

func (c *Client) DeleteTemplate(ctx context.Context, wabaID, templateName string) error {
	wabaID, err := c.account(wabaID)
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("/%s/message_templates?name=%s", wabaID, url.QueryEscape(templateName))
	_, err = c.sendRequest(ctx, http.MethodDelete, endpoint, nil)
	return err
}

// ConfigStatus reports which credentials are present without exposing them.
func (c *Client) ConfigStatus() map[string]bool {
	return map[string]bool{
		"hasAccessToken":       c.token != "",
		"hasPhoneNumberId":     c.phoneNumberID != "",
		"hasBusinessAccountId": c.wabaID != "",
	}
}
