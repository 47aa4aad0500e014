package models

import (
	"time"

	"gorm.io/datatypes"
)

// Status is the lifecycle state of a message template.
type Status string

const (
	StatusPending         Status = "PENDING"
	StatusApproved        Status = "APPROVED"
	StatusRejected        Status = "REJECTED"
	StatusPaused          Status = "PAUSED"
	StatusPendingDeletion Status = "PENDING_DELETION"
)

var Statuses = []Status{StatusPending, StatusApproved, StatusRejected, StatusPaused, StatusPendingDeletion}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Category is the business purpose a template is filed under.
type Category string

var Categories = []Category{
	"AUTHENTICATION", "MARKETING", "UTILITY", "ACCOUNT_UPDATE",
	"ALERT_UPDATE", "APPOINTMENT_UPDATE", "AUTO_REPLY",
	"ISSUE_RESOLUTION", "PAYMENT_UPDATE", "PERSONAL_FINANCE_UPDATE",
	"RESERVATION_UPDATE", "SHIPPING_UPDATE", "TICKET_UPDATE",
	"TRANSPORTATION_UPDATE",
}

func (c Category) Valid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

type ParameterFormat string

const (
	ParameterFormatPositional ParameterFormat = "POSITIONAL"
	ParameterFormatNamed      ParameterFormat = "NAMED"
)

type ComponentType string

const (
	ComponentHeader  ComponentType = "HEADER"
	ComponentBody    ComponentType = "BODY"
	ComponentFooter  ComponentType = "FOOTER"
	ComponentButtons ComponentType = "BUTTONS"
)

type Format string

const (
	FormatText     Format = "TEXT"
	FormatImage    Format = "IMAGE"
	FormatVideo    Format = "VIDEO"
	FormatDocument Format = "DOCUMENT"
)

type ButtonType string

const (
	ButtonQuickReply  ButtonType = "QUICK_REPLY"
	ButtonURL         ButtonType = "URL"
	ButtonPhoneNumber ButtonType = "PHONE_NUMBER"
	ButtonOTP         ButtonType = "OTP"
	ButtonMPM         ButtonType = "MPM"
	ButtonCatalog     ButtonType = "CATALOG"
	ButtonFlow        ButtonType = "FLOW"
	ButtonVoiceCall   ButtonType = "VOICE_CALL"
	ButtonApp         ButtonType = "APP"
)

var ButtonTypes = []ButtonType{
	ButtonQuickReply, ButtonURL, ButtonPhoneNumber, ButtonOTP, ButtonMPM,
	ButtonCatalog, ButtonFlow, ButtonVoiceCall, ButtonApp,
}

// Button is a call-to-action attached to a BUTTONS component
type Button struct {
	Type        ButtonType `json:"type" bson:"type" validate:"oneof=QUICK_REPLY URL PHONE_NUMBER OTP MPM CATALOG FLOW VOICE_CALL APP"`
	Text        string     `json:"text" bson:"text" validate:"nonblank"`
	URL         string     `json:"url,omitempty" bson:"url,omitempty" validate:"required_if=Type URL,omitempty,web_url"`
	PhoneNumber string     `json:"phone_number,omitempty" bson:"phone_number,omitempty" validate:"required_if=Type PHONE_NUMBER,omitempty,e164ish"`
}

// Example holds sample substitution values, one slot per positional parameter
type Example struct {
	HeaderText [][]string `json:"header_text,omitempty" bson:"header_text,omitempty"`
	BodyText   [][]string `json:"body_text,omitempty" bson:"body_text,omitempty"`
	FooterText []string   `json:"footer_text,omitempty" bson:"footer_text,omitempty"`
}

// Component is one structural section of a template
type Component struct {
	Type    ComponentType `json:"type" bson:"type" validate:"oneof=HEADER BODY FOOTER BUTTONS"`
	Format  Format        `json:"format,omitempty" bson:"format,omitempty" validate:"omitempty,oneof=TEXT IMAGE VIDEO DOCUMENT"`
	Text    string        `json:"text,omitempty" bson:"text,omitempty"`
	Example *Example      `json:"example,omitempty" bson:"example,omitempty"`
	Buttons []Button      `json:"buttons,omitempty" bson:"buttons,omitempty" validate:"dive"`
}

// Template represents a WhatsApp message template owned by one creator
type Template struct {
	ID                        string                         `gorm:"primaryKey;type:varchar(36)" json:"id" bson:"_id"`
	Name                      string                         `gorm:"type:varchar(512);not null;uniqueIndex:idx_templates_name_creator" json:"name" bson:"name" validate:"required,max=512,template_name"`
	Category                  Category                       `gorm:"type:varchar(50);not null;index" json:"category" bson:"category" validate:"required,template_category"`
	ParameterFormat           ParameterFormat                `gorm:"type:varchar(20);not null;default:'POSITIONAL'" json:"parameter_format" bson:"parameter_format" validate:"oneof=POSITIONAL NAMED"`
	Language                  string                         `gorm:"type:varchar(10);not null" json:"language" bson:"language" validate:"required,locale"`
	Components                datatypes.JSONSlice[Component] `json:"components" bson:"components" validate:"min=1,dive"`
	Status                    Status                         `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status" bson:"status" validate:"omitempty,template_status"`
	WhatsAppBusinessAccountID string                         `gorm:"column:whatsapp_business_account_id;type:varchar(64)" json:"whatsapp_business_account_id,omitempty" bson:"whatsapp_business_account_id,omitempty"`
	WhatsAppTemplateID        string                         `gorm:"column:whatsapp_template_id;type:varchar(64);index" json:"whatsapp_template_id,omitempty" bson:"whatsapp_template_id,omitempty"`
	RejectedReason            string                         `gorm:"type:text" json:"rejected_reason,omitempty" bson:"rejected_reason,omitempty"`
	CreatedBy                 string                         `gorm:"type:varchar(64);not null;uniqueIndex:idx_templates_name_creator;index" json:"created_by" bson:"created_by"`
	CreatedAt                 time.Time                      `gorm:"autoCreateTime;index" json:"created_at" bson:"created_at"`
	UpdatedAt                 time.Time                      `gorm:"autoUpdateTime" json:"updated_at" bson:"updated_at"`
}

func (Template) TableName() string {
	return "templates"
}

// Message represents a WhatsApp message seen by the gateway
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id" bson:"-"`
	WaID      string    `gorm:"index;not null" json:"wa_id" bson:"wa_id"`
	Sender    string    `gorm:"not null" json:"sender" bson:"sender"`
	Content   string    `gorm:"type:text" json:"content" bson:"content"`
	Type      string    `gorm:"type:varchar(50)" json:"type" bson:"type"`
	Status    string    `gorm:"type:varchar(20)" json:"status" bson:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at" bson:"updated_at"`
}

func (Message) TableName() string {
	return "messages"
}

// Contact represents a WhatsApp contact
type Contact struct {
	WaID      string    `gorm:"primaryKey" json:"wa_id" bson:"_id"` // WhatsApp ID (phone number)
	Name      string    `gorm:"type:varchar(255)" json:"name" bson:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at" bson:"updated_at"`
}

func (Contact) TableName() string {
	return "contacts"
}
