package template

import (
	"context"

	"waba-gateway/internal/models"
)

// Filter narrows a creator's template listing.
type Filter struct {
	CreatedBy string
	Status    models.Status
	Category  models.Category
	Offset    int
	Limit     int
}

// Store persists templates. Implementations return ErrNotFound for missing
// records and ErrConflict when the (name, created_by) uniqueness is violated.
type Store interface {
	CreateTemplate(ctx context.Context, t *models.Template) error
	GetTemplate(ctx context.Context, id, createdBy string) (*models.Template, error)
	FindTemplateByName(ctx context.Context, name, createdBy string) (*models.Template, error)
	FindTemplateByExternalID(ctx context.Context, externalID string) (*models.Template, error)
	// FindSubmittedTemplate looks a submitted template up by the key the
	// provider uses when it omits the template id.
	FindSubmittedTemplate(ctx context.Context, wabaID, name, language string) (*models.Template, error)
	ListTemplates(ctx context.Context, f Filter) ([]models.Template, int64, error)
	UpdateTemplate(ctx context.Context, t *models.Template) error
	DeleteTemplate(ctx context.Context, id, createdBy string) error
	CountTemplatesByStatus(ctx context.Context, createdBy string) (map[models.Status]int64, error)
}

// SubmitRequest is the Graph API body for creating a message template.
type SubmitRequest struct {
	Name            string                 `json:"name"`
	Language        string                 `json:"language"`
	Category        models.Category        `json:"category"`
	ParameterFormat models.ParameterFormat `json:"parameter_format"`
	Components      []models.Component     `json:"components"`
}

// SubmitResult is what the provider answers to a template submission.
type SubmitResult struct {
	ID       string          `json:"id"`
	Status   models.Status   `json:"status"`
	Category models.Category `json:"category"`
}

// Submitter sends templates to the external messaging provider for review.
type Submitter interface {
	CreateTemplate(ctx context.Context, wabaID string, req SubmitRequest) (*SubmitResult, error)
}
