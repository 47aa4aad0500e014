package template

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"waba-gateway/internal/models"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

type CreateRequest struct {
	Name       string             `json:"name"`
	Category   models.Category    `json:"category"`
	Language   string             `json:"language"`
	Components []models.Component `json:"components"`
}

// UpdateRequest carries the fields to change; nil fields are left untouched.
type UpdateRequest struct {
	Name       *string            `json:"name"`
	Category   *models.Category   `json:"category"`
	Language   *string            `json:"language"`
	Components []models.Component `json:"components"`
}

type ListQuery struct {
	Page     int
	Limit    int
	Status   models.Status
	Category models.Category
}

type ListResult struct {
	Templates []models.Template `json:"templates"`
	Total     int64             `json:"total"`
	Page      int               `json:"page"`
	Limit     int               `json:"limit"`
	Pages     int               `json:"pages"`
}

type Stats struct {
	Total    int64                   `json:"total"`
	ByStatus map[models.Status]int64 `json:"by_status"`
}

// StatusUpdate is a provider-side lifecycle change for a submitted template.
type StatusUpdate struct {
	ExternalID        string
	BusinessAccountID string
	Name              string
	Language          string
	Event             string
	Reason            string
}

type Service struct {
	store       Store
	submitter   Submitter
	defaultWABA string
	log         logrus.FieldLogger
	newID       func() string
}

func NewService(store Store, submitter Submitter, defaultWABA string, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		store:       store,
		submitter:   submitter,
		defaultWABA: defaultWABA,
		log:         log,
		newID:       uuid.NewString,
	}
}

func (s *Service) Create(ctx context.Context, createdBy string, req CreateRequest) (*models.Template, error) {
	t := &models.Template{
		ID:              s.newID(),
		Name:            req.Name,
		Category:        req.Category,
		Language:        req.Language,
		ParameterFormat: models.ParameterFormatPositional,
		Components:      req.Components,
		Status:          models.StatusPending,
		CreatedBy:       createdBy,
	}

	Normalize(t)
	if err := ValidateStructure(t).Err(); err != nil {
		return nil, err
	}
	if err := s.enforceNameUniqueness(ctx, t.Name, createdBy, ""); err != nil {
		return nil, err
	}

	if err := s.store.CreateTemplate(ctx, t); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("create template: %w", err)
	}

	s.log.WithFields(logrus.Fields{"template_id": t.ID, "name": t.Name, "created_by": createdBy}).Info("Template created")
	return t, nil
}

func (s *Service) List(ctx context.Context, createdBy string, q ListQuery) (*ListResult, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}
	limit := q.Limit
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	templates, total, err := s.store.ListTemplates(ctx, Filter{
		CreatedBy: createdBy,
		Status:    q.Status,
		Category:  q.Category,
		Offset:    (page - 1) * limit,
		Limit:     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	if templates == nil {
		templates = []models.Template{}
	}

	return &ListResult{
		Templates: templates,
		Total:     total,
		Page:      page,
		Limit:     limit,
		Pages:     int(math.Ceil(float64(total) / float64(limit))),
	}, nil
}

func (s *Service) Get(ctx context.Context, createdBy, id string) (*models.Template, error) {
	return s.store.GetTemplate(ctx, id, createdBy)
}

func (s *Service) Update(ctx context.Context, createdBy, id string, req UpdateRequest) (*models.Template, error) {
	t, err := s.store.GetTemplate(ctx, id, createdBy)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(t.Status, OpEdit); err != nil {
		return nil, err
	}

	renamed := false
	if req.Name != nil && *req.Name != t.Name {
		t.Name = *req.Name
		renamed = true
	}
	if req.Category != nil {
		t.Category = *req.Category
	}
	if req.Language != nil {
		t.Language = *req.Language
	}
	if req.Components != nil {
		t.Components = req.Components
	}

	Normalize(t)
	if err := ValidateStructure(t).Err(); err != nil {
		return nil, err
	}
	if renamed {
		if err := s.enforceNameUniqueness(ctx, t.Name, createdBy, t.ID); err != nil {
			return nil, err
		}
	}

	if err := s.store.UpdateTemplate(ctx, t); err != nil {
		if errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update template: %w", err)
	}

	s.log.WithFields(logrus.Fields{"template_id": t.ID, "status": t.Status}).Info("Template updated")
	return t, nil
}

func (s *Service) Delete(ctx context.Context, createdBy, id string) error {
	t, err := s.store.GetTemplate(ctx, id, createdBy)
	if err != nil {
		return err
	}
	if err := checkTransition(t.Status, OpDelete); err != nil {
		return err
	}
	if err := s.store.DeleteTemplate(ctx, id, createdBy); err != nil {
		return err
	}

	s.log.WithField("template_id", id).Info("Template deleted")
	return nil
}

func (s *Service) Stats(ctx context.Context, createdBy string) (*Stats, error) {
	counts, err := s.store.CountTemplatesByStatus(ctx, createdBy)
	if err != nil {
		return nil, fmt.Errorf("count templates: %w", err)
	}

	stats := &Stats{ByStatus: map[models.Status]int64{}}
	for status, n := range counts {
		stats.ByStatus[status] = n
		stats.Total += n
	}
	return stats, nil
}

// Submit sends the template to the provider for review and records the
// provider id and status on the stored template.
func (s *Service) Submit(ctx context.Context, createdBy, id, wabaID string) (*models.Template, error) {
	if wabaID == "" {
		wabaID = s.defaultWABA
	}
	if wabaID == "" {
		return nil, ValidationErrors{{Field: "whatsapp_business_account_id", Message: "WhatsApp Business Account ID is required"}}
	}

	t, err := s.store.GetTemplate(ctx, id, createdBy)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(t.Status, OpSubmit); err != nil {
		return nil, err
	}
	if s.submitter == nil {
		return nil, errors.New("template submission is not configured")
	}

	res, err := s.submitter.CreateTemplate(ctx, wabaID, SubmitRequest{
		Name:            t.Name,
		Language:        t.Language,
		Category:        t.Category,
		ParameterFormat: t.ParameterFormat,
		Components:      t.Components,
	})
	if err != nil {
		return nil, fmt.Errorf("submit template: %w", err)
	}

	t.WhatsAppBusinessAccountID = wabaID
	t.WhatsAppTemplateID = res.ID
	t.Status = models.StatusPending
	if res.Status.Valid() {
		t.Status = res.Status
	}
	t.RejectedReason = ""

	if err := s.store.UpdateTemplate(ctx, t); err != nil {
		return nil, fmt.Errorf("record submission: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"template_id":          t.ID,
		"whatsapp_template_id": res.ID,
		"status":               t.Status,
	}).Info("Template submitted to WhatsApp")
	return t, nil
}

// ApplyStatusUpdate records a lifecycle change pushed by the provider. Events
// that do not map onto a known status are ignored and return (nil, nil).
func (s *Service) ApplyStatusUpdate(ctx context.Context, u StatusUpdate) (*models.Template, error) {
	status := models.Status(u.Event)
	if !status.Valid() {
		s.log.WithFields(logrus.Fields{"event": u.Event, "whatsapp_template_id": u.ExternalID}).Debug("Ignoring template status event")
		return nil, nil
	}

	t, err := s.findStatusTarget(ctx, u)
	if err != nil {
		return nil, err
	}

	if u.ExternalID != "" {
		t.WhatsAppTemplateID = u.ExternalID
	}
	t.Status = status
	t.RejectedReason = ""
	if status == models.StatusRejected && u.Reason != "NONE" {
		t.RejectedReason = u.Reason
	}
	if err := s.store.UpdateTemplate(ctx, t); err != nil {
		return nil, fmt.Errorf("apply status update: %w", err)
	}

	s.log.WithFields(logrus.Fields{"template_id": t.ID, "status": status}).Info("Template status updated by provider")
	return t, nil
}

// findStatusTarget resolves the template by provider id, falling back to
// (account, name, language) when the id is missing or unknown locally.
func (s *Service) findStatusTarget(ctx context.Context, u StatusUpdate) (*models.Template, error) {
	t, err := s.store.FindTemplateByExternalID(ctx, u.ExternalID)
	if err == nil || !errors.Is(err, ErrNotFound) || u.Name == "" || u.BusinessAccountID == "" {
		return t, err
	}
	return s.store.FindSubmittedTemplate(ctx, u.BusinessAccountID, u.Name, u.Language)
}

// enforceNameUniqueness fails with ErrConflict when createdBy already owns a
// template called name (other than exceptID).
func (s *Service) enforceNameUniqueness(ctx context.Context, name, createdBy, exceptID string) error {
	existing, err := s.store.FindTemplateByName(ctx, name, createdBy)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("check template name: %w", err)
	}
	if existing.ID == exceptID {
		return nil
	}
	return ErrConflict
}
