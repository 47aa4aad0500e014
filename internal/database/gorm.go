package database

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"waba-gateway/internal/models"
	"waba-gateway/internal/template"
)

// GormStore keeps templates, messages and contacts in PostgreSQL or SQLite.
type GormStore struct {
	db *gorm.DB
}

var _ template.Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) DB() *gorm.DB {
	return s.db
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return template.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return template.ErrConflict
	}
	return err
}

func (s *GormStore) CreateTemplate(ctx context.Context, t *models.Template) error {
	return translate(s.db.WithContext(ctx).Create(t).Error)
}

func (s *GormStore) GetTemplate(ctx context.Context, id, createdBy string) (*models.Template, error) {
	var t models.Template
	err := s.db.WithContext(ctx).Where("id = ? AND created_by = ?", id, createdBy).First(&t).Error
	if err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (s *GormStore) FindTemplateByName(ctx context.Context, name, createdBy string) (*models.Template, error) {
	var t models.Template
	err := s.db.WithContext(ctx).Where("name = ? AND created_by = ?", name, createdBy).First(&t).Error
	if err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (s *GormStore) FindTemplateByExternalID(ctx context.Context, externalID string) (*models.Template, error) {
	if externalID == "" {
		return nil, template.ErrNotFound
	}
	var t models.Template
	err := s.db.WithContext(ctx).Where("whatsapp_template_id = ?", externalID).First(&t).Error
	if err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (s *GormStore) FindSubmittedTemplate(ctx context.Context, wabaID, name, language string) (*models.Template, error) {
	var t models.Template
	err := s.db.WithContext(ctx).
		Where("whatsapp_business_account_id = ? AND name = ? AND language = ? AND whatsapp_template_id <> ''", wabaID, name, language).
		Order("updated_at DESC").
		First(&t).Error
	if err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (s *GormStore) ListTemplates(ctx context.Context, f template.Filter) ([]models.Template, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Template{}).Where("created_by = ?", f.CreatedBy)
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.Category != "" {
		query = query.Where("category = ?", f.Category)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var templates []models.Template
	err := query.Order("created_at DESC").Offset(f.Offset).Limit(f.Limit).Find(&templates).Error
	if err != nil {
		return nil, 0, err
	}
	return templates, total, nil
}

func (s *GormStore) UpdateTemplate(ctx context.Context, t *models.Template) error {
	result := s.db.WithContext(ctx).
		Model(t).
		Where("created_by = ?", t.CreatedBy).
		Select("*").
		Omit("id", "created_by", "created_at").
		Updates(t)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return template.ErrNotFound
	}
	return nil
}

func (s *GormStore) DeleteTemplate(ctx context.Context, id, createdBy string) error {
	result := s.db.WithContext(ctx).Where("id = ? AND created_by = ?", id, createdBy).Delete(&models.Template{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return template.ErrNotFound
	}
	return nil
}

func (s *GormStore) CountTemplatesByStatus(ctx context.Context, createdBy string) (map[models.Status]int64, error) {
	var rows []struct {
		Status models.Status
		Count  int64
	}
	err := s.db.WithContext(ctx).
		Model(&models.Template{}).
		Select("status, count(*) AS count").
		Where("created_by = ?", createdBy).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[models.Status]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

// --- Messages & contacts ---

func (s *GormStore) SaveMessage(ctx context.Context, m *models.Message) error {
	return s.db.WithContext(ctx).Create(m).Error
}

// UpsertContact inserts the contact or refreshes its display name.
func (s *GormStore) UpsertContact(ctx context.Context, waID, name string) error {
	onConflict := clause.OnConflict{Columns: []clause.Column{{Name: "wa_id"}}, DoNothing: true}
	if name != "" {
		onConflict = clause.OnConflict{
			Columns:   []clause.Column{{Name: "wa_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
		}
	}
	return s.db.WithContext(ctx).Clauses(onConflict).Create(&models.Contact{WaID: waID, Name: name}).Error
}

func (s *GormStore) ListMessages(ctx context.Context, limit int) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit).Find(&messages).Error
	return messages, err
}

func (s *GormStore) ListContacts(ctx context.Context) ([]models.Contact, error) {
	var contacts []models.Contact
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&contacts).Error
	return contacts, err
}
