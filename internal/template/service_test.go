package template

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waba-gateway/internal/models"
)

// memStore is an in-memory Store keyed by template id.
type memStore struct {
	mu        sync.Mutex
	templates map[string]models.Template
	failNext  error
}

func newMemStore() *memStore {
	return &memStore{templates: map[string]models.Template{}}
}

func (m *memStore) CreateTemplate(_ context.Context, t *models.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failNext; err != nil {
		m.failNext = nil
		return err
	}
	for _, existing := range m.templates {
		if existing.Name == t.Name && existing.CreatedBy == t.CreatedBy {
			return ErrConflict
		}
	}
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	m.templates[t.ID] = *t
	return nil
}

func (m *memStore) GetTemplate(_ context.Context, id, createdBy string) (*models.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.templates[id]
	if !ok || t.CreatedBy != createdBy {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (m *memStore) FindTemplateByName(_ context.Context, name, createdBy string) (*models.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.templates {
		if t.Name == name && t.CreatedBy == createdBy {
			return &t, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) FindTemplateByExternalID(_ context.Context, externalID string) (*models.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.templates {
		if externalID != "" && t.WhatsAppTemplateID == externalID {
			return &t, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) FindSubmittedTemplate(_ context.Context, wabaID, name, language string) (*models.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.templates {
		if t.WhatsAppTemplateID != "" && t.WhatsAppBusinessAccountID == wabaID && t.Name == name && t.Language == language {
			return &t, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) ListTemplates(_ context.Context, f Filter) ([]models.Template, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []models.Template
	for _, t := range m.templates {
		if t.CreatedBy != f.CreatedBy {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Category != "" && t.Category != f.Category {
			continue
		}
		matched = append(matched, t)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })

	total := int64(len(matched))
	if f.Offset >= len(matched) {
		return nil, total, nil
	}
	end := f.Offset + f.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[f.Offset:end], total, nil
}

func (m *memStore) UpdateTemplate(_ context.Context, t *models.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.templates[t.ID]
	if !ok || existing.CreatedBy != t.CreatedBy {
		return ErrNotFound
	}
	t.UpdatedAt = time.Now()
	m.templates[t.ID] = *t
	return nil
}

func (m *memStore) DeleteTemplate(_ context.Context, id, createdBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.templates[id]
	if !ok || t.CreatedBy != createdBy {
		return ErrNotFound
	}
	delete(m.templates, id)
	return nil
}

func (m *memStore) CountTemplatesByStatus(_ context.Context, createdBy string) (map[models.Status]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[models.Status]int64{}
	for _, t := range m.templates {
		if t.CreatedBy == createdBy {
			counts[t.Status]++
		}
	}
	return counts, nil
}

// setStatus moves a stored template directly, bypassing the service.
func (m *memStore) setStatus(id string, status models.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.templates[id]
	t.Status = status
	m.templates[id] = t
}

type fakeSubmitter struct {
	calls  []SubmitRequest
	wabaID string
	result *SubmitResult
	err    error
}

func (f *fakeSubmitter) CreateTemplate(_ context.Context, wabaID string, req SubmitRequest) (*SubmitResult, error) {
	f.calls = append(f.calls, req)
	f.wabaID = wabaID
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newTestService(t *testing.T) (*Service, *memStore, *fakeSubmitter) {
	t.Helper()
	store := newMemStore()
	submitter := &fakeSubmitter{result: &SubmitResult{ID: "wa-100", Status: models.StatusPending, Category: "UTILITY"}}
	log, _ := test.NewNullLogger()
	svc := NewService(store, submitter, "", log)

	n := 0
	svc.newID = func() string {
		n++
		return fmt.Sprintf("tmpl-%d", n)
	}
	return svc, store, submitter
}

func createRequest(name string) CreateRequest {
	return CreateRequest{
		Name:     name,
		Category: "UTILITY",
		Language: "en_US",
		Components: []models.Component{
			{Type: models.ComponentBody, Text: "Hello {{1}}", Example: &models.Example{BodyText: [][]string{{"Ana"}}}},
		},
	}
}

func TestService_Create(t *testing.T) {
	svc, _, _ := newTestService(t)

	tmpl, err := svc.Create(context.Background(), "user-1", createRequest(" order_confirmation "))
	require.NoError(t, err)
	assert.Equal(t, "tmpl-1", tmpl.ID)
	assert.Equal(t, "order_confirmation", tmpl.Name)
	assert.Equal(t, models.StatusPending, tmpl.Status)
	assert.Equal(t, models.ParameterFormatPositional, tmpl.ParameterFormat)
	assert.Equal(t, "user-1", tmpl.CreatedBy)
}

func TestService_Create_InvalidTemplateIsNotStored(t *testing.T) {
	svc, store, _ := newTestService(t)

	req := createRequest("bad name")
	req.Components = []models.Component{{Type: models.ComponentHeader, Text: "No body"}}
	_, err := svc.Create(context.Background(), "user-1", req)

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.ElementsMatch(t, []string{"name", "components"}, fields(verrs))
	assert.Empty(t, store.templates)
}

func TestService_Create_NameUniquePerCreator(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "user-1", createRequest("order_confirmation"))
	require.NoError(t, err)
	_, err = svc.Create(ctx, "user-2", createRequest("order_confirmation"))
	require.NoError(t, err)

	_, err = svc.Create(ctx, "user-1", createRequest("order_confirmation"))
	assert.ErrorIs(t, err, ErrConflict)
}

func TestService_Create_StoreConflictIsReported(t *testing.T) {
	svc, store, _ := newTestService(t)
	store.failNext = fmt.Errorf("insert: %w", ErrConflict)

	_, err := svc.Create(context.Background(), "user-1", createRequest("racy"))
	assert.Equal(t, ErrConflict, err)
}

func TestService_Get_IsScopedToCreator(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, "user-1", createRequest("welcome"))
	require.NoError(t, err)

	got, err := svc.Get(ctx, "user-1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "welcome", got.Name)

	_, err = svc.Get(ctx, "user-2", created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_List_Pagination(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		_, err := svc.Create(ctx, "user-1", createRequest(fmt.Sprintf("tmpl_%02d", i)))
		require.NoError(t, err)
	}

	first, err := svc.List(ctx, "user-1", ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(12), first.Total)
	assert.Equal(t, 1, first.Page)
	assert.Equal(t, 10, first.Limit)
	assert.Equal(t, 2, first.Pages)
	assert.Len(t, first.Templates, 10)

	second, err := svc.List(ctx, "user-1", ListQuery{Page: 2, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, second.Templates, 2)

	capped, err := svc.List(ctx, "user-1", ListQuery{Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, 100, capped.Limit)
	assert.Equal(t, 1, capped.Pages)

	empty, err := svc.List(ctx, "user-2", ListQuery{})
	require.NoError(t, err)
	assert.NotNil(t, empty.Templates)
	assert.Empty(t, empty.Templates)
	assert.Zero(t, empty.Pages)
}

func TestService_Update_RespectsLifecycle(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, "user-1", createRequest("welcome"))
	require.NoError(t, err)

	newName := "welcome_v2"
	_, err = svc.Update(ctx, "user-1", created.ID, UpdateRequest{Name: &newName})
	assert.ErrorIs(t, err, ErrStateConflict)

	store.setStatus(created.ID, models.StatusPaused)
	updated, err := svc.Update(ctx, "user-1", created.ID, UpdateRequest{Name: &newName})
	require.NoError(t, err)
	assert.Equal(t, "welcome_v2", updated.Name)
	assert.Equal(t, models.StatusPaused, updated.Status)

	stored, err := svc.Get(ctx, "user-1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "welcome_v2", stored.Name)
}

func TestService_Update_ValidatesMergedTemplate(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, "user-1", createRequest("welcome"))
	require.NoError(t, err)
	store.setStatus(created.ID, models.StatusRejected)

	lang := "english"
	_, err = svc.Update(ctx, "user-1", created.ID, UpdateRequest{
		Language:   &lang,
		Components: []models.Component{{Type: models.ComponentFooter, Text: "bye"}},
	})
	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.ElementsMatch(t, []string{"language", "components"}, fields(verrs))

	stored, err := svc.Get(ctx, "user-1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "en_US", stored.Language)
}

func TestService_Update_RenameConflict(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, "user-1", createRequest("taken"))
	require.NoError(t, err)
	created, err := svc.Create(ctx, "user-1", createRequest("welcome"))
	require.NoError(t, err)
	store.setStatus(created.ID, models.StatusApproved)

	taken := "taken"
	_, err = svc.Update(ctx, "user-1", created.ID, UpdateRequest{Name: &taken})
	assert.ErrorIs(t, err, ErrConflict)

	same := "welcome"
	_, err = svc.Update(ctx, "user-1", created.ID, UpdateRequest{Name: &same})
	assert.NoError(t, err)
}

func TestService_Delete(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, "user-1", createRequest("welcome"))
	require.NoError(t, err)

	store.setStatus(created.ID, models.StatusApproved)
	err = svc.Delete(ctx, "user-1", created.ID)
	assert.ErrorIs(t, err, ErrStateConflict)

	store.setStatus(created.ID, models.StatusRejected)
	require.NoError(t, svc.Delete(ctx, "user-1", created.ID))

	_, err = svc.Get(ctx, "user-1", created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, "user-1", created.ID), ErrNotFound)
}

func TestService_Stats(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	a, _ := svc.Create(ctx, "user-1", createRequest("a"))
	_, _ = svc.Create(ctx, "user-1", createRequest("b"))
	_, _ = svc.Create(ctx, "user-2", createRequest("c"))
	store.setStatus(a.ID, models.StatusApproved)

	stats, err := svc.Stats(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.ByStatus[models.StatusApproved])
	assert.Equal(t, int64(1), stats.ByStatus[models.StatusPending])
}

func TestService_Submit(t *testing.T) {
	svc, _, submitter := newTestService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, "user-1", createRequest("welcome"))
	require.NoError(t, err)

	submitted, err := svc.Submit(ctx, "user-1", created.ID, "waba-1")
	require.NoError(t, err)
	assert.Equal(t, "wa-100", submitted.WhatsAppTemplateID)
	assert.Equal(t, "waba-1", submitted.WhatsAppBusinessAccountID)
	assert.Equal(t, models.StatusPending, submitted.Status)

	require.Len(t, submitter.calls, 1)
	assert.Equal(t, "waba-1", submitter.wabaID)
	assert.Equal(t, "welcome", submitter.calls[0].Name)
	assert.Equal(t, models.ParameterFormatPositional, submitter.calls[0].ParameterFormat)
}

func TestService_Submit_UsesDefaultAccount(t *testing.T) {
	svc, _, submitter := newTestService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, "user-1", createRequest("welcome"))
	require.NoError(t, err)

	_, err = svc.Submit(ctx, "user-1", created.ID, "")
	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, "whatsapp_business_account_id", verrs[0].Field)
	assert.Empty(t, submitter.calls)

	svc.defaultWABA = "waba-default"
	_, err = svc.Submit(ctx, "user-1", created.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "waba-default", submitter.wabaID)
}

func TestService_Submit_AfterEditingApprovedTemplate(t *testing.T) {
	svc, store, submitter := newTestService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, "user-1", createRequest("welcome"))
	require.NoError(t, err)
	store.setStatus(created.ID, models.StatusApproved)

	edited, err := svc.Update(ctx, "user-1", created.ID, UpdateRequest{
		Components: []models.Component{{Type: models.ComponentBody, Text: "Welcome back {{1}}"}},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, edited.Status)

	resubmitted, err := svc.Submit(ctx, "user-1", created.ID, "waba-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, resubmitted.Status)
	require.Len(t, submitter.calls, 1)
	assert.Equal(t, "Welcome back {{1}}", submitter.calls[0].Components[0].Text)
}

func TestService_Submit_RefusedWhilePendingDeletion(t *testing.T) {
	svc, store, submitter := newTestService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, "user-1", createRequest("welcome"))
	require.NoError(t, err)
	store.setStatus(created.ID, models.StatusPendingDeletion)

	_, err = svc.Submit(ctx, "user-1", created.ID, "waba-1")
	assert.ErrorIs(t, err, ErrStateConflict)
	assert.Empty(t, submitter.calls)
}

func TestService_Submit_ProviderFailureLeavesTemplateUntouched(t *testing.T) {
	svc, _, submitter := newTestService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, "user-1", createRequest("welcome"))
	require.NoError(t, err)
	submitter.err = errors.New("graph api unavailable")

	_, err = svc.Submit(ctx, "user-1", created.ID, "waba-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "graph api unavailable")

	stored, err := svc.Get(ctx, "user-1", created.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.WhatsAppTemplateID)
}

func TestService_Submit_WithoutSubmitter(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, nil, "waba-1", nil)
	created, err := svc.Create(context.Background(), "user-1", createRequest("welcome"))
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), "user-1", created.ID, "")
	assert.Error(t, err)
}

func TestService_ApplyStatusUpdate(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, "user-1", createRequest("welcome"))
	require.NoError(t, err)
	_, err = svc.Submit(ctx, "user-1", created.ID, "waba-1")
	require.NoError(t, err)

	rejected, err := svc.ApplyStatusUpdate(ctx, StatusUpdate{ExternalID: "wa-100", Event: "REJECTED", Reason: "INVALID_FORMAT"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, rejected.Status)
	assert.Equal(t, "INVALID_FORMAT", rejected.RejectedReason)

	approved, err := svc.ApplyStatusUpdate(ctx, StatusUpdate{ExternalID: "wa-100", Event: "APPROVED", Reason: "NONE"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, approved.Status)
	assert.Empty(t, approved.RejectedReason)

	assert.ErrorIs(t, svc.Delete(ctx, "user-1", created.ID), ErrStateConflict)
}

func TestService_ApplyStatusUpdate_FallsBackToNameAndLanguage(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, "user-1", createRequest("welcome"))
	require.NoError(t, err)
	_, err = svc.Submit(ctx, "user-1", created.ID, "waba-1")
	require.NoError(t, err)

	paused, err := svc.ApplyStatusUpdate(ctx, StatusUpdate{
		BusinessAccountID: "waba-1",
		Name:              "welcome",
		Language:          "en_US",
		Event:             "PAUSED",
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, paused.ID)
	assert.Equal(t, models.StatusPaused, paused.Status)
	assert.Equal(t, "wa-100", paused.WhatsAppTemplateID)

	_, err = svc.ApplyStatusUpdate(ctx, StatusUpdate{
		BusinessAccountID: "waba-2",
		Name:              "welcome",
		Language:          "en_US",
		Event:             "APPROVED",
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_ApplyStatusUpdate_IgnoresUnknownEvents(t *testing.T) {
	svc, _, _ := newTestService(t)

	got, err := svc.ApplyStatusUpdate(context.Background(), StatusUpdate{ExternalID: "wa-100", Event: "FLAGGED"})
	assert.NoError(t, err)
	assert.Nil(t, got)

	_, err = svc.ApplyStatusUpdate(context.Background(), StatusUpdate{ExternalID: "unknown", Event: "APPROVED"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_LogsCreation(t *testing.T) {
	store := newMemStore()
	log, hook := test.NewNullLogger()
	svc := NewService(store, nil, "", log)

	_, err := svc.Create(context.Background(), "user-1", createRequest("welcome"))
	require.NoError(t, err)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "welcome", entry.Data["name"])
}
