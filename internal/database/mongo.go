package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"waba-gateway/internal/models"
	"waba-gateway/internal/template"
)

const (
	templatesCollection = "whatsapp_templates"
	messagesCollection  = "messages"
	contactsCollection  = "contacts"
)

// MongoStore keeps the same records as GormStore in MongoDB documents.
type MongoStore struct {
	client    *mongo.Client
	templates *mongo.Collection
	messages  *mongo.Collection
	contacts  *mongo.Collection
	now       func() time.Time
}

// ConnectMongo opens a client, checks the connection and prepares indexes.
func ConnectMongo(ctx context.Context, uri, dbName string, log *logrus.Logger) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New("mongo connection uri is empty")
	}

	clientOptions := options.Client().ApplyURI(uri).
		SetMaxPoolSize(50).
		SetConnectTimeout(5 * time.Second).
		SetSocketTimeout(10 * time.Second)

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancelPing := context.WithTimeout(ctx, 2*time.Second)
	defer cancelPing()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	store := NewMongoStore(client, dbName)
	if err := store.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	if log != nil {
		log.WithField("database", dbName).Info("Successfully connected to MongoDB")
	}
	return store, nil
}

var _ template.Store = (*MongoStore)(nil)

func NewMongoStore(client *mongo.Client, dbName string) *MongoStore {
	db := client.Database(dbName)
	return &MongoStore{
		client:    client,
		templates: db.Collection(templatesCollection),
		messages:  db.Collection(messagesCollection),
		contacts:  db.Collection(contactsCollection),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// EnsureIndexes mirrors the SQL schema: (name, created_by) is unique.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.templates.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "name", Value: 1}, {Key: "created_by", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "created_by", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "category", Value: 1}}},
		{Keys: bson.D{{Key: "whatsapp_template_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create template indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func translateMongo(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return template.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return template.ErrConflict
	}
	return err
}

func (s *MongoStore) CreateTemplate(ctx context.Context, t *models.Template) error {
	now := s.now()
	t.CreatedAt, t.UpdatedAt = now, now
	_, err := s.templates.InsertOne(ctx, t)
	return translateMongo(err)
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (*models.Template, error) {
	var t models.Template
	if err := s.templates.FindOne(ctx, filter).Decode(&t); err != nil {
		return nil, translateMongo(err)
	}
	return &t, nil
}

func (s *MongoStore) GetTemplate(ctx context.Context, id, createdBy string) (*models.Template, error) {
	return s.findOne(ctx, bson.M{"_id": id, "created_by": createdBy})
}

func (s *MongoStore) FindTemplateByName(ctx context.Context, name, createdBy string) (*models.Template, error) {
	return s.findOne(ctx, bson.M{"name": name, "created_by": createdBy})
}

func (s *MongoStore) FindTemplateByExternalID(ctx context.Context, externalID string) (*models.Template, error) {
	if externalID == "" {
		return nil, template.ErrNotFound
	}
	return s.findOne(ctx, bson.M{"whatsapp_template_id": externalID})
}

func (s *MongoStore) FindSubmittedTemplate(ctx context.Context, wabaID, name, language string) (*models.Template, error) {
	var t models.Template
	filter := bson.M{
		"whatsapp_business_account_id": wabaID,
		"name":                         name,
		"language":                     language,
		"whatsapp_template_id":         bson.M{"$nin": bson.A{"", nil}},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	if err := s.templates.FindOne(ctx, filter, opts).Decode(&t); err != nil {
		return nil, translateMongo(err)
	}
	return &t, nil
}

func (s *MongoStore) ListTemplates(ctx context.Context, f template.Filter) ([]models.Template, int64, error) {
	filter := bson.M{"created_by": f.CreatedBy}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.Category != "" {
		filter["category"] = f.Category
	}

	total, err := s.templates.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(f.Offset)).
		SetLimit(int64(f.Limit))
	cursor, err := s.templates.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}

	var templates []models.Template
	if err := cursor.All(ctx, &templates); err != nil {
		return nil, 0, err
	}
	return templates, total, nil
}

func (s *MongoStore) UpdateTemplate(ctx context.Context, t *models.Template) error {
	t.UpdatedAt = s.now()
	update := bson.M{"$set": bson.M{
		"name":                         t.Name,
		"category":                     t.Category,
		"parameter_format":             t.ParameterFormat,
		"language":                     t.Language,
		"components":                   t.Components,
		"status":                       t.Status,
		"whatsapp_business_account_id": t.WhatsAppBusinessAccountID,
		"whatsapp_template_id":         t.WhatsAppTemplateID,
		"rejected_reason":              t.RejectedReason,
		"updated_at":                   t.UpdatedAt,
	}}

	res, err := s.templates.UpdateOne(ctx, bson.M{"_id": t.ID, "created_by": t.CreatedBy}, update)
	if err != nil {
		return translateMongo(err)
	}
	if res.MatchedCount == 0 {
		return template.ErrNotFound
	}
	return nil
}

func (s *MongoStore) DeleteTemplate(ctx context.Context, id, createdBy string) error {
	res, err := s.templates.DeleteOne(ctx, bson.M{"_id": id, "created_by": createdBy})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return template.ErrNotFound
	}
	return nil
}

func (s *MongoStore) CountTemplatesByStatus(ctx context.Context, createdBy string) (map[models.Status]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"created_by": createdBy}}},
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := s.templates.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Status models.Status `bson:"_id"`
		Count  int64         `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	counts := make(map[models.Status]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

// --- Messages & contacts ---

func (s *MongoStore) SaveMessage(ctx context.Context, m *models.Message) error {
	now := s.now()
	m.CreatedAt, m.UpdatedAt = now, now
	_, err := s.messages.InsertOne(ctx, m)
	return err
}

func (s *MongoStore) UpsertContact(ctx context.Context, waID, name string) error {
	now := s.now()
	update := bson.M{"$setOnInsert": bson.M{"created_at": now}}
	if name != "" {
		update["$set"] = bson.M{"name": name, "updated_at": now}
	}
	_, err := s.contacts.UpdateOne(ctx, bson.M{"_id": waID}, update, options.Update().SetUpsert(true))
	return err
}

func (s *MongoStore) ListMessages(ctx context.Context, limit int) ([]models.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(int64(limit))
	cursor, err := s.messages.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	var messages []models.Message
	err = cursor.All(ctx, &messages)
	return messages, err
}

func (s *MongoStore) ListContacts(ctx context.Context) ([]models.Contact, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.contacts.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	var contacts []models.Contact
	err = cursor.All(ctx, &contacts)
	return contacts, err
}
