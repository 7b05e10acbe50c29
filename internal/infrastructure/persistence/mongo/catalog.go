// Package mongo implements the document catalog backend: lessons and quizzes
// stored as documents, selected with CATALOG_BACKEND=mongo. Progress and
// rewards always stay in PostgreSQL.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/golearn/learning-hub/internal/domain/lesson"
	"github.com/golearn/learning-hub/internal/domain/quiz"
	"github.com/golearn/learning-hub/internal/domain/shared"
)

// Collection names.
const (
	CollectionLessons = "lessons"
	CollectionQuizzes = "quizzes"
)

// Config holds MongoDB connection settings.
type Config struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	MaxPoolSize    uint64
}

// Client wraps a connected client and the catalog database.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect opens a client and verifies it with a ping.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongo: URI is empty")
	}
	if cfg.Database == "" {
		cfg.Database = "learning_hub"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.MaxPoolSize == 0 {
		cfg.MaxPoolSize = 50
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetRetryReads(true).
		SetRetryWrites(true)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}

	return &Client{client: client, db: client.Database(cfg.Database)}, nil
}

// Database returns the catalog database.
func (c *Client) Database() *mongo.Database {
	return c.db
}

// Ping checks the connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, nil)
}

// Disconnect closes the client.
func (c *Client) Disconnect(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// ══════════════════════════════════════════════════════════════════════════════
// DOCUMENTS
// ══════════════════════════════════════════════════════════════════════════════

type lessonDoc struct {
	ID               string    `bson:"_id"`
	Title            string    `bson:"title"`
	Description      string    `bson:"description"`
	Content          string    `bson:"content"`
	Difficulty       string    `bson:"difficulty"`
	EstimatedMinutes int       `bson:"estimated_minutes"`
	PointsReward     int       `bson:"points_reward"`
	Order            int       `bson:"order"`
	Tags             []string  `bson:"tags"`
	IsPublished      bool      `bson:"is_published"`
	CreatedAt        time.Time `bson:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at"`
}

func toLessonDoc(l *lesson.Lesson) lessonDoc {
	tags := l.Tags
	if tags == nil {
		tags = []string{}
	}
	return lessonDoc{
		ID:               l.ID,
		Title:            l.Title,
		Description:      l.Description,
		Content:          l.Content,
		Difficulty:       string(l.Difficulty),
		EstimatedMinutes: l.EstimatedMinutes,
		PointsReward:     l.PointsReward,
		Order:            l.Order,
		Tags:             tags,
		IsPublished:      l.IsPublished,
		CreatedAt:        l.CreatedAt,
		UpdatedAt:        l.UpdatedAt,
	}
}

func (d lessonDoc) toDomain() *lesson.Lesson {
	return &lesson.Lesson{
		ID:               d.ID,
		Title:            d.Title,
		Description:      d.Description,
		Content:          d.Content,
		Difficulty:       shared.ParseDifficulty(d.Difficulty),
		EstimatedMinutes: d.EstimatedMinutes,
		PointsReward:     d.PointsReward,
		Order:            d.Order,
		Tags:             d.Tags,
		IsPublished:      d.IsPublished,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

type quizDoc struct {
	ID               string          `bson:"_id"`
	LessonID         string          `bson:"lesson_id"`
	Title            string          `bson:"title"`
	Description      string          `bson:"description"`
	Questions        []questionDoc `bson:"questions"`
	PassingScore     *int          `bson:"passing_score"`
	TimeLimitMinutes *int          `bson:"time_limit_minutes,omitempty"`
	MaxPoints        int           `bson:"max_points"`
	IsActive         bool          `bson:"is_active"`
	CreatedAt        time.Time     `bson:"created_at"`
	UpdatedAt        time.Time     `bson:"updated_at"`
}

// questionDoc keeps points optional: hand-written documents may omit it,
// and only then the default weight applies.
type questionDoc struct {
	ID            string            `bson:"id"`
	Text          string            `bson:"question"`
	Type          quiz.QuestionType `bson:"type"`
	Options       []string          `bson:"options,omitempty"`
	CorrectAnswer string            `bson:"correct_answer"`
	Explanation   string            `bson:"explanation,omitempty"`
	Points        *int              `bson:"points"`
}

func toQuizDoc(q *quiz.Quiz) quizDoc {
	questions := make([]questionDoc, len(q.Questions))
	for i, qs := range q.Snapshot() {
		points := qs.Points
		questions[i] = questionDoc{
			ID:            qs.ID,
			Text:          qs.Text,
			Type:          qs.Type,
			Options:       qs.Options,
			CorrectAnswer: qs.CorrectAnswer,
			Explanation:   qs.Explanation,
			Points:        &points,
		}
	}
	passing := q.PassingScore
	return quizDoc{
		ID:               q.ID,
		LessonID:         q.LessonID,
		Title:            q.Title,
		Description:      q.Description,
		Questions:        questions,
		PassingScore:     &passing,
		TimeLimitMinutes: q.TimeLimitMinutes,
		MaxPoints:        q.MaxPoints,
		IsActive:         q.IsActive,
		CreatedAt:        q.CreatedAt,
		UpdatedAt:        q.UpdatedAt,
	}
}

func (d quizDoc) toDomain() *quiz.Quiz {
	questions := make([]quiz.Question, len(d.Questions))
	for i, qd := range d.Questions {
		qs := quiz.Question{
			ID:            qd.ID,
			Text:          qd.Text,
			Type:          qd.Type,
			Options:       qd.Options,
			CorrectAnswer: qd.CorrectAnswer,
			Explanation:   qd.Explanation,
			Points:        quiz.DefaultQuestionPoints,
		}
		if qd.Points != nil {
			qs.Points = *qd.Points
		}
		questions[i] = qs
	}
	passing := quiz.DefaultPassingScore
	if d.PassingScore != nil {
		passing = *d.PassingScore
	}

	q := &quiz.Quiz{
		ID:               d.ID,
		LessonID:         d.LessonID,
		Title:            d.Title,
		Description:      d.Description,
		Questions:        questions,
		PassingScore:     passing,
		TimeLimitMinutes: d.TimeLimitMinutes,
		MaxPoints:        d.MaxPoints,
		IsActive:         d.IsActive,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
	q.Normalize()
	return q
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSON REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// LessonRepository implements lesson.Repository on a MongoDB collection.
type LessonRepository struct {
	collection *mongo.Collection
}

// NewLessonRepository creates a lesson repository.
func NewLessonRepository(db *mongo.Database) *LessonRepository {
	return &LessonRepository{collection: db.Collection(CollectionLessons)}
}

// InitializeIndexes creates the catalog order index.
func (r *LessonRepository) InitializeIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "is_published", Value: 1}, {Key: "order", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create lesson indexes: %w", err)
	}
	return nil
}

func (r *LessonRepository) GetByID(ctx context.Context, id string) (*lesson.Lesson, error) {
	var doc lessonDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, shared.ErrLessonNotFound
		}
		return nil, fmt.Errorf("failed to get lesson by ID: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *LessonRepository) List(ctx context.Context) ([]*lesson.Lesson, error) {
	opts := options.Find().SetSort(bson.D{{Key: "order", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"is_published": true}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list lessons: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []lessonDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode lessons: %w", err)
	}

	lessons := make([]*lesson.Lesson, 0, len(docs))
	for _, d := range docs {
		lessons = append(lessons, d.toDomain())
	}
	return lessons, nil
}

func (r *LessonRepository) Save(ctx context.Context, l *lesson.Lesson) error {
	l.Normalize()
	if err := l.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	l.UpdatedAt = now

	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": l.ID}, toLessonDoc(l), options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save lesson: %w", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// QUIZ REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// QuizRepository implements quiz.Repository on a MongoDB collection.
type QuizRepository struct {
	collection *mongo.Collection
}

// NewQuizRepository creates a quiz repository.
func NewQuizRepository(db *mongo.Database) *QuizRepository {
	return &QuizRepository{collection: db.Collection(CollectionQuizzes)}
}

// InitializeIndexes creates the lesson lookup index.
func (r *QuizRepository) InitializeIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "lesson_id", Value: 1}, {Key: "is_active", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create quiz indexes: %w", err)
	}
	return nil
}

func (r *QuizRepository) GetByID(ctx context.Context, id string) (*quiz.Quiz, error) {
	var doc quizDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, shared.ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to get quiz by ID: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *QuizRepository) ListByLesson(ctx context.Context, lessonID string) ([]*quiz.Quiz, error) {
	filter := bson.M{"lesson_id": lessonID, "is_active": true}
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list quizzes: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []quizDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode quizzes: %w", err)
	}

	quizzes := make([]*quiz.Quiz, 0, len(docs))
	for _, d := range docs {
		quizzes = append(quizzes, d.toDomain())
	}
	return quizzes, nil
}

func (r *QuizRepository) Save(ctx context.Context, q *quiz.Quiz) error {
	q.Normalize()
	if err := q.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	if q.CreatedAt.IsZero() {
		q.CreatedAt = now
	}
	q.UpdatedAt = now

	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": q.ID}, toQuizDoc(q), options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save quiz: %w", err)
	}
	return nil
}

// InitializeIndexes creates indexes of both collections.
func (c *Client) InitializeIndexes(ctx context.Context) error {
	if err := NewLessonRepository(c.db).InitializeIndexes(ctx); err != nil {
		return err
	}
	return NewQuizRepository(c.db).InitializeIndexes(ctx)
}
