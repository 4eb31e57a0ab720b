// Package mongo implements the remote document store on MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"histosaga-service/internal/domain"
)

const (
	activitiesCollection = "atividades"
	usersCollection      = "usuarios"
	progressCollection   = "progresso"
	codesCollection      = "codigosVerificacao"

	// submissions remembered per document to make replays no-ops
	submissionHistory = 100
)

// Config holds the connection settings.
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// Connect opens a client and verifies it with a ping.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetConnectTimeout(timeout).
		SetRetryWrites(true).
		SetRetryReads(true)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// Store is the remote document store: activities, users, progress and reset codes.
type Store struct {
	client     *mongo.Client
	activities *mongo.Collection
	users      *mongo.Collection
	progress   *mongo.Collection
	codes      *mongo.Collection
}

func NewStore(client *mongo.Client, database string) *Store {
	db := client.Database(database)
	return &Store{
		client:     client,
		activities: db.Collection(activitiesCollection),
		users:      db.Collection(usersCollection),
		progress:   db.Collection(progressCollection),
		codes:      db.Collection(codesCollection),
	}
}

// EnsureIndexes creates the indexes lookups rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if _, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "usuario", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	}); err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	if _, err := s.activities.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "materia", Value: 1}, {Key: "posicao", Value: 1}},
	}); err != nil {
		return fmt.Errorf("create activity index: %w", err)
	}
	if _, err := s.progress.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "materia", Value: 1}},
	}); err != nil {
		return fmt.Errorf("create progress index: %w", err)
	}
	return nil
}

// Ping is the connectivity check.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrRemoteUnavailable, err)
}

func (s *Store) LoadActivity(ctx context.Context, activityID string) (domain.Activity, error) {
	var activity domain.Activity
	err := s.activities.FindOne(ctx, bson.D{{Key: "_id", Value: activityID}}).Decode(&activity)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Activity{}, domain.ErrActivityNotFound
	}
	if err != nil {
		return domain.Activity{}, unavailable("load activity "+activityID, err)
	}
	return activity, nil
}

func (s *Store) ListActivities(ctx context.Context, subject string) ([]domain.Activity, error) {
	cursor, err := s.activities.Find(ctx,
		bson.D{{Key: "materia", Value: subject}},
		options.Find().SetSort(bson.D{{Key: "posicao", Value: 1}, {Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, unavailable("list activities", err)
	}
	activities := make([]domain.Activity, 0)
	if err := cursor.All(ctx, &activities); err != nil {
		return nil, unavailable("decode activities", err)
	}
	return activities, nil
}

// SaveActivity upserts an activity definition; used to seed content.
func (s *Store) SaveActivity(ctx context.Context, activity domain.Activity) error {
	_, err := s.activities.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: activity.ID}},
		activity,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return unavailable("save activity "+activity.ID, err)
	}
	return nil
}

func progressID(userID, subject, activityID string) string {
	return userID + "/" + subject + "/" + activityID
}

// notApplied restricts an update to documents that have not seen the submission.
func notApplied(id, submissionID string) bson.D {
	filter := bson.D{{Key: "_id", Value: id}}
	if submissionID != "" {
		filter = append(filter, bson.E{Key: "submissoes", Value: bson.D{{Key: "$ne", Value: submissionID}}})
	}
	return filter
}

func rememberSubmission(update bson.D, submissionID string) bson.D {
	if submissionID == "" {
		return update
	}
	return append(update, bson.E{Key: "$push", Value: bson.D{{Key: "submissoes", Value: bson.D{
		{Key: "$each", Value: bson.A{submissionID}},
		{Key: "$slice", Value: -submissionHistory},
	}}}})
}

// mergeProgressUpdate adds counters and merges questions by index.
func mergeProgressUpdate(d domain.ProgressDelta) bson.D {
	inc := bson.D{
		{Key: "estrelas", Value: d.Stars},
		{Key: "xp", Value: d.XP},
		{Key: "tentativas", Value: d.Attempts},
		{Key: "acertos", Value: d.Correct},
	}
	set := bson.D{
		{Key: "userId", Value: d.UserID},
		{Key: "materia", Value: d.Subject},
		{Key: "atividadeId", Value: d.ActivityID},
		{Key: "concluida", Value: d.Completed},
		{Key: "dataConclusao", Value: d.At},
	}
	for _, q := range d.Questions {
		prefix := "questoes." + strconv.Itoa(q.Index)
		inc = append(inc, bson.E{Key: prefix + ".tentativas", Value: q.Attempts})
		set = append(set,
			bson.E{Key: prefix + ".concluida", Value: q.Correct},
			bson.E{Key: prefix + ".ultimaTentativa", Value: d.At},
		)
	}
	return rememberSubmission(bson.D{{Key: "$inc", Value: inc}, {Key: "$set", Value: set}}, d.SubmissionID)
}

func (s *Store) MergeProgress(ctx context.Context, d domain.ProgressDelta) error {
	id := progressID(d.UserID, d.Subject, d.ActivityID)
	_, err := s.progress.UpdateOne(ctx,
		notApplied(id, d.SubmissionID),
		mergeProgressUpdate(d),
		options.UpdateOne().SetUpsert(true),
	)
	// the upsert collides with the existing document when the submission was already merged
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	if err != nil {
		return unavailable("merge progress "+id, err)
	}
	return nil
}

func aggregateUpdate(d domain.AggregateDelta) bson.D {
	return rememberSubmission(bson.D{
		{Key: "$inc", Value: bson.D{{Key: "xp", Value: d.XP}, {Key: "estrelas", Value: d.Stars}}},
		{Key: "$max", Value: bson.D{{Key: "maiorSequenciaAcertos", Value: d.BestStreak}}},
		{Key: "$set", Value: bson.D{{Key: "primeiraAtividade", Value: true}, {Key: "ultimoLogin", Value: d.At}}},
	}, d.SubmissionID)
}

func (s *Store) IncrementUserAggregate(ctx context.Context, userID string, d domain.AggregateDelta) error {
	res, err := s.users.UpdateOne(ctx, notApplied(userID, d.SubmissionID), aggregateUpdate(d))
	if err != nil {
		return unavailable("increment aggregate "+userID, err)
	}
	if res.MatchedCount > 0 {
		return nil
	}
	n, err := s.users.CountDocuments(ctx, bson.D{{Key: "_id", Value: userID}})
	if err != nil {
		return unavailable("count user "+userID, err)
	}
	if n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (s *Store) ListProgress(ctx context.Context, userID, subject string) (map[string]domain.ActivityProgress, error) {
	cursor, err := s.progress.Find(ctx, bson.D{{Key: "userId", Value: userID}, {Key: "materia", Value: subject}})
	if err != nil {
		return nil, unavailable("list progress", err)
	}
	var records []domain.ActivityProgress
	if err := cursor.All(ctx, &records); err != nil {
		return nil, unavailable("decode progress", err)
	}
	out := make(map[string]domain.ActivityProgress, len(records))
	for _, r := range records {
		out[r.ActivityID] = r
	}
	return out, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.User) error {
	if _, err := s.users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("user %s already exists: %w", user.Username, err)
		}
		return unavailable("create user", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (domain.User, error) {
	var user domain.User
	err := s.users.FindOne(ctx, bson.D{{Key: "_id", Value: userID}}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, unavailable("get user "+userID, err)
	}
	return user, nil
}

func (s *Store) GetUserAggregate(ctx context.Context, userID string) (domain.UserAggregate, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return domain.UserAggregate{}, err
	}
	return user.UserAggregate, nil
}

var queryableUserFields = map[string]bool{"_id": true, "usuario": true, "email": true}

func (s *Store) FindUsers(ctx context.Context, field, value string) ([]domain.User, error) {
	if !queryableUserFields[field] {
		return nil, fmt.Errorf("unsupported user field %q", field)
	}
	cursor, err := s.users.Find(ctx, bson.D{{Key: field, Value: value}})
	if err != nil {
		return nil, unavailable("find users", err)
	}
	var users []domain.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, unavailable("decode users", err)
	}
	return users, nil
}

func (s *Store) UpdateUser(ctx context.Context, userID string, u domain.UserUpdate) error {
	set := bson.D{}
	if u.PasswordHash != nil {
		set = append(set, bson.E{Key: "senha", Value: *u.PasswordHash})
	}
	if u.Streak != nil {
		set = append(set, bson.E{Key: "streak", Value: *u.Streak})
	}
	if u.LastAccess != nil {
		set = append(set, bson.E{Key: "ultimoAcesso", Value: *u.LastAccess})
	}
	if u.LastLogin != nil {
		set = append(set, bson.E{Key: "ultimoLogin", Value: *u.LastLogin})
	}
	if len(set) == 0 {
		return nil
	}
	res, err := s.users.UpdateOne(ctx, bson.D{{Key: "_id", Value: userID}}, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return unavailable("update user "+userID, err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (s *Store) SaveResetCode(ctx context.Context, code domain.ResetCode) error {
	_, err := s.codes.ReplaceOne(ctx, bson.D{{Key: "_id", Value: code.UserID}}, code, options.Replace().SetUpsert(true))
	if err != nil {
		return unavailable("save reset code", err)
	}
	return nil
}

func (s *Store) GetResetCode(ctx context.Context, userID string) (domain.ResetCode, error) {
	var code domain.ResetCode
	err := s.codes.FindOne(ctx, bson.D{{Key: "_id", Value: userID}}).Decode(&code)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.ResetCode{}, domain.ErrResetCodeNotFound
	}
	if err != nil {
		return domain.ResetCode{}, unavailable("get reset code", err)
	}
	return code, nil
}

func (s *Store) IncrementResetAttempts(ctx context.Context, userID string) error {
	return s.updateCode(ctx, userID, bson.D{{Key: "$inc", Value: bson.D{{Key: "tentativas", Value: 1}}}})
}

func (s *Store) MarkResetCodeUsed(ctx context.Context, userID string) error {
	return s.updateCode(ctx, userID, bson.D{{Key: "$set", Value: bson.D{{Key: "usado", Value: true}}}})
}

func (s *Store) updateCode(ctx context.Context, userID string, update bson.D) error {
	res, err := s.codes.UpdateOne(ctx, bson.D{{Key: "_id", Value: userID}}, update)
	if err != nil {
		return unavailable("update reset code", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrResetCodeNotFound
	}
	return nil
}

func (s *Store) DeleteResetCode(ctx context.Context, userID string) error {
	if _, err := s.codes.DeleteOne(ctx, bson.D{{Key: "_id", Value: userID}}); err != nil {
		return unavailable("delete reset code", err)
	}
	return nil
}
