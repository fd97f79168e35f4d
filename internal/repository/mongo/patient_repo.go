package mongo

import (
	"context"
	"errors"
	"time"

	"alcyxob/physiotrack/internal/domain"
	"alcyxob/physiotrack/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const patientCollectionName = "patients"

// Server code returned when $changeStream runs against a standalone mongod.
const changeStreamUnsupportedCode = 40573

const (
	minResubscribeBackoff = 500 * time.Millisecond
	maxResubscribeBackoff = 30 * time.Second
	defaultPollInterval   = 5 * time.Second
)

var errStreamInvalidated = errors.New("change stream invalidated")

// mongoPatientRepository implements repository.PatientRepository
type mongoPatientRepository struct {
	collection   *mongo.Collection
	pollInterval time.Duration
	log          *zap.Logger
}

// patientChangeEvent is the subset of a change stream event we act on.
type patientChangeEvent struct {
	OperationType string `bson:"operationType"`
	DocumentKey   struct {
		ID string `bson:"_id"`
	} `bson:"documentKey"`
	FullDocument *domain.PatientData `bson:"fullDocument"`
}

// NewMongoPatientRepository creates a new Patient repository backed by MongoDB.
// pollInterval is only used when the deployment does not support change streams.
func NewMongoPatientRepository(db *mongo.Database, pollInterval time.Duration, log *zap.Logger) repository.PatientRepository {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &mongoPatientRepository{
		collection:   db.Collection(patientCollectionName),
		pollInterval: pollInterval,
		log:          log.Named("mongo.patients"),
	}
}

// Get retrieves a patient document by its barcode ID.
func (r *mongoPatientRepository) Get(ctx context.Context, id string) (*domain.PatientData, error) {
	var patient domain.PatientData
	filter := bson.M{"_id": id}

	err := r.collection.FindOne(ctx, filter).Decode(&patient)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &patient, nil
}

// Put replaces the whole document, inserting it on first save.
// There is no field-level merge: exercises missing from patient are dropped.
func (r *mongoPatientRepository) Put(ctx context.Context, patient *domain.PatientData) error {
	if err := repository.ValidateForWrite(patient); err != nil {
		return err
	}

	filter := bson.M{"_id": patient.ID}
	_, err := r.collection.ReplaceOne(ctx, filter, patient, options.Replace().SetUpsert(true))
	return err
}

// Subscribe watches the collection with a change stream and pushes the full
// contents after every event. On a standalone server it polls instead.
func (r *mongoPatientRepository) Subscribe(ctx context.Context, onSnapshot repository.SnapshotFunc, onError repository.ErrorFunc) (func(), error) {
	if onError == nil {
		onError = func(error) {}
	}
	subCtx, cancel := context.WithCancel(ctx)
	go r.watchLoop(subCtx, onSnapshot, onError)
	return cancel, nil
}

func (r *mongoPatientRepository) watchLoop(ctx context.Context, onSnapshot repository.SnapshotFunc, onError repository.ErrorFunc) {
	backoff := minResubscribeBackoff
	for {
		err := r.watchOnce(ctx, onSnapshot)
		if ctx.Err() != nil {
			return
		}
		if isChangeStreamUnsupported(err) {
			r.log.Info("Change streams unavailable, falling back to polling", zap.Duration("interval", r.pollInterval))
			r.pollLoop(ctx, onSnapshot, onError)
			return
		}
		if err != nil {
			onError(err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxResubscribeBackoff {
			backoff = maxResubscribeBackoff
		}
	}
}

// watchOnce opens the stream before the initial load so nothing written in between is missed.
func (r *mongoPatientRepository) watchOnce(ctx context.Context, onSnapshot repository.SnapshotFunc) error {
	streamOpts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	stream, err := r.collection.Watch(ctx, mongo.Pipeline{}, streamOpts)
	if err != nil {
		return err
	}
	defer stream.Close(context.Background())

	docs, err := r.loadAll(ctx)
	if err != nil {
		return err
	}
	onSnapshot(repository.SnapshotOf(docs))

	for stream.Next(ctx) {
		var event patientChangeEvent
		if err := stream.Decode(&event); err != nil {
			r.log.Warn("Skipping undecodable change event", zap.Error(err))
			continue
		}

		switch event.OperationType {
		case "insert", "update", "replace":
			if event.FullDocument == nil {
				// Deleted again before the lookup ran.
				delete(docs, event.DocumentKey.ID)
			} else {
				docs[event.FullDocument.ID] = *event.FullDocument
			}
		case "delete":
			delete(docs, event.DocumentKey.ID)
		case "drop", "rename", "dropDatabase", "invalidate":
			return errStreamInvalidated
		default:
			continue
		}
		onSnapshot(repository.SnapshotOf(docs))
	}
	return stream.Err()
}

// collectionMark is a cheap fingerprint used to skip reloads while polling.
type collectionMark struct {
	count  int64
	newest int64
}

// pollLoop reloads the collection whenever its document count or newest
// lastUpdated stamp moves.
func (r *mongoPatientRepository) pollLoop(ctx context.Context, onSnapshot repository.SnapshotFunc, onError repository.ErrorFunc) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	var last *collectionMark
	for {
		if err := r.pollOnce(ctx, &last, onSnapshot); err != nil && ctx.Err() == nil {
			onError(err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *mongoPatientRepository) pollOnce(ctx context.Context, last **collectionMark, onSnapshot repository.SnapshotFunc) error {
	mark, err := r.probe(ctx)
	if err != nil {
		return err
	}
	if *last != nil && **last == mark {
		return nil
	}

	docs, err := r.loadAll(ctx)
	if err != nil {
		return err
	}
	*last = &mark
	onSnapshot(repository.SnapshotOf(docs))
	return nil
}

func (r *mongoPatientRepository) probe(ctx context.Context) (collectionMark, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return collectionMark{}, err
	}

	var newest struct {
		LastUpdated int64 `bson:"lastUpdated"`
	}
	findOpts := options.FindOne().
		SetSort(bson.D{{Key: "lastUpdated", Value: -1}}).
		SetProjection(bson.M{"lastUpdated": 1})
	err = r.collection.FindOne(ctx, bson.M{}, findOpts).Decode(&newest)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return collectionMark{}, err
	}
	return collectionMark{count: count, newest: newest.LastUpdated}, nil
}

func (r *mongoPatientRepository) loadAll(ctx context.Context) (map[string]domain.PatientData, error) {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	return decodePatients(ctx, cursor, r.log)
}

// documentCursor is the part of *mongo.Cursor that decodePatients needs.
type documentCursor interface {
	Next(ctx context.Context) bool
	Decode(val interface{}) error
	Err() error
}

// decodePatients drains cur. A document that fails to decode is logged and
// skipped; only cursor (transport) errors fail the load.
func decodePatients(ctx context.Context, cur documentCursor, log *zap.Logger) (map[string]domain.PatientData, error) {
	docs := make(map[string]domain.PatientData)
	for cur.Next(ctx) {
		var p domain.PatientData
		if err := cur.Decode(&p); err != nil {
			log.Warn("Skipping undecodable patient document", zap.Error(err))
			continue
		}
		docs[p.ID] = p
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

func isChangeStreamUnsupported(err error) bool {
	var serverErr mongo.ServerError
	return errors.As(err, &serverErr) && serverErr.HasErrorCode(changeStreamUnsupportedCode)
}

// EnsurePatientIndexes creates necessary indexes for the patients collection.
// The _id index already serves point reads; lastUpdated backs the polling probe.
func EnsurePatientIndexes(ctx context.Context, collection *mongo.Collection, log *zap.Logger) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "lastUpdated", Value: -1}},
			Options: options.Index(),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		log.Warn("Failed to create indexes", zap.String("collection", collection.Name()), zap.Error(err))
	}
}
