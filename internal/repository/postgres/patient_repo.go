// Package postgres stores patient documents as JSONB rows and streams changes
// through LISTEN/NOTIFY.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"alcyxob/physiotrack/internal/domain"
	"alcyxob/physiotrack/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	minRelistenBackoff = 500 * time.Millisecond
	maxRelistenBackoff = 30 * time.Second
)

type patientRepository struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// NewPatientRepository creates a Postgres-backed patient store. Call EnsureSchema first.
func NewPatientRepository(pool *pgxpool.Pool, log *zap.Logger) repository.PatientRepository {
	return &patientRepository{pool: pool, log: log.Named("postgres.patients")}
}

func (r *patientRepository) Get(ctx context.Context, id string) (*domain.PatientData, error) {
	var body []byte
	err := r.pool.QueryRow(ctx, `SELECT body FROM patients WHERE id = $1`, id).Scan(&body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return decodePatient(body)
}

func (r *patientRepository) Put(ctx context.Context, patient *domain.PatientData) error {
	if err := repository.ValidateForWrite(patient); err != nil {
		return err
	}
	body, err := json.Marshal(patient)
	if err != nil {
		return fmt.Errorf("encode patient %s: %w", patient.ID, err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO patients (id, body, last_updated) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET body = EXCLUDED.body, last_updated = EXCLUDED.last_updated`,
		patient.ID, body, patient.LastUpdated)
	return err
}

// Subscribe holds one pooled connection in LISTEN mode. Each notification
// re-reads the changed row and pushes the updated collection.
func (r *patientRepository) Subscribe(ctx context.Context, onSnapshot repository.SnapshotFunc, onError repository.ErrorFunc) (func(), error) {
	if onError == nil {
		onError = func(error) {}
	}
	subCtx, cancel := context.WithCancel(ctx)
	go r.listenLoop(subCtx, onSnapshot, onError)
	return cancel, nil
}

func (r *patientRepository) listenLoop(ctx context.Context, onSnapshot repository.SnapshotFunc, onError repository.ErrorFunc) {
	backoff := minRelistenBackoff
	for {
		err := r.listenOnce(ctx, onSnapshot)
		if ctx.Err() != nil {
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
		if backoff > maxRelistenBackoff {
			backoff = maxRelistenBackoff
		}
	}
}

// listenOnce issues LISTEN before the initial load so no write in between is lost.
func (r *patientRepository) listenOnce(ctx context.Context, onSnapshot repository.SnapshotFunc) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return err
	}
	defer func() {
		// Leave the connection clean for the pool.
		unlistenCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = conn.Exec(unlistenCtx, "UNLISTEN "+notifyChannel)
	}()

	docs, err := r.loadAll(ctx)
	if err != nil {
		return err
	}
	onSnapshot(repository.SnapshotOf(docs))

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}

		doc, err := r.Get(ctx, n.Payload)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			delete(docs, n.Payload)
		case err != nil:
			return err
		default:
			docs[doc.ID] = *doc
		}
		onSnapshot(repository.SnapshotOf(docs))
	}
}

func (r *patientRepository) loadAll(ctx context.Context) (map[string]domain.PatientData, error) {
	rows, err := r.pool.Query(ctx, `SELECT body FROM patients`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make(map[string]domain.PatientData)
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		p, err := decodePatient(body)
		if err != nil {
			r.log.Warn("Skipping undecodable patient row", zap.Error(err))
			continue
		}
		docs[p.ID] = *p
	}
	return docs, rows.Err()
}

func decodePatient(body []byte) (*domain.PatientData, error) {
	var p domain.PatientData
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode patient body: %w", err)
	}
	return &p, nil
}
