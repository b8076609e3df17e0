// Package storage persists interview records in a badger key/value
// store.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v3"

	"github.com/stebratori/jobBolt-backend/internal/models"
)

// ErrInterviewNotFound reports an operation against an interview
// record that does not exist. UpsertAnalysis deliberately fails with
// this: analysis fields are only ever written onto existing records.
var ErrInterviewNotFound = errors.New("interview not found")

// InterviewStore is the persistence collaborator for interview
// records.
type InterviewStore interface {
	PutInterview(rec *models.InterviewRecord) error
	GetInterview(companyID, jobID, interviewID string) (*models.InterviewRecord, error)
	UpsertAnalysis(companyID, jobID, interviewID string, result *models.AnalysisResult, durationSec int) error
	Close() error
}

type diskStore struct {
	db *badger.DB
}

// NewDiskStore opens (or creates) a badger-backed store under path.
func NewDiskStore(path string) (InterviewStore, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	opts := badger.DefaultOptions(filepath.Join(path, "badger"))
	opts.Logger = nil // badger's own logging is noise here

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	return &diskStore{db: db}, nil
}

func interviewKey(companyID, jobID, interviewID string) []byte {
	return []byte(fmt.Sprintf("interview/%s/%s/%s", companyID, jobID, interviewID))
}

// PutInterview writes (or overwrites) an interview record.
func (s *diskStore) PutInterview(rec *models.InterviewRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal interview: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(interviewKey(rec.CompanyID, rec.JobID, rec.InterviewID), data)
	})
}

// GetInterview loads one interview record.
func (s *diskStore) GetInterview(companyID, jobID, interviewID string) (*models.InterviewRecord, error) {
	var rec models.InterviewRecord

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(interviewKey(companyID, jobID, interviewID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrInterviewNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get interview: %w", err)
	}

	return &rec, nil
}

// UpsertAnalysis writes analysis fields onto an existing interview
// record inside one transaction. Fails with ErrInterviewNotFound if
// the record does not exist.
func (s *diskStore) UpsertAnalysis(companyID, jobID, interviewID string, result *models.AnalysisResult, durationSec int) error {
	key := interviewKey(companyID, jobID, interviewID)

	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}

		var rec models.InterviewRecord
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		}); err != nil {
			return err
		}

		now := time.Now().UTC()
		rec.Analysis = result
		rec.AnalyzedAt = &now
		if durationSec > 0 {
			rec.DurationSec = durationSec
		}

		data, err := json.Marshal(&rec)
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrInterviewNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to upsert analysis: %w", err)
	}
	return nil
}

func (s *diskStore) Close() error {
	return s.db.Close()
}
