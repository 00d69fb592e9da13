package db

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/slotter-org/clinic-voice-scheduler/internal/logger"
)

// Bucket names for the embedded store. Index buckets are written in the
// same transaction as the rows they index.
var (
	BucketUsers          = []byte("users")
	BucketUsersByContact = []byte("users_by_contact")
	BucketAppointments   = []byte("appointments")
	BucketBookedSlots    = []byte("booked_slots")
	BucketSessions       = []byte("session_memory")
	BucketMessages       = []byte("messages")
)

var allBuckets = [][]byte{
	BucketUsers,
	BucketUsersByContact,
	BucketAppointments,
	BucketBookedSlots,
	BucketSessions,
	BucketMessages,
}

type BoltService struct {
	db  *bolt.DB
	log *logger.Logger
}

func NewBoltService(path string, log *logger.Logger) (*BoltService, error) {
	serviceLog := log.With("service", "BoltService", "path", path)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create bolt dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		serviceLog.Error("Failed to open Bolt DB", "error", err)
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			if _, e := tx.CreateBucketIfNotExists(name); e != nil {
				return fmt.Errorf("create bucket %s: %w", name, e)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	serviceLog.Info("Bolt DB ready :)")
	return &BoltService{db: db, log: serviceLog}, nil
}

func (s *BoltService) DB() *bolt.DB {
	return s.db
}

func (s *BoltService) Close() error {
	return s.db.Close()
}
