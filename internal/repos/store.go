package repos

import (
	"errors"
	"fmt"

	bolt "go.etcd.io/bbolt"
	"gorm.io/gorm"

	"github.com/slotter-org/clinic-voice-scheduler/internal/errordata"
	"github.com/slotter-org/clinic-voice-scheduler/internal/logger"
)

// Store bundles the repositories one backend provides.
type Store struct {
	Users        UserRepo
	Appointments AppointmentRepo
	Sessions     SessionRepo
	Messages     ChatMessageRepo
}

func NewPostgresStore(db *gorm.DB, log *logger.Logger) *Store {
	return &Store{
		Users:        NewUserRepo(db, log),
		Appointments: NewAppointmentRepo(db, log),
		Sessions:     NewSessionRepo(db, log),
		Messages:     NewChatMessageRepo(db, log),
	}
}

func NewBoltStore(db *bolt.DB, log *logger.Logger) *Store {
	return &Store{
		Users:        NewBoltUserRepo(db, log),
		Appointments: NewBoltAppointmentRepo(db, log),
		Sessions:     NewBoltSessionRepo(db, log),
		Messages:     NewBoltChatMessageRepo(db, log),
	}
}

// translate maps gorm sentinels onto the shared taxonomy.
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", what, errordata.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", what, errordata.ErrConflict)
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}
