package repos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/slotter-org/clinic-voice-scheduler/internal/db"
	"github.com/slotter-org/clinic-voice-scheduler/internal/errordata"
	"github.com/slotter-org/clinic-voice-scheduler/internal/logger"
	"github.com/slotter-org/clinic-voice-scheduler/internal/types"
)

// boltAppointmentRepo keeps booked_slots (slot time -> appointment id) in
// step with the appointments bucket inside each write transaction.
type boltAppointmentRepo struct {
	db  *bolt.DB
	log *logger.Logger
}

func NewBoltAppointmentRepo(bdb *bolt.DB, baseLog *logger.Logger) AppointmentRepo {
	return &boltAppointmentRepo{db: bdb, log: baseLog.With("repo", "BoltAppointmentRepo")}
}

func (r *boltAppointmentRepo) Create(ctx context.Context, appt *types.Appointment) (*types.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if appt == nil || appt.ContactNumber == "" {
		return nil, fmt.Errorf("create appointment: %w", errordata.ErrInvalidInput)
	}
	prepareAppointment(appt)
	err := r.db.Update(func(tx *bolt.Tx) error {
		slots := tx.Bucket(db.BucketBookedSlots)
		key := slotKey(appt.AppointmentTime)
		if appt.Status == types.AppointmentBooked {
			if slots.Get(key) != nil {
				return fmt.Errorf("create appointment: %w", errordata.ErrConflict)
			}
			if err := slots.Put(key, []byte(appt.ID.String())); err != nil {
				return err
			}
		}
		return boltPut(tx.Bucket(db.BucketAppointments), []byte(appt.ID.String()), appt)
	})
	if err != nil {
		r.log.Warn("Failed to create appointment", "error", err)
		return nil, err
	}
	return appt, nil
}

func (r *boltAppointmentRepo) GetByID(ctx context.Context, apptID uuid.UUID) (*types.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var appt types.Appointment
	err := r.db.View(func(tx *bolt.Tx) error {
		ok, err := boltGet(tx.Bucket(db.BucketAppointments), []byte(apptID.String()), &appt)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("get appointment: %w", errordata.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &appt, nil
}

func (r *boltAppointmentRepo) IsSlotBooked(ctx context.Context, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var booked bool
	err := r.db.View(func(tx *bolt.Tx) error {
		booked = tx.Bucket(db.BucketBookedSlots).Get(slotKey(at.Truncate(time.Minute))) != nil
		return nil
	})
	return booked, err
}

func (r *boltAppointmentRepo) ListBookedBetween(ctx context.Context, from, to time.Time) ([]*types.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []*types.Appointment
	err := r.db.View(func(tx *bolt.Tx) error {
		appts := tx.Bucket(db.BucketAppointments)
		c := tx.Bucket(db.BucketBookedSlots).Cursor()
		end := slotKey(to)
		for k, id := c.Seek(slotKey(from)); k != nil && bytes.Compare(k, end) < 0; k, id = c.Next() {
			var appt types.Appointment
			ok, err := boltGet(appts, id, &appt)
			if err != nil {
				return err
			}
			if ok {
				out = append(out, &appt)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *boltAppointmentRepo) ListBookedByContact(ctx context.Context, contactNumber string) ([]*types.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := []*types.Appointment{}
	err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(db.BucketAppointments).ForEach(func(_, v []byte) error {
			var appt types.Appointment
			if err := json.Unmarshal(v, &appt); err != nil {
				return nil
			}
			if appt.ContactNumber == contactNumber && appt.Status == types.AppointmentBooked {
				out = append(out, &appt)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AppointmentTime.Before(out[j].AppointmentTime)
	})
	return out, nil
}

// loadOwnedBooked reads a booked appointment owned by contactNumber or
// fails with ErrNotFound.
func loadOwnedBooked(tx *bolt.Tx, apptID uuid.UUID, contactNumber, what string) (*types.Appointment, error) {
	var appt types.Appointment
	ok, err := boltGet(tx.Bucket(db.BucketAppointments), []byte(apptID.String()), &appt)
	if err != nil {
		return nil, err
	}
	if !ok || appt.ContactNumber != contactNumber || appt.Status != types.AppointmentBooked {
		return nil, fmt.Errorf("%s: %w", what, errordata.ErrNotFound)
	}
	return &appt, nil
}

func (r *boltAppointmentRepo) Reschedule(ctx context.Context, apptID uuid.UUID, contactNumber string, newTime time.Time) (*types.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	newTime = newTime.UTC().Truncate(time.Minute)
	var updated *types.Appointment
	err := r.db.Update(func(tx *bolt.Tx) error {
		appt, err := loadOwnedBooked(tx, apptID, contactNumber, "reschedule appointment")
		if err != nil {
			return err
		}
		slots := tx.Bucket(db.BucketBookedSlots)
		newKey := slotKey(newTime)
		if holder := slots.Get(newKey); holder != nil && string(holder) != apptID.String() {
			return fmt.Errorf("reschedule appointment: %w", errordata.ErrConflict)
		}
		if err := slots.Delete(slotKey(appt.AppointmentTime)); err != nil {
			return err
		}
		if err := slots.Put(newKey, []byte(apptID.String())); err != nil {
			return err
		}
		appt.AppointmentTime = newTime
		appt.UpdatedAt = time.Now().UTC()
		updated = appt
		return boltPut(tx.Bucket(db.BucketAppointments), []byte(apptID.String()), appt)
	})
	if err != nil {
		r.log.Warn("Failed to reschedule appointment", "error", err)
		return nil, err
	}
	return updated, nil
}

func (r *boltAppointmentRepo) Cancel(ctx context.Context, apptID uuid.UUID, contactNumber string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		appt, err := loadOwnedBooked(tx, apptID, contactNumber, "cancel appointment")
		if err != nil {
			return err
		}
		if err := tx.Bucket(db.BucketBookedSlots).Delete(slotKey(appt.AppointmentTime)); err != nil {
			return err
		}
		appt.Status = types.AppointmentCancelled
		appt.UpdatedAt = time.Now().UTC()
		return boltPut(tx.Bucket(db.BucketAppointments), []byte(apptID.String()), appt)
	})
}
