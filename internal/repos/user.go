package repos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/slotter-org/clinic-voice-scheduler/internal/errordata"
	"github.com/slotter-org/clinic-voice-scheduler/internal/logger"
	"github.com/slotter-org/clinic-voice-scheduler/internal/types"
)

type UserRepo interface {
	// CREATE
	Create(ctx context.Context, user *types.User) (*types.User, error)

	// READ
	GetByID(ctx context.Context, userID uuid.UUID) (*types.User, error)
	GetByContactNumber(ctx context.Context, contactNumber string) (*types.User, error)
	GetByEmail(ctx context.Context, email string) (*types.User, error)
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	repoLog := baseLog.With("repo", "UserRepo")
	return &userRepo{db: db, log: repoLog}
}

// prepareUser fills generated fields before insert.
func prepareUser(user *types.User) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if user.Email != nil {
		e := strings.ToLower(strings.TrimSpace(*user.Email))
		if e == "" {
			user.Email = nil
		} else {
			user.Email = &e
		}
	}
}

func (ur *userRepo) Create(ctx context.Context, user *types.User) (*types.User, error) {
	ur.log.Info("Starting Create User now...")
	if user == nil || user.ContactNumber == "" {
		return nil, fmt.Errorf("create user: %w", errordata.ErrInvalidInput)
	}
	prepareUser(user)
	if err := ur.db.WithContext(ctx).Create(user).Error; err != nil {
		ur.log.Error("Failed to create user", "error", err)
		return nil, translate(err, "create user")
	}
	ur.log.Info("Successfully created user", "userID", user.ID)
	return user, nil
}

func (ur *userRepo) GetByID(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	var user types.User
	if err := ur.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, translate(err, "get user by id")
	}
	return &user, nil
}

func (ur *userRepo) GetByContactNumber(ctx context.Context, contactNumber string) (*types.User, error) {
	var user types.User
	err := ur.db.WithContext(ctx).
		Where("contact_number = ?", strings.TrimSpace(contactNumber)).
		First(&user).Error
	if err != nil {
		return nil, translate(err, "get user by contact number")
	}
	return &user, nil
}

func (ur *userRepo) GetByEmail(ctx context.Context, email string) (*types.User, error) {
	var user types.User
	err := ur.db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		Order("created_at ASC").
		First(&user).Error
	if err != nil {
		return nil, translate(err, "get user by email")
	}
	return &user, nil
}
