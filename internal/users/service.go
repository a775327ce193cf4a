package users

import (
	"context"
	"fmt"
	"time"

	"eventify/internal/apperr"
	"eventify/internal/kafka"
	"eventify/internal/logger"
	"eventify/internal/models"

	"github.com/google/uuid"
)

type DBLayer interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error)
	UpdateUserByExternalID(ctx context.Context, externalID string, patch models.UserPatch, now time.Time) (*models.User, error)
	DeleteUserByExternalID(ctx context.Context, externalID string) (*models.User, error)
}

// MetadataTagger links an identity-provider account to the internal user id.
type MetadataTagger interface {
	SetInternalUserID(ctx context.Context, externalAuthID string, userID models.UserID) error
}

type UserService struct {
	DB        DBLayer
	Identity  MetadataTagger
	Publisher kafka.Publisher
	Logger    *logger.Logger
	Now       func() time.Time
}

func NewUserService(store DBLayer, identity MetadataTagger, publisher kafka.Publisher, log *logger.Logger) *UserService {
	return &UserService{
		DB:        store,
		Identity:  identity,
		Publisher: publisher,
		Logger:    log,
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateUser stores the account and tags the provider metadata with the new id.
// A repeated delivery for a known account only re-tags it.
func (s *UserService) CreateUser(ctx context.Context, in models.NewUser) (*models.User, error) {
	if in.ExternalAuthID == "" {
		return nil, apperr.New(apperr.Invalid, "user id is required")
	}
	if in.Email == "" {
		return nil, apperr.New(apperr.Invalid, "user has no email address")
	}

	user, err := s.DB.GetUserByExternalID(ctx, in.ExternalAuthID)
	switch {
	case err == nil:
		s.Logger.Info("USERS", fmt.Sprintf("User %s already exists, re-tagging", in.ExternalAuthID))
	case apperr.Is(err, apperr.NotFound):
		user, err = s.insert(ctx, in)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if err := s.Identity.SetInternalUserID(ctx, user.ExternalAuthID, user.ID); err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "failed to link identity metadata")
	}
	return user, nil
}

func (s *UserService) insert(ctx context.Context, in models.NewUser) (*models.User, error) {
	now := s.Now()
	user := &models.User{
		ID:             models.UserID(uuid.NewString()),
		ExternalAuthID: in.ExternalAuthID,
		Email:          in.Email,
		Username:       in.Username,
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Photo:          in.Photo,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.DB.CreateUser(ctx, user); err != nil {
		// A concurrent delivery may have inserted the same account first.
		if apperr.Is(err, apperr.Conflict) {
			if existing, lookupErr := s.DB.GetUserByExternalID(ctx, in.ExternalAuthID); lookupErr == nil {
				return existing, nil
			}
		}
		return nil, err
	}

	s.Logger.Info("USERS", fmt.Sprintf("User %s created for %s", user.ID, user.ExternalAuthID))
	s.publish(ctx, kafka.UserCreated, string(user.ID), user)
	return user, nil
}

func (s *UserService) UpdateUser(ctx context.Context, externalAuthID string, patch models.UserPatch) (*models.User, error) {
	user, err := s.DB.UpdateUserByExternalID(ctx, externalAuthID, patch, s.Now())
	if err != nil {
		return nil, err
	}
	s.Logger.Info("USERS", fmt.Sprintf("User %s updated", user.ID))
	s.publish(ctx, kafka.UserUpdated, string(user.ID), user)
	return user, nil
}

// DeleteUser removes the account together with its events and orders.
func (s *UserService) DeleteUser(ctx context.Context, externalAuthID string) (*models.User, error) {
	if externalAuthID == "" {
		return nil, apperr.New(apperr.Invalid, "user id is required")
	}
	user, err := s.DB.DeleteUserByExternalID(ctx, externalAuthID)
	if err != nil {
		return nil, err
	}
	s.Logger.Info("USERS", fmt.Sprintf("User %s deleted", user.ID))
	s.publish(ctx, kafka.UserDeleted, string(user.ID), map[string]string{"id": string(user.ID), "externalAuthId": externalAuthID})
	return user, nil
}

func (s *UserService) publish(ctx context.Context, eventType, key string, data interface{}) {
	if err := s.Publisher.Publish(ctx, kafka.TopicUsers, eventType, key, data); err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("Failed to publish %s for %s: %v", eventType, key, err))
	}
}
