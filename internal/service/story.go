package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"donation-service/internal/apperr"
	"donation-service/internal/domain"
	"donation-service/internal/identity"
	"donation-service/internal/repository"
	"donation-service/internal/validator"
)

const (
	RoleNGO   = "ngo"
	RoleAdmin = "admin"
)

type StoryRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	GoalAmount  int64  `json:"goalAmount"`
}

// StoryService manages fundraising stories: NGOs create and edit them,
// admins approve them before they can receive donations.
type StoryService struct {
	stories repository.StoryRepository
}

func NewStoryService(stories repository.StoryRepository) *StoryService {
	return &StoryService{stories: stories}
}

func (s *StoryService) Create(ctx context.Context, caller *identity.Caller, req StoryRequest) (*domain.Story, error) {
	if caller.Role != RoleNGO && caller.Role != RoleAdmin {
		return nil, apperr.ErrUnauthenticated.WithMessage("NGO role required")
	}
	if err := validator.ValidateStoryTitle(req.Title); err != nil {
		return nil, apperr.ErrInvalidArgument.WithMessage(err.Error())
	}
	if err := validator.ValidateGoalAmount(req.GoalAmount); err != nil {
		return nil, apperr.ErrInvalidArgument.WithMessage(err.Error())
	}

	now := time.Now().UTC()
	story := &domain.Story{
		ID:          uuid.NewString(),
		NGOID:       caller.UserID,
		NGOName:     caller.Name,
		Title:       req.Title,
		Description: req.Description,
		Status:      domain.StoryPending,
		GoalAmount:  req.GoalAmount,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.stories.Create(ctx, story); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"story_id": story.ID,
		"ngo_id":   story.NGOID,
	}).Info("Story created, awaiting approval")
	return story, nil
}

func (s *StoryService) Update(ctx context.Context, caller *identity.Caller, storyID string, req StoryRequest) error {
	if err := validator.ValidateStoryTitle(req.Title); err != nil {
		return apperr.ErrInvalidArgument.WithMessage(err.Error())
	}
	if err := validator.ValidateGoalAmount(req.GoalAmount); err != nil {
		return apperr.ErrInvalidArgument.WithMessage(err.Error())
	}

	story, err := s.stories.GetByID(ctx, storyID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.ErrNotFound.WithMessage("Story not found")
	}
	if err != nil {
		return err
	}
	if story.NGOID != caller.UserID && caller.Role != RoleAdmin {
		return apperr.ErrUnauthenticated.WithMessage("Only the owning NGO can edit this story")
	}

	return s.stories.Update(ctx, storyID, req.Title, req.Description, req.GoalAmount)
}

// Approve moves a pending story to active, or rejects it.
func (s *StoryService) Approve(ctx context.Context, caller *identity.Caller, storyID string, approve bool) error {
	if caller.Role != RoleAdmin {
		return apperr.ErrUnauthenticated.WithMessage("Admin role required")
	}

	story, err := s.stories.GetByID(ctx, storyID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.ErrNotFound.WithMessage("Story not found")
	}
	if err != nil {
		return err
	}
	if story.Status != domain.StoryPending {
		return apperr.ErrInvalidState.WithMessage("Story is not awaiting approval")
	}

	status := domain.StoryActive
	if !approve {
		status = domain.StoryRejected
	}
	if err := s.stories.SetStatus(ctx, storyID, status); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"story_id": storyID,
		"status":   status,
		"admin_id": caller.UserID,
	}).Info("Story reviewed")
	return nil
}
