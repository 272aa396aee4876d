package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"teamsync/internal/model"
)

type FeedbackRepository struct {
	db *gorm.DB
}

func NewFeedbackRepository(db *gorm.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

func (r *FeedbackRepository) Create(ctx context.Context, feedback *model.Feedback) error {
	return r.db.WithContext(ctx).Create(feedback).Error
}

// GetByProjectID returns a project's feedback with the submitting users
// preloaded, oldest first.
func (r *FeedbackRepository) GetByProjectID(ctx context.Context, projectID uuid.UUID) ([]model.Feedback, error) {
	var feedback []model.Feedback

	err := r.db.WithContext(ctx).
		Preload("User").
		Where("project_id = ?", projectID).
		Order("created_at").
		Find(&feedback).Error

	return feedback, err
}

// CountByProject returns how many distinct members have submitted
// feedback for the project.
func (r *FeedbackRepository) CountByProject(ctx context.Context, projectID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Feedback{}).
		Where("project_id = ?", projectID).
		Count(&count).Error
	return count, err
}

// ExistsForMember reports whether the member already submitted feedback
// for the project.
func (r *FeedbackRepository) ExistsForMember(ctx context.Context, projectID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Feedback{}).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Count(&count).Error
	return count > 0, err
}
