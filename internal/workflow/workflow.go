// Package workflow implements the project completion state machine. A
// project never goes from in-progress to completed by a single user
// action: once every task is done, each member submits one feedback
// record, and the status flips when the feedback count reaches the live
// member count. The count check and the status write happen inside one
// database transaction holding a lock on the project row, so two members
// submitting the last entries concurrently cannot lose the flip.
package workflow

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"teamsync/internal/model"
	"teamsync/internal/repository"
)

const minCommentLength = 10

type Workflow struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Workflow {
	return &Workflow{db: db}
}

// ValidateFeedback checks the feedback input shape. Run before any write.
func ValidateFeedback(rating int, comment string) error {
	if rating < 1 || rating > 5 {
		return &ValidationError{Field: "rating", Reason: "must be between 1 and 5"}
	}
	if len(strings.TrimSpace(comment)) < minCommentLength {
		return &ValidationError{Field: "comment", Reason: "must be at least 10 characters"}
	}
	return nil
}

// ValidateTaskDueDate enforces that a task never outlives its project.
func ValidateTaskDueDate(project *model.Project, dueDate time.Time) error {
	if dueDate.After(project.DueDate) {
		return &ValidationError{Field: "due_date", Reason: "must not be after the project due date"}
	}
	return nil
}

// EnsureMutable rejects task mutations on a completed project. Completed
// is terminal: no task create, edit, toggle or delete can reopen it.
func EnsureMutable(project *model.Project) error {
	if project.Status == model.StatusCompleted {
		return ErrProjectCompleted
	}
	return nil
}

// SubmitFeedback records one member's completion feedback and flips the
// project to completed when the last member's feedback lands. It returns
// the created record and whether this submission completed the project.
//
// Guards, the feedback insert, the live recount and the status flip all
// run inside a single transaction. The flip itself is a conditional
// update on the current status, so it is idempotent under concurrent
// submissions.
func (w *Workflow) SubmitFeedback(ctx context.Context, projectID, userID uuid.UUID, rating int, comment string) (*model.Feedback, bool, error) {
	if err := ValidateFeedback(rating, comment); err != nil {
		return nil, false, err
	}

	var feedback *model.Feedback
	completedNow := false

	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Locking the project row serializes concurrent submitters.
		// Under read committed, two final submitters would otherwise
		// each count only their own insert plus prior committed rows
		// and both skip the flip.
		var project model.Project
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&project, "id = ?", projectID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return repository.ErrProjectNotFound
			}
			return err
		}

		var isMember int64
		if err := tx.Table("project_members").
			Where("project_id = ? AND user_id = ?", projectID, userID).
			Count(&isMember).Error; err != nil {
			return err
		}
		if isMember == 0 {
			return ErrNotMember
		}

		// While the project is still in progress, feedback is only
		// accepted once every task is done. A completed project still
		// accepts feedback from members who have not submitted yet
		// (members added late submit after the flip).
		if project.Status == model.StatusInProgress {
			var total, done int64
			if err := tx.Model(&model.Task{}).Where("project_id = ?", projectID).Count(&total).Error; err != nil {
				return err
			}
			if err := tx.Model(&model.Task{}).Where("project_id = ? AND completed = ?", projectID, true).Count(&done).Error; err != nil {
				return err
			}
			if total == 0 || done != total {
				return ErrNotEligible
			}
		}

		var prior int64
		if err := tx.Model(&model.Feedback{}).
			Where("project_id = ? AND user_id = ?", projectID, userID).
			Count(&prior).Error; err != nil {
			return err
		}
		if prior > 0 {
			return ErrDuplicateSubmission
		}

		feedback = &model.Feedback{
			ID:        uuid.New(),
			ProjectID: projectID,
			UserID:    userID,
			Rating:    rating,
			Comment:   comment,
		}
		if err := tx.Create(feedback).Error; err != nil {
			return err
		}

		flipped, err := completeIfSatisfied(tx, projectID)
		if err != nil {
			return err
		}
		completedNow = flipped
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return feedback, completedNow, nil
}

// Reconcile re-evaluates the completion threshold and performs the status
// flip if an earlier submission recorded feedback but the flip never
// landed. Safe to call on every project read; it writes nothing unless
// the threshold is met.
func (w *Workflow) Reconcile(ctx context.Context, projectID uuid.UUID) (bool, error) {
	flipped := false
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var project model.Project
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&project, "id = ?", projectID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return repository.ErrProjectNotFound
			}
			return err
		}
		if project.Status == model.StatusCompleted {
			return nil
		}

		var total, done int64
		if err := tx.Model(&model.Task{}).Where("project_id = ?", projectID).Count(&total).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.Task{}).Where("project_id = ? AND completed = ?", projectID, true).Count(&done).Error; err != nil {
			return err
		}
		if total == 0 || done != total {
			return nil
		}

		var err error
		flipped, err = completeIfSatisfied(tx, projectID)
		return err
	})
	return flipped, err
}

// completeIfSatisfied recounts feedback against the live member count and
// conditionally flips the status. Both counts are recomputed here: adding
// a member after partial feedback collection raises the threshold.
func completeIfSatisfied(tx *gorm.DB, projectID uuid.UUID) (bool, error) {
	var members int64
	if err := tx.Table("project_members").
		Where("project_id = ?", projectID).
		Count(&members).Error; err != nil {
		return false, err
	}

	var submitted int64
	if err := tx.Model(&model.Feedback{}).
		Where("project_id = ?", projectID).
		Count(&submitted).Error; err != nil {
		return false, err
	}

	if members == 0 || submitted < members {
		return false, nil
	}

	result := tx.Model(&model.Project{}).
		Where("id = ? AND status = ?", projectID, model.StatusInProgress).
		Update("status", model.StatusCompleted)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
