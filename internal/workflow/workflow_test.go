package workflow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"teamsync/internal/model"
	"teamsync/internal/progress"
	"teamsync/internal/workflow"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// In-memory SQLite gives every pooled connection its own database;
	// pin the pool to one connection so all queries see the same data.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&model.User{}, &model.Project{}, &model.Task{}, &model.Feedback{}))
	return db
}

type fixture struct {
	db      *gorm.DB
	wf      *workflow.Workflow
	project model.Project
	members []model.User
	tasks   []model.Task
}

// newFixture creates a project with the given number of members (the
// first one is the owner) and incomplete tasks.
func newFixture(t *testing.T, memberCount, taskCount int) *fixture {
	db := setupDB(t)

	members := make([]model.User, memberCount)
	for i := range members {
		members[i] = model.User{
			ID:             uuid.New(),
			Email:          uuid.NewString() + "@example.com",
			HashedPassword: "hashed",
			Name:           "Member",
		}
		require.NoError(t, db.Create(&members[i]).Error)
	}

	dueDate := time.Date(2024, 11, 15, 0, 0, 0, 0, time.UTC)
	project := model.Project{
		ID:          uuid.New(),
		Name:        "Website Redesign",
		Description: "Complete overhaul of the company website.",
		DueDate:     dueDate,
		OwnerID:     members[0].ID,
		Status:      model.StatusInProgress,
		Members:     members,
	}
	require.NoError(t, db.Create(&project).Error)

	tasks := make([]model.Task, taskCount)
	for i := range tasks {
		tasks[i] = model.Task{
			ID:        uuid.New(),
			ProjectID: project.ID,
			Title:     "Task",
			DueDate:   dueDate.AddDate(0, 0, -1),
			CreatedBy: members[0].ID,
		}
		require.NoError(t, db.Create(&tasks[i]).Error)
	}

	return &fixture{
		db:      db,
		wf:      workflow.New(db),
		project: project,
		members: members,
		tasks:   tasks,
	}
}

func (f *fixture) completeAllTasks(t *testing.T) {
	require.NoError(t, f.db.Model(&model.Task{}).
		Where("project_id = ?", f.project.ID).
		Update("completed", true).Error)
}

func (f *fixture) status(t *testing.T) string {
	var project model.Project
	require.NoError(t, f.db.First(&project, "id = ?", f.project.ID).Error)
	return project.Status
}

func (f *fixture) feedbackCount(t *testing.T) int64 {
	var count int64
	require.NoError(t, f.db.Model(&model.Feedback{}).
		Where("project_id = ?", f.project.ID).
		Count(&count).Error)
	return count
}

func TestSubmitFeedback_RejectedWhileTasksOpen(t *testing.T) {
	f := newFixture(t, 2, 2)

	var tasks []model.Task
	require.NoError(t, f.db.Where("project_id = ?", f.project.ID).Find(&tasks).Error)
	assert.False(t, progress.Compute(tasks).AllCompleted())

	_, _, err := f.wf.SubmitFeedback(context.Background(), f.project.ID, f.members[0].ID, 4, "Good work overall")

	assert.ErrorIs(t, err, workflow.ErrNotEligible)
	assert.Equal(t, int64(0), f.feedbackCount(t))
	assert.Equal(t, model.StatusInProgress, f.status(t))
}

func TestSubmitFeedback_StatusStaysUntilEveryMemberSubmits(t *testing.T) {
	f := newFixture(t, 2, 2)
	f.completeAllTasks(t)

	// All tasks done, no feedback yet: ready for review, not completed.
	assert.Equal(t, model.StatusInProgress, f.status(t))

	fb, completedNow, err := f.wf.SubmitFeedback(context.Background(), f.project.ID, f.members[0].ID, 4, "Good work overall")
	require.NoError(t, err)
	assert.False(t, completedNow)
	assert.Equal(t, 4, fb.Rating)
	assert.Equal(t, int64(1), f.feedbackCount(t))
	assert.Equal(t, model.StatusInProgress, f.status(t))
}

func TestSubmitFeedback_LastMemberCompletesProject(t *testing.T) {
	f := newFixture(t, 2, 2)
	f.completeAllTasks(t)

	_, completedNow, err := f.wf.SubmitFeedback(context.Background(), f.project.ID, f.members[0].ID, 4, "Good work overall")
	require.NoError(t, err)
	assert.False(t, completedNow)

	_, completedNow, err = f.wf.SubmitFeedback(context.Background(), f.project.ID, f.members[1].ID, 5, "Excellent collaboration")
	require.NoError(t, err)
	assert.True(t, completedNow)
	assert.Equal(t, int64(2), f.feedbackCount(t))
	assert.Equal(t, model.StatusCompleted, f.status(t))
}

func TestSubmitFeedback_ConcurrentFinalSubmittersFlipExactlyOnce(t *testing.T) {
	f := newFixture(t, 2, 2)
	f.completeAllTasks(t)

	// Both remaining members submit at the same time. The project row
	// lock serializes the two transactions, so whichever lands second
	// sees both feedback rows and performs the flip itself; it must not
	// be left to a later Reconcile.
	results := make([]bool, len(f.members))
	errs := make([]error, len(f.members))

	var wg sync.WaitGroup
	for i, m := range f.members {
		wg.Add(1)
		go func(i int, memberID uuid.UUID) {
			defer wg.Done()
			_, completedNow, err := f.wf.SubmitFeedback(context.Background(), f.project.ID, memberID, 5, "Wrapping up together")
			results[i] = completedNow
			errs[i] = err
		}(i, m.ID)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	flips := 0
	for _, completedNow := range results {
		if completedNow {
			flips++
		}
	}
	assert.Equal(t, 1, flips)
	assert.Equal(t, int64(2), f.feedbackCount(t))
	assert.Equal(t, model.StatusCompleted, f.status(t))
}

func TestSubmitFeedback_DuplicateRejected(t *testing.T) {
	f := newFixture(t, 2, 1)
	f.completeAllTasks(t)

	_, _, err := f.wf.SubmitFeedback(context.Background(), f.project.ID, f.members[0].ID, 4, "Good work overall")
	require.NoError(t, err)

	_, _, err = f.wf.SubmitFeedback(context.Background(), f.project.ID, f.members[0].ID, 3, "Trying to submit again")
	assert.ErrorIs(t, err, workflow.ErrDuplicateSubmission)
	assert.Equal(t, int64(1), f.feedbackCount(t))
}

func TestSubmitFeedback_DuplicateRejectedAfterCompletion(t *testing.T) {
	f := newFixture(t, 2, 1)
	f.completeAllTasks(t)

	_, _, err := f.wf.SubmitFeedback(context.Background(), f.project.ID, f.members[0].ID, 4, "Good work overall")
	require.NoError(t, err)
	_, _, err = f.wf.SubmitFeedback(context.Background(), f.project.ID, f.members[1].ID, 5, "Excellent collaboration")
	require.NoError(t, err)
	require.Equal(t, model.StatusCompleted, f.status(t))

	_, _, err = f.wf.SubmitFeedback(context.Background(), f.project.ID, f.members[0].ID, 5, "One more for the road")
	assert.ErrorIs(t, err, workflow.ErrDuplicateSubmission)
	assert.Equal(t, int64(2), f.feedbackCount(t))
	assert.Equal(t, model.StatusCompleted, f.status(t))
}

func TestSubmitFeedback_ValidationRunsBeforeAnyWrite(t *testing.T) {
	f := newFixture(t, 1, 1)
	f.completeAllTasks(t)

	_, _, err := f.wf.SubmitFeedback(context.Background(), f.project.ID, f.members[0].ID, 6, "Rating is out of range")
	var vErr *workflow.ValidationError
	assert.ErrorAs(t, err, &vErr)
	assert.Equal(t, "rating", vErr.Field)

	_, _, err = f.wf.SubmitFeedback(context.Background(), f.project.ID, f.members[0].ID, 4, "too short")
	assert.ErrorAs(t, err, &vErr)
	assert.Equal(t, "comment", vErr.Field)

	assert.Equal(t, int64(0), f.feedbackCount(t))
}

func TestSubmitFeedback_NonMemberRejected(t *testing.T) {
	f := newFixture(t, 2, 1)
	f.completeAllTasks(t)

	outsider := model.User{ID: uuid.New(), Email: "outsider@example.com", HashedPassword: "hashed", Name: "Outsider"}
	require.NoError(t, f.db.Create(&outsider).Error)

	_, _, err := f.wf.SubmitFeedback(context.Background(), f.project.ID, outsider.ID, 4, "I was never invited")
	assert.ErrorIs(t, err, workflow.ErrNotMember)
}

func TestSubmitFeedback_MemberAddedAfterPartialFeedbackRaisesThreshold(t *testing.T) {
	f := newFixture(t, 2, 1)
	f.completeAllTasks(t)

	_, _, err := f.wf.SubmitFeedback(context.Background(), f.project.ID, f.members[0].ID, 4, "Good work overall")
	require.NoError(t, err)

	// A third member joins before the last feedback lands. The threshold
	// is a live recount, so the second submission no longer completes.
	late := model.User{ID: uuid.New(), Email: "late@example.com", HashedPassword: "hashed", Name: "Late Joiner"}
	require.NoError(t, f.db.Create(&late).Error)
	require.NoError(t, f.db.Exec("INSERT INTO project_members (project_id, user_id) VALUES (?, ?)", f.project.ID, late.ID).Error)

	_, completedNow, err := f.wf.SubmitFeedback(context.Background(), f.project.ID, f.members[1].ID, 5, "Excellent collaboration")
	require.NoError(t, err)
	assert.False(t, completedNow)
	assert.Equal(t, model.StatusInProgress, f.status(t))

	_, completedNow, err = f.wf.SubmitFeedback(context.Background(), f.project.ID, late.ID, 5, "Happy to have joined")
	require.NoError(t, err)
	assert.True(t, completedNow)
	assert.Equal(t, model.StatusCompleted, f.status(t))
}

func TestSubmitFeedback_ProjectNotFound(t *testing.T) {
	f := newFixture(t, 1, 1)

	_, _, err := f.wf.SubmitFeedback(context.Background(), uuid.New(), f.members[0].ID, 4, "Good work overall")
	assert.Error(t, err)
	assert.Equal(t, "project not found", err.Error())
}

func TestReconcile_HealsMissedFlip(t *testing.T) {
	f := newFixture(t, 2, 1)
	f.completeAllTasks(t)

	// Simulate a partial failure: both feedback rows landed but the
	// status write never did.
	for _, m := range f.members {
		require.NoError(t, f.db.Create(&model.Feedback{
			ID:        uuid.New(),
			ProjectID: f.project.ID,
			UserID:    m.ID,
			Rating:    5,
			Comment:   "Recorded before the crash",
		}).Error)
	}
	require.Equal(t, model.StatusInProgress, f.status(t))

	flipped, err := f.wf.Reconcile(context.Background(), f.project.ID)
	require.NoError(t, err)
	assert.True(t, flipped)
	assert.Equal(t, model.StatusCompleted, f.status(t))

	// A second pass is a no-op.
	flipped, err = f.wf.Reconcile(context.Background(), f.project.ID)
	require.NoError(t, err)
	assert.False(t, flipped)
}

func TestReconcile_NoFlipBelowThreshold(t *testing.T) {
	f := newFixture(t, 2, 1)
	f.completeAllTasks(t)

	require.NoError(t, f.db.Create(&model.Feedback{
		ID:        uuid.New(),
		ProjectID: f.project.ID,
		UserID:    f.members[0].ID,
		Rating:    4,
		Comment:   "Only one of two members",
	}).Error)

	flipped, err := f.wf.Reconcile(context.Background(), f.project.ID)
	require.NoError(t, err)
	assert.False(t, flipped)
	assert.Equal(t, model.StatusInProgress, f.status(t))
}

func TestReconcile_IgnoresProjectWithOpenTasks(t *testing.T) {
	f := newFixture(t, 1, 2)

	flipped, err := f.wf.Reconcile(context.Background(), f.project.ID)
	require.NoError(t, err)
	assert.False(t, flipped)
	assert.Equal(t, model.StatusInProgress, f.status(t))
}

func TestEnsureMutable_CompletedIsTerminal(t *testing.T) {
	f := newFixture(t, 1, 1)
	f.completeAllTasks(t)

	_, completedNow, err := f.wf.SubmitFeedback(context.Background(), f.project.ID, f.members[0].ID, 5, "Single member wraps up")
	require.NoError(t, err)
	require.True(t, completedNow)

	var project model.Project
	require.NoError(t, f.db.First(&project, "id = ?", f.project.ID).Error)
	assert.ErrorIs(t, workflow.EnsureMutable(&project), workflow.ErrProjectCompleted)
}

func TestValidateTaskDueDate(t *testing.T) {
	project := &model.Project{DueDate: time.Date(2024, 11, 15, 0, 0, 0, 0, time.UTC)}

	err := workflow.ValidateTaskDueDate(project, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC))
	var vErr *workflow.ValidationError
	assert.ErrorAs(t, err, &vErr)
	assert.Equal(t, "due_date", vErr.Field)

	assert.NoError(t, workflow.ValidateTaskDueDate(project, time.Date(2024, 11, 15, 0, 0, 0, 0, time.UTC)))
	assert.NoError(t, workflow.ValidateTaskDueDate(project, time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)))
}
