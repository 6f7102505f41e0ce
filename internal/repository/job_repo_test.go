package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/bug_triage_server/internal/model"
	"github.com/qs3c/bug_triage_server/internal/testutil"
)

func TestJobRepository_CreateAndGet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)
	job := &model.Job{
		ID:          "3b7d8c2e-1111-4a4a-8b8b-000000000001",
		UserID:      "u-1",
		Username:    "alice",
		ProjectID:   "p-1",
		Description: "release candidate",
		FileCount:   4,
	}
	require.NoError(t, repo.Create(job))
	assert.False(t, job.CreatedAt.IsZero())

	found, err := repo.GetByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", found.Username)
	assert.Equal(t, 4, found.FileCount)
}

func TestJobRepository_GetByID_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	_, err := NewJobRepository(db).GetByID("missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestJobRepository_SaveReport_Replaces(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)
	job := testutil.TestJob(t, db)

	require.NoError(t, repo.SaveReport(&model.JobReport{JobID: job.ID, ReportURL: model.LocalReportPrefix + job.ID, FileCount: 2}))
	require.NoError(t, repo.SaveReport(&model.JobReport{JobID: job.ID, ReportURL: "https://cdn.example.com/reports/x.json", FileCount: 3}))

	var count int64
	require.NoError(t, db.Model(&model.JobReport{}).Where("job_id = ?", job.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	report, err := repo.GetReport(job.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/reports/x.json", report.ReportURL)
	assert.Equal(t, 3, report.FileCount)
	assert.False(t, report.IsLocal())
}

func TestJobRepository_ListLocalReports(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)
	local := testutil.TestJob(t, db)
	remote := testutil.TestJob(t, db)
	testutil.TestReport(t, db, local.ID, model.LocalReportPrefix+local.ID)
	testutil.TestReport(t, db, remote.ID, "https://bucket.oss.example.com/reports/r.json")

	reports, err := repo.ListLocalReports()
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, local.ID, reports[0].JobID)
	assert.True(t, reports[0].IsLocal())

	require.NoError(t, repo.UpdateReportURL(local.ID, "https://bucket.oss.example.com/reports/l.json"))
	reports, err = repo.ListLocalReports()
	require.NoError(t, err)
	assert.Empty(t, reports)
}
