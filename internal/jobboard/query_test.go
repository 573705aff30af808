package jobboard_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/jobboard/internal/jobboard"
	"github.com/R3E-Network/jobboard/pkg/logger"
	"github.com/R3E-Network/jobboard/pkg/testutil"
)

var (
	job1 = testutil.Addr("10b1")
	job2 = testutil.Addr("10b2")
	job3 = testutil.Addr("10b3")
)

func TestNewService_RejectsBadConfig(t *testing.T) {
	_, err := jobboard.NewService(testutil.NewFakeLedger(), jobboard.Config{BoardID: "0xzz"})
	assert.Error(t, err)

	_, err = jobboard.NewService(nil, jobboard.Config{})
	assert.Error(t, err)
}

func TestGetActiveJobs_ExcludesHiredJobs(t *testing.T) {
	f := testutil.NewFakeLedger()
	putBoard(f, job1, job2)
	putJob(f, job1, nil)
	putJob(f, job2, func(m map[string]any) { m["hired_candidate"] = testutil.Some(candidateA) })
	svc := newService(t, f)

	active, err := svc.GetActiveJobs(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, job1, active[0].ID)
	for _, j := range active {
		assert.Nil(t, j.HiredCandidate)
	}
}

func TestGetActiveJobs_ExcludesInactive(t *testing.T) {
	f := testutil.NewFakeLedger()
	putBoard(f, job1, job2)
	putJob(f, job1, func(m map[string]any) { m["is_active"] = false })
	putJob(f, job2, nil)

	active, err := newService(t, f).GetActiveJobs(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, job2, active[0].ID)
}

func TestGetOpenJobs_AppliesDeadline(t *testing.T) {
	f := testutil.NewFakeLedger()
	putBoard(f, job1, job2)
	putJob(f, job1, func(m map[string]any) { m["deadline"] = "1000" })
	putJob(f, job2, func(m map[string]any) { m["deadline"] = "3000" })
	svc := newService(t, f)
	now := time.UnixMilli(2000)

	open, err := svc.GetOpenJobs(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, job2, open[0].ID)

	active, err := svc.GetActiveJobs(context.Background())
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestGetJobsByEmployer(t *testing.T) {
	f := testutil.NewFakeLedger()
	putBoard(f, job1, job2, job3)
	putJob(f, job1, nil)
	putJob(f, job2, func(m map[string]any) { m["employer"] = employerB })
	putJob(f, job3, nil)
	svc := newService(t, f)

	jobs, err := svc.GetJobsByEmployer(context.Background(), employerB)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, job2, jobs[0].ID)

	_, err = svc.GetJobsByEmployer(context.Background(), "bogus")
	assert.ErrorIs(t, err, jobboard.ErrInvalidInput)
}

func TestGetAllJobs_DegradesToEmpty(t *testing.T) {
	f := testutil.NewFakeLedger()
	f.FailObject(boardID, errors.New("connection refused"))

	jobs, err := newService(t, f).GetAllJobs(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, jobs)
	assert.Empty(t, jobs)
}

func TestGetJob(t *testing.T) {
	f := testutil.NewFakeLedger()
	putJob(f, job1, func(m map[string]any) { m["salary"] = testutil.Some("1000") })
	svc := newService(t, f)

	job, err := svc.GetJob(context.Background(), job1)
	require.NoError(t, err)
	require.NotNil(t, job)
	require.NotNil(t, job.Salary)
	assert.Equal(t, uint64(1000), *job.Salary)

	missing, err := svc.GetJob(context.Background(), job2)
	assert.NoError(t, err)
	assert.Nil(t, missing)

	f.FailObject(job1, errors.New("timeout"))
	failed, err := svc.GetJob(context.Background(), job1)
	assert.NoError(t, err)
	assert.Nil(t, failed)

	_, err = svc.GetJob(context.Background(), "0xnothex")
	assert.ErrorIs(t, err, jobboard.ErrInvalidInput)
}

func TestGetJob_WrongKindIsAbsent(t *testing.T) {
	f := testutil.NewFakeLedger()
	putUserProfile(f, job1, candidateA, "Ada")

	job, err := newService(t, f).GetJob(context.Background(), job1)
	assert.NoError(t, err)
	assert.Nil(t, job)
}

func TestProfilesByAddress(t *testing.T) {
	f := testutil.NewFakeLedger()
	u1, e1 := testutil.Addr("d001"), testutil.Addr("e0f1")
	putUserRegistry(f, u1)
	putUserProfile(f, u1, candidateA, "Ada")
	putEmployerRegistry(f, e1)
	putEmployerProfile(f, e1, employerA, "Acme")
	svc := newService(t, f)

	user, err := svc.GetUserProfileByAddress(context.Background(), candidateA)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, u1, user.ID)

	none, err := svc.GetUserProfileByAddress(context.Background(), candidateB)
	require.NoError(t, err)
	assert.Nil(t, none)

	employer, err := svc.GetEmployerProfileByAddress(context.Background(), employerA)
	require.NoError(t, err)
	require.NotNil(t, employer)
	assert.Equal(t, "Acme", employer.CompanyName)

	_, err = svc.GetEmployerProfileByAddress(context.Background(), "")
	assert.ErrorIs(t, err, jobboard.ErrInvalidInput)

	all, err := svc.GetAllEmployerProfiles(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGetAllUserProfiles_ThreeIDsOneMalformed(t *testing.T) {
	f := testutil.NewFakeLedger()
	p1, p2, p3 := testutil.Addr("d001"), testutil.Addr("d002"), testutil.Addr("d003")
	putUserRegistry(f, p1, p2, p3)
	putUserProfile(f, p1, candidateA, "Ada")
	putUserProfile(f, p2, candidateB, "Grace")
	f.PutObject(p3, moveType("user_profile", "UserProfile"), map[string]any{"name": []int{1}})

	profiles, err := newService(t, f).GetAllUserProfiles(context.Background())
	require.NoError(t, err)
	assert.Len(t, profiles, 2)
}

func TestGetJobApplications(t *testing.T) {
	f := testutil.NewFakeLedger()
	putJob(f, job1, nil)
	svc := newService(t, f)

	apps, err := svc.GetJobApplications(context.Background(), job1)
	require.NoError(t, err)
	require.NotNil(t, apps)
	assert.Empty(t, apps)

	putApplication(f, job1, testutil.Addr("f1"), candidateA, 0)
	apps, err = svc.GetJobApplications(context.Background(), job1)
	require.NoError(t, err)
	assert.Len(t, apps, 1)

	f.FailDynamicFields(job1, errors.New("node down"))
	apps, err = svc.GetJobApplications(context.Background(), job1)
	require.NoError(t, err)
	assert.NotNil(t, apps)
	assert.Empty(t, apps)
}

func TestGetUserApplications(t *testing.T) {
	f := testutil.NewFakeLedger()
	putBoard(f, job1, job2, job3)
	putJob(f, job1, func(m map[string]any) { m["application_count"] = "2" })
	putJob(f, job2, func(m map[string]any) { m["application_count"] = "1" })
	putJob(f, job3, nil)
	putApplication(f, job1, testutil.Addr("f1"), candidateA, 0)
	putApplication(f, job1, testutil.Addr("f2"), candidateB, 0)
	putApplication(f, job2, testutil.Addr("f3"), candidateA, 0)

	apps, err := newService(t, f).GetUserApplications(context.Background(), "0xc1")
	require.NoError(t, err)
	require.Len(t, apps, 2)
	assert.Equal(t, job1, apps[0].JobID)
	assert.Equal(t, job2, apps[1].JobID)
	for _, a := range apps {
		assert.Equal(t, candidateA, a.Candidate)
	}
}

func TestResolveApplicationIndex(t *testing.T) {
	f := testutil.NewFakeLedger()
	putApplication(f, job1, testutil.Addr("f1"), candidateA, 0)
	putApplication(f, job1, testutil.Addr("f2"), candidateA, 1)
	svc := newService(t, f)

	idx, err := svc.ResolveApplicationIndex(context.Background(), job1, candidateA, testutil.Addr("f2"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), idx)

	_, err = svc.ResolveApplicationIndex(context.Background(), job1, candidateB, testutil.Addr("f2"))
	assert.ErrorIs(t, err, jobboard.ErrInvalidInput)

	_, err = svc.ResolveApplicationIndex(context.Background(), job1, candidateA, testutil.Addr("f9"))
	assert.ErrorIs(t, err, jobboard.ErrNotFound)
}

func TestEmployerCaps(t *testing.T) {
	f := testutil.NewFakeLedger()
	f.PageSize = 1
	putCap(f, employerA, testutil.Addr("ca1"), job1)
	putCap(f, employerA, testutil.Addr("ca2"), job2)
	putCap(f, employerB, testutil.Addr("ca3"), job3)
	svc := newService(t, f)

	caps, err := svc.GetEmployerCaps(context.Background(), employerA)
	require.NoError(t, err)
	assert.Len(t, caps, 2)

	ec, err := svc.GetEmployerCapForJob(context.Background(), employerA, job2)
	require.NoError(t, err)
	require.NotNil(t, ec)
	assert.Equal(t, testutil.Addr("ca2"), ec.ID)

	none, err := svc.GetEmployerCapForJob(context.Background(), employerA, job3)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestGetStatistics(t *testing.T) {
	f := testutil.NewFakeLedger()
	putBoard(f, job1, job2, job3)
	putJob(f, job1, func(m map[string]any) { m["application_count"] = "2" })
	putJob(f, job2, func(m map[string]any) {
		m["application_count"] = "3"
		m["hired_candidate"] = testutil.Some(candidateA)
	})
	putJob(f, job3, func(m map[string]any) { m["is_active"] = false })
	putUserRegistry(f, testutil.Addr("d001"))
	putUserProfile(f, testutil.Addr("d001"), candidateA, "Ada")
	putEmployerRegistry(f, testutil.Addr("e0f1"))
	putEmployerProfile(f, testutil.Addr("e0f1"), employerA, "Acme")

	stats, err := newService(t, f).GetStatistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &jobboard.Statistics{
		TotalJobs:         3,
		ActiveJobs:        1,
		FilledJobs:        1,
		TotalApplications: 5,
		TotalUsers:        1,
		TotalEmployers:    1,
	}, stats)
}

func TestGetStatistics_FallsBackToStoredCount(t *testing.T) {
	f := testutil.NewFakeLedger()
	putBoard(f, job1, job2)
	putJob(f, job1, nil)
	f.FailObject(job2, errors.New("timeout"))
	putUserRegistry(f, testutil.Addr("d001"), testutil.Addr("d002"))
	putUserProfile(f, testutil.Addr("d001"), candidateA, "Ada")
	// The employer registry is missing altogether.

	stats, err := newService(t, f).GetStatistics(context.Background())
	require.NoError(t, err)
	assert.True(t, stats.Partial)
	assert.Equal(t, uint64(2), stats.TotalJobs)
	assert.Equal(t, uint64(1), stats.ActiveJobs)
	assert.Equal(t, uint64(2), stats.TotalUsers)
	assert.Zero(t, stats.TotalEmployers)
}

func TestService_ConcurrentUse(t *testing.T) {
	f := testutil.NewFakeLedger()
	putBoard(f, job1, job2)
	putJob(f, job1, nil)
	putJob(f, job2, nil)
	svc := newService(t, f)

	done := make(chan int, 8)
	for range 8 {
		go func() {
			jobs, _ := svc.GetAllJobs(context.Background())
			done <- len(jobs)
		}()
	}
	for range 8 {
		assert.Equal(t, 2, <-done)
	}
}

func TestService_DefaultsLogger(t *testing.T) {
	svc, err := jobboard.NewService(testutil.NewFakeLedger(), jobboard.Config{
		PackageID: pkgID, BoardID: boardID, UserRegistryID: userRegistryID, EmployerRegistryID: employerRegistryID,
		Logger: logger.NewDiscard(),
	})
	require.NoError(t, err)
	assert.Equal(t, jobboard.DefaultConcurrency, svc.Config().Concurrency)
}
