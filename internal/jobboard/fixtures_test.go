package jobboard_test

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/jobboard/internal/jobboard"
	"github.com/R3E-Network/jobboard/pkg/logger"
	"github.com/R3E-Network/jobboard/pkg/testutil"
)

var (
	pkgID              = testutil.Addr("b0a4d")
	boardID            = testutil.Addr("b0")
	userRegistryID     = testutil.Addr("b1")
	employerRegistryID = testutil.Addr("b2")

	employerA  = testutil.Addr("e1")
	employerB  = testutil.Addr("e2")
	candidateA = testutil.Addr("c1")
	candidateB = testutil.Addr("c2")
)

func moveType(module, name string) string {
	return testutil.MoveType(pkgID, module, name)
}

func applicationFieldType() string {
	return "0x2::dynamic_field::Field<" + moveType("job_board", "ApplicationKey") + ", " +
		moveType("job_board", "Application") + ">"
}

func newService(t *testing.T, f *testutil.FakeLedger) *jobboard.Service {
	t.Helper()
	svc, err := jobboard.NewService(f, jobboard.Config{
		PackageID:          pkgID,
		BoardID:            boardID,
		UserRegistryID:     userRegistryID,
		EmployerRegistryID: employerRegistryID,
		Concurrency:        4,
		Logger:             logger.NewDiscard(),
	})
	require.NoError(t, err)
	return svc
}

func putRegistry(f *testutil.FakeLedger, id, module, name, countField, idsField string, ids ...string) {
	if ids == nil {
		ids = []string{}
	}
	f.PutObject(id, moveType(module, name), map[string]any{
		"id":       testutil.UID(id),
		countField: strconv.Itoa(len(ids)),
		idsField:   ids,
	})
}

func putBoard(f *testutil.FakeLedger, jobIDs ...string) {
	putRegistry(f, boardID, "job_board", "JobBoard", "job_count", "jobs", jobIDs...)
}

func putUserRegistry(f *testutil.FakeLedger, ids ...string) {
	putRegistry(f, userRegistryID, "user_profile", "UserRegistry", "profile_count", "profiles", ids...)
}

func putEmployerRegistry(f *testutil.FakeLedger, ids ...string) {
	putRegistry(f, employerRegistryID, "employer_profile", "EmployerRegistry", "employer_count", "employers", ids...)
}

func jobFields(id string) map[string]any {
	return map[string]any{
		"id":                  testutil.UID(id),
		"employer":            employerA,
		"employer_profile_id": testutil.Addr("e0f1"),
		"title":               "Go engineer",
		"description":         "Build ledger tooling",
		"salary":              testutil.None(),
		"application_count":   "0",
		"hired_candidate":     testutil.None(),
		"is_active":           true,
		"deadline":            "1900000000000",
		"created_at":          "1700000000000",
	}
}

func putJob(f *testutil.FakeLedger, id string, mutate func(map[string]any)) {
	fields := jobFields(id)
	if mutate != nil {
		mutate(fields)
	}
	f.PutObject(id, moveType("job_board", "Job"), fields)
}

func putUserProfile(f *testutil.FakeLedger, id, owner, name string) {
	f.PutObject(id, moveType("user_profile", "UserProfile"), map[string]any{
		"id":               testutil.UID(id),
		"owner":            owner,
		"name":             name,
		"bio":              "",
		"avatar_url":       "",
		"skills":           []string{"go", "move"},
		"experience_years": "4",
		"portfolio_url":    "",
		"created_at":       "1700000000000",
		"updated_at":       "1700000000000",
	})
}

func putEmployerProfile(f *testutil.FakeLedger, id, owner, company string) {
	f.PutObject(id, moveType("employer_profile", "EmployerProfile"), map[string]any{
		"id":           testutil.UID(id),
		"owner":        owner,
		"company_name": company,
		"description":  "",
		"logo_url":     "",
		"website":      "https://example.com",
		"industry":     "software",
		"created_at":   "1700000000000",
		"updated_at":   "1700000000000",
	})
}

// putApplication stores an application as a dynamic field of jobID.
func putApplication(f *testutil.FakeLedger, jobID, fieldID, candidate string, index int) {
	key := map[string]any{"candidate": candidate, "index": strconv.Itoa(index)}
	f.PutObject(fieldID, applicationFieldType(), map[string]any{
		"id": testutil.UID(fieldID),
		"name": map[string]any{
			"type":   moveType("job_board", "ApplicationKey"),
			"fields": key,
		},
		"value": map[string]any{
			"type": moveType("job_board", "Application"),
			"fields": map[string]any{
				"candidate":       candidate,
				"user_profile_id": testutil.Addr("a1"),
				"cover_message":   "hello",
				"cv_url":          "ipfs://cv",
				"applied_at":      "1700000001000",
			},
		},
	})
	f.AddDynamicField(jobID, fieldID, moveType("job_board", "ApplicationKey"), key, moveType("job_board", "Application"))
}

func putCap(f *testutil.FakeLedger, owner, capID, jobID string) {
	f.PutOwnedObject(owner, capID, moveType("job_board", "EmployerCap"), map[string]any{
		"id":     testutil.UID(capID),
		"job_id": jobID,
	})
}
