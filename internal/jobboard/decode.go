package jobboard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/R3E-Network/jobboard/internal/ledger"
)

var (
	// ErrNotFound means the id does not resolve to an object, or a lookup had no match.
	ErrNotFound = errors.New("not found")
	// ErrShapeMismatch means the object exists but is not the expected record.
	ErrShapeMismatch = errors.New("object shape mismatch")
	// ErrInvalidInput means caller-supplied arguments are malformed.
	ErrInvalidInput = errors.New("invalid input")
)

// RegistryKind names the layout of one registry singleton.
type RegistryKind struct {
	Module     string
	Struct     string
	CountField string
	IDsField   string
}

// The three registries of the job board.
var (
	BoardKind = RegistryKind{
		Module: ModuleJobBoard, Struct: StructJobBoard,
		CountField: "job_count", IDsField: "jobs",
	}
	UserRegistryKind = RegistryKind{
		Module: ModuleUserProfile, Struct: StructUserRegistry,
		CountField: "profile_count", IDsField: "profiles",
	}
	EmployerRegistryKind = RegistryKind{
		Module: ModuleEmployerProfile, Struct: StructEmployerRegistry,
		CountField: "employer_count", IDsField: "employers",
	}
)

// =============================================================================
// Envelope checks
// =============================================================================

// moveFields validates the envelope and returns the object id and its fields.
func moveFields(obj *ledger.ObjectResponse, module, name string) (string, gjson.Result, error) {
	if !obj.Exists() {
		if obj != nil && obj.Error != nil {
			return "", gjson.Result{}, fmt.Errorf("%w: %s (%s)", ErrNotFound, obj.Error.ObjectID, obj.Error.Code)
		}
		return "", gjson.Result{}, ErrNotFound
	}

	content := obj.Data.Content
	if content == nil {
		return "", gjson.Result{}, fmt.Errorf("%w: %s has no content", ErrShapeMismatch, obj.Data.ObjectID)
	}
	if content.DataType != ledger.DataTypeMoveObject {
		return "", gjson.Result{}, fmt.Errorf("%w: %s is a %s", ErrShapeMismatch, obj.Data.ObjectID, content.DataType)
	}
	if !typeMatches(content.Type, module, name) {
		return "", gjson.Result{}, fmt.Errorf("%w: %s has type %s, want %s::%s",
			ErrShapeMismatch, obj.Data.ObjectID, content.Type, module, name)
	}

	fields := gjson.ParseBytes(content.Fields)
	if !fields.IsObject() {
		return "", gjson.Result{}, fmt.Errorf("%w: %s has no fields", ErrShapeMismatch, obj.Data.ObjectID)
	}

	id, err := ledger.NormalizeAddress(obj.Data.ObjectID)
	if err != nil {
		return "", gjson.Result{}, fmt.Errorf("%w: object id: %v", ErrShapeMismatch, err)
	}
	return id, fields, nil
}

// typeMatches compares a fully qualified Move type against module::name,
// ignoring the package address and any type parameters.
func typeMatches(typ, module, name string) bool {
	base, _, _ := strings.Cut(typ, "<")
	return strings.HasSuffix(base, "::"+module+"::"+name)
}

func mismatch(record, field string, err error) error {
	return fmt.Errorf("%w: %s.%s: %v", ErrShapeMismatch, record, field, err)
}

// =============================================================================
// Record decoders
// =============================================================================

// DecodeRegistry decodes the Board or a profile registry.
func DecodeRegistry(obj *ledger.ObjectResponse, kind RegistryKind) (*Registry, error) {
	id, fields, err := moveFields(obj, kind.Module, kind.Struct)
	if err != nil {
		return nil, err
	}

	count, err := ParseSafeUint64(fields, kind.CountField)
	if err != nil {
		return nil, mismatch(kind.Struct, kind.CountField, err)
	}
	ids, err := ParseIDVector(fields, kind.IDsField)
	if err != nil {
		return nil, mismatch(kind.Struct, kind.IDsField, err)
	}

	return &Registry{ID: id, Count: count, IDs: ids}, nil
}

// DecodeJob decodes a job_board::Job.
func DecodeJob(obj *ledger.ObjectResponse) (*Job, error) {
	id, fields, err := moveFields(obj, ModuleJobBoard, StructJob)
	if err != nil {
		return nil, err
	}

	job := &Job{ID: id}
	if job.Employer, err = ParseAddress(fields, "employer"); err != nil {
		return nil, mismatch("job", "employer", err)
	}
	if job.EmployerProfileID, err = ParseID(fields, "employer_profile_id"); err != nil {
		return nil, mismatch("job", "employer_profile_id", err)
	}
	if job.Title, err = ParseString(fields, "title"); err != nil {
		return nil, mismatch("job", "title", err)
	}
	if job.Description, err = ParseOptionalString(fields, "description"); err != nil {
		return nil, mismatch("job", "description", err)
	}
	if job.Salary, err = ParseOptionalSafeUint64(fields, "salary"); err != nil {
		return nil, mismatch("job", "salary", err)
	}
	if job.ApplicationCount, err = ParseSafeUint64(fields, "application_count"); err != nil {
		return nil, mismatch("job", "application_count", err)
	}
	if job.HiredCandidate, err = ParseOptionalAddress(fields, "hired_candidate"); err != nil {
		return nil, mismatch("job", "hired_candidate", err)
	}
	if job.IsActive, err = ParseBoolean(fields, "is_active"); err != nil {
		return nil, mismatch("job", "is_active", err)
	}
	if job.Deadline, err = ParseSafeUint64(fields, "deadline"); err != nil {
		return nil, mismatch("job", "deadline", err)
	}
	// created_at was added after the first deployment.
	if fields.Get("created_at").Exists() {
		if job.CreatedAt, err = ParseSafeUint64(fields, "created_at"); err != nil {
			return nil, mismatch("job", "created_at", err)
		}
	}
	return job, nil
}

// DecodeUserProfile decodes a user_profile::UserProfile.
func DecodeUserProfile(obj *ledger.ObjectResponse) (*UserProfile, error) {
	id, fields, err := moveFields(obj, ModuleUserProfile, StructUserProfile)
	if err != nil {
		return nil, err
	}

	p := &UserProfile{ID: id}
	if p.Owner, err = ParseAddress(fields, "owner"); err != nil {
		return nil, mismatch("user_profile", "owner", err)
	}
	if p.Name, err = ParseString(fields, "name"); err != nil {
		return nil, mismatch("user_profile", "name", err)
	}
	if p.Bio, err = ParseOptionalString(fields, "bio"); err != nil {
		return nil, mismatch("user_profile", "bio", err)
	}
	if p.AvatarURL, err = ParseOptionalString(fields, "avatar_url"); err != nil {
		return nil, mismatch("user_profile", "avatar_url", err)
	}
	if p.Skills, err = ParseStringVector(fields, "skills"); err != nil {
		return nil, mismatch("user_profile", "skills", err)
	}
	if p.PortfolioURL, err = ParseOptionalString(fields, "portfolio_url"); err != nil {
		return nil, mismatch("user_profile", "portfolio_url", err)
	}
	if p.ExperienceYears, p.CreatedAt, p.UpdatedAt, err = parseProfileNumbers(fields, "experience_years"); err != nil {
		return nil, mismatch("user_profile", "numbers", err)
	}
	return p, nil
}

// DecodeEmployerProfile decodes an employer_profile::EmployerProfile.
func DecodeEmployerProfile(obj *ledger.ObjectResponse) (*EmployerProfile, error) {
	id, fields, err := moveFields(obj, ModuleEmployerProfile, StructEmployerProfile)
	if err != nil {
		return nil, err
	}

	p := &EmployerProfile{ID: id}
	if p.Owner, err = ParseAddress(fields, "owner"); err != nil {
		return nil, mismatch("employer_profile", "owner", err)
	}
	if p.CompanyName, err = ParseString(fields, "company_name"); err != nil {
		return nil, mismatch("employer_profile", "company_name", err)
	}
	if p.Description, err = ParseOptionalString(fields, "description"); err != nil {
		return nil, mismatch("employer_profile", "description", err)
	}
	if p.LogoURL, err = ParseOptionalString(fields, "logo_url"); err != nil {
		return nil, mismatch("employer_profile", "logo_url", err)
	}
	if p.Website, err = ParseOptionalString(fields, "website"); err != nil {
		return nil, mismatch("employer_profile", "website", err)
	}
	if p.Industry, err = ParseOptionalString(fields, "industry"); err != nil {
		return nil, mismatch("employer_profile", "industry", err)
	}
	if _, p.CreatedAt, p.UpdatedAt, err = parseProfileNumbers(fields, ""); err != nil {
		return nil, mismatch("employer_profile", "numbers", err)
	}
	return p, nil
}

// parseProfileNumbers reads the optional numeric fields shared by profiles.
// Absent values decode to zero.
func parseProfileNumbers(fields gjson.Result, extra string) (extraValue, createdAt, updatedAt uint64, err error) {
	read := func(name string) (uint64, error) {
		if name == "" || !fields.Get(name).Exists() {
			return 0, nil
		}
		return ParseSafeUint64(fields, name)
	}
	if extraValue, err = read(extra); err != nil {
		return 0, 0, 0, fmt.Errorf("%s: %w", extra, err)
	}
	if createdAt, err = read("created_at"); err != nil {
		return 0, 0, 0, fmt.Errorf("created_at: %w", err)
	}
	if updatedAt, err = read("updated_at"); err != nil {
		return 0, 0, 0, fmt.Errorf("updated_at: %w", err)
	}
	return extraValue, createdAt, updatedAt, nil
}

// DecodeEmployerCap decodes a job_board::EmployerCap.
func DecodeEmployerCap(obj *ledger.ObjectResponse) (*EmployerCap, error) {
	id, fields, err := moveFields(obj, ModuleJobBoard, StructEmployerCap)
	if err != nil {
		return nil, err
	}

	jobID, err := ParseID(fields, "job_id")
	if err != nil {
		return nil, mismatch("employer_cap", "job_id", err)
	}

	ec := &EmployerCap{ID: id, JobID: jobID}
	if owner := obj.Data.OwnerAddress(); owner != "" {
		ec.Owner, _ = ledger.NormalizeAddress(owner)
	}
	return ec, nil
}

// DecodeApplication decodes an application side-record. It accepts the
// dynamic field wrapper (Field<ApplicationKey, Application>), whose name
// carries the (candidate, index) key, as well as a bare Application.
func DecodeApplication(obj *ledger.ObjectResponse) (*Application, error) {
	if obj.Exists() && obj.Data.Content != nil && isDynamicFieldWrapper(obj.Data.Content.Type) {
		return decodeWrappedApplication(obj)
	}

	id, fields, err := moveFields(obj, ModuleJobBoard, StructApplication)
	if err != nil {
		return nil, err
	}
	app := &Application{ID: id}
	if err := fillApplication(app, fields); err != nil {
		return nil, err
	}
	return app, nil
}

func isDynamicFieldWrapper(typ string) bool {
	base, params, ok := strings.Cut(typ, "<")
	if !ok || !strings.HasSuffix(base, "::dynamic_field::Field") {
		return false
	}
	return strings.Contains(params, "::"+ModuleJobBoard+"::"+StructApplication)
}

func decodeWrappedApplication(obj *ledger.ObjectResponse) (*Application, error) {
	fields := gjson.ParseBytes(obj.Data.Content.Fields)
	if !fields.IsObject() {
		return nil, fmt.Errorf("%w: %s has no fields", ErrShapeMismatch, obj.Data.ObjectID)
	}
	id, err := ledger.NormalizeAddress(obj.Data.ObjectID)
	if err != nil {
		return nil, fmt.Errorf("%w: object id: %v", ErrShapeMismatch, err)
	}

	app := &Application{ID: id}

	key := structFields(fields.Get("name"))
	if key.IsObject() {
		if err := fillApplicationKey(app, key); err != nil {
			return nil, err
		}
	}

	value := fields.Get("value")
	if !value.IsObject() {
		return nil, mismatch("application", "value", fmt.Errorf("missing"))
	}
	if err := fillApplication(app, structFields(value)); err != nil {
		return nil, err
	}
	return app, nil
}

// fillApplicationKey reads an ApplicationKey { candidate, index }.
func fillApplicationKey(app *Application, key gjson.Result) error {
	var err error
	if app.Candidate, err = ParseAddress(key, "candidate"); err != nil {
		return mismatch("application_key", "candidate", err)
	}
	if app.Index, err = ParseUint64(key, "index"); err != nil {
		return mismatch("application_key", "index", err)
	}
	return nil
}

func fillApplication(app *Application, fields gjson.Result) error {
	candidate, err := ParseAddress(fields, "candidate")
	if err != nil {
		return mismatch("application", "candidate", err)
	}
	if app.Candidate != "" && app.Candidate != candidate {
		return mismatch("application", "candidate", fmt.Errorf("key candidate %s differs from record %s", app.Candidate, candidate))
	}
	app.Candidate = candidate

	if app.UserProfileID, err = ParseID(fields, "user_profile_id"); err != nil {
		return mismatch("application", "user_profile_id", err)
	}
	if app.CoverMessage, err = ParseOptionalString(fields, "cover_message"); err != nil {
		return mismatch("application", "cover_message", err)
	}
	if app.CVURL, err = ParseOptionalString(fields, "cv_url"); err != nil {
		return mismatch("application", "cv_url", err)
	}
	if app.AppliedAt, err = ParseSafeUint64(fields, "applied_at"); err != nil {
		return mismatch("application", "applied_at", err)
	}
	return nil
}
