package jobboard

import (
	"fmt"
	"time"

	"github.com/R3E-Network/jobboard/internal/ledger"
)

// Entry points of the job board package.
const (
	FnCreateProfile = "create_profile"
	FnUpdateProfile = "update_profile"
	FnPostJob       = "post_job"
	FnApplyToJob    = "apply_to_job"
	FnHireCandidate = "hire_candidate"
	FnCloseJob      = "close_job"
)

// ArgumentKind tells object references from pure values.
type ArgumentKind string

const (
	ArgObject ArgumentKind = "object"
	ArgPure   ArgumentKind = "pure"
)

// Argument is one positional argument of a call. Object arguments carry only
// the id; pure arguments carry the Move type, the value and its BCS bytes.
type Argument struct {
	Kind     ArgumentKind `json:"kind"`
	ObjectID string       `json:"objectId,omitempty"`
	Type     string       `json:"type,omitempty"`
	Value    any          `json:"value,omitempty"`
	BCS      []byte       `json:"bcs,omitempty"`
}

// CallDescription is a fully specified, unsigned entry-point call.
type CallDescription struct {
	Target        string     `json:"target"`
	TypeArguments []string   `json:"typeArguments"`
	Arguments     []Argument `json:"arguments"`
}

// ObjectIDs returns the ids of the objects passed by reference, in argument order.
func (c *CallDescription) ObjectIDs() []string {
	ids := make([]string, 0, len(c.Arguments))
	for _, a := range c.Arguments {
		if a.Kind == ArgObject {
			ids = append(ids, a.ObjectID)
		}
	}
	return ids
}

// =============================================================================
// Builder
// =============================================================================

// BuilderConfig identifies the contract the builder targets.
type BuilderConfig struct {
	PackageID          string
	BoardID            string
	UserRegistryID     string
	EmployerRegistryID string
	// ClockID defaults to the system clock object.
	ClockID string
	// Now is used for deadline checks. Defaults to time.Now.
	Now func() time.Time
}

// Builder constructs call descriptions. It performs no I/O and never signs;
// every method validates its input before building anything.
type Builder struct {
	cfg      BuilderConfig
	validate *Validator
}

// NewBuilder returns a Builder for the configured deployment.
func NewBuilder(cfg BuilderConfig) (*Builder, error) {
	if cfg.ClockID == "" {
		cfg.ClockID = ledger.ClockObjectID
	}
	for _, f := range []struct {
		name string
		v    *string
	}{
		{"package id", &cfg.PackageID},
		{"board id", &cfg.BoardID},
		{"user registry id", &cfg.UserRegistryID},
		{"employer registry id", &cfg.EmployerRegistryID},
		{"clock id", &cfg.ClockID},
	} {
		id, err := ledger.NormalizeAddress(*f.v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.v = id
	}
	return &Builder{cfg: cfg, validate: NewValidator(cfg.Now)}, nil
}

// Validator returns the validator the builder checks inputs with.
func (b *Builder) Validator() *Validator {
	return b.validate
}

func (b *Builder) target(module, function string) string {
	return b.cfg.PackageID + "::" + module + "::" + function
}

// call assembles a description, returning the first conversion error args hit.
func (b *Builder) call(module, function string, args *argList) (*CallDescription, error) {
	if args.err != nil {
		return nil, args.err
	}
	return &CallDescription{
		Target:        b.target(module, function),
		TypeArguments: []string{},
		Arguments:     args.items,
	}, nil
}

// argList accumulates arguments and stops at the first conversion error.
type argList struct {
	items []Argument
	err   error
}

func (l *argList) object(id string) *argList {
	if l.err == nil {
		a, err := ObjectArg(id)
		l.add(a, err)
	}
	return l
}

func (l *argList) address(addr string) *argList {
	if l.err == nil {
		a, err := PureAddress(addr)
		l.add(a, err)
	}
	return l
}

func (l *argList) pure(a Argument) *argList {
	if l.err == nil {
		l.items = append(l.items, a)
	}
	return l
}

func (l *argList) add(a Argument, err error) {
	if err != nil {
		l.err = err
		return
	}
	l.items = append(l.items, a)
}

// CreateUserProfile builds user_profile::create_profile.
func (b *Builder) CreateUserProfile(in UserProfileInput) (*CallDescription, error) {
	if err := b.validate.UserProfile(in); err != nil {
		return nil, err
	}
	args := (&argList{}).object(b.cfg.UserRegistryID)
	return b.call(ModuleUserProfile, FnCreateProfile, userProfileArgs(args, in).object(b.cfg.ClockID))
}

// UpdateUserProfile builds user_profile::update_profile for an existing profile.
func (b *Builder) UpdateUserProfile(profileID string, in UserProfileInput) (*CallDescription, error) {
	if err := b.validate.ProfileID(profileID); err != nil {
		return nil, err
	}
	if err := b.validate.UserProfile(in); err != nil {
		return nil, err
	}
	args := (&argList{}).object(profileID)
	return b.call(ModuleUserProfile, FnUpdateProfile, userProfileArgs(args, in).object(b.cfg.ClockID))
}

func userProfileArgs(args *argList, in UserProfileInput) *argList {
	return args.
		pure(PureString(in.Name)).
		pure(PureString(in.Bio)).
		pure(PureString(in.AvatarURL)).
		pure(PureStrings(in.Skills)).
		pure(PureU64(uint64(in.ExperienceYears))).
		pure(PureString(in.PortfolioURL))
}

// CreateEmployerProfile builds employer_profile::create_profile.
func (b *Builder) CreateEmployerProfile(in EmployerProfileInput) (*CallDescription, error) {
	if err := b.validate.EmployerProfile(in); err != nil {
		return nil, err
	}
	args := (&argList{}).object(b.cfg.EmployerRegistryID)
	return b.call(ModuleEmployerProfile, FnCreateProfile, employerProfileArgs(args, in).object(b.cfg.ClockID))
}

// UpdateEmployerProfile builds employer_profile::update_profile for an existing profile.
func (b *Builder) UpdateEmployerProfile(profileID string, in EmployerProfileInput) (*CallDescription, error) {
	if err := b.validate.ProfileID(profileID); err != nil {
		return nil, err
	}
	if err := b.validate.EmployerProfile(in); err != nil {
		return nil, err
	}
	args := (&argList{}).object(profileID)
	return b.call(ModuleEmployerProfile, FnUpdateProfile, employerProfileArgs(args, in).object(b.cfg.ClockID))
}

func employerProfileArgs(args *argList, in EmployerProfileInput) *argList {
	return args.
		pure(PureString(in.CompanyName)).
		pure(PureString(in.Description)).
		pure(PureString(in.LogoURL)).
		pure(PureString(in.Website)).
		pure(PureString(in.Industry))
}

// PostJob builds job_board::post_job. The salary travels as a vector<u64>
// holding zero or one element.
func (b *Builder) PostJob(in PostJobInput) (*CallDescription, error) {
	if err := b.validate.PostJob(in); err != nil {
		return nil, err
	}
	var salary *uint64
	if in.Salary != nil {
		s := uint64(*in.Salary)
		salary = &s
	}
	args := (&argList{}).
		object(b.cfg.BoardID).
		address(in.EmployerProfileID).
		pure(PureString(in.Title)).
		pure(PureString(in.Description)).
		pure(PureOptionalU64(salary)).
		pure(PureU64(uint64(in.Deadline))).
		object(b.cfg.ClockID)
	return b.call(ModuleJobBoard, FnPostJob, args)
}

// ApplyToJob builds job_board::apply_to_job.
func (b *Builder) ApplyToJob(in ApplyInput) (*CallDescription, error) {
	if err := b.validate.Apply(in); err != nil {
		return nil, err
	}
	args := (&argList{}).
		object(in.JobID).
		address(in.UserProfileID).
		pure(PureString(in.CoverMessage)).
		pure(PureString(in.CVURL)).
		object(b.cfg.ClockID)
	return b.call(ModuleJobBoard, FnApplyToJob, args)
}

// HireCandidate builds job_board::hire_candidate. The application is
// addressed by the candidate's per-job index, which the caller resolves just
// before building.
func (b *Builder) HireCandidate(in HireInput) (*CallDescription, error) {
	if err := b.validate.Hire(in); err != nil {
		return nil, err
	}
	args := (&argList{}).
		object(in.JobID).
		object(in.CapID).
		address(in.Candidate).
		pure(PureU64(uint64(in.ApplicationIndex))).
		object(b.cfg.ClockID)
	return b.call(ModuleJobBoard, FnHireCandidate, args)
}

// CloseJob builds job_board::close_job.
func (b *Builder) CloseJob(in CloseJobInput) (*CallDescription, error) {
	if err := b.validate.CloseJob(in); err != nil {
		return nil, err
	}
	args := (&argList{}).
		object(in.JobID).
		object(in.CapID)
	return b.call(ModuleJobBoard, FnCloseJob, args)
}
