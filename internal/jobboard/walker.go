package jobboard

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/tidwall/gjson"

	"github.com/R3E-Network/jobboard/internal/ledger"
	"github.com/R3E-Network/jobboard/internal/metrics"
	"github.com/R3E-Network/jobboard/pkg/logger"
)

// maxWalkPages stops a walk against a node that never reports the last page.
const maxWalkPages = 10_000

// ChildDecoder decodes one dynamic field of parentID.
type ChildDecoder[T any] func(parentID string, info ledger.DynamicFieldInfo, obj *ledger.ObjectResponse) (*T, error)

// SideRecordWalker enumerates the side-records attached to a parent object.
type SideRecordWalker[T any] struct {
	reader      ObjectReader
	record      string
	accept      func(ledger.DynamicFieldInfo) bool
	decode      ChildDecoder[T]
	compare     func(a, b *T) int
	concurrency int
	log         *logger.Logger
}

// NewSideRecordWalker builds a walker. accept filters dynamic fields before
// they are fetched; compare, when set, orders the result.
func NewSideRecordWalker[T any](reader ObjectReader, record string,
	accept func(ledger.DynamicFieldInfo) bool, decode ChildDecoder[T],
	compare func(a, b *T) int, concurrency int, log *logger.Logger) *SideRecordWalker[T] {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if log == nil {
		log = logger.NewDefault("walker")
	}
	return &SideRecordWalker[T]{
		reader:      reader,
		record:      record,
		accept:      accept,
		decode:      decode,
		compare:     compare,
		concurrency: concurrency,
		log:         log,
	}
}

// Fields lists every accepted dynamic field of parentID, following cursors
// until the last page.
func (w *SideRecordWalker[T]) Fields(ctx context.Context, parentID string) ([]ledger.DynamicFieldInfo, error) {
	var (
		out    []ledger.DynamicFieldInfo
		cursor *string
	)
	for page := 0; ; page++ {
		if page >= maxWalkPages {
			return nil, fmt.Errorf("dynamic fields of %s: more than %d pages", parentID, maxWalkPages)
		}
		res, err := w.reader.GetDynamicFields(ctx, parentID, cursor, ledger.MaxPageSize)
		if err != nil {
			return nil, fmt.Errorf("dynamic fields of %s: %w", parentID, err)
		}
		for _, info := range res.Data {
			if w.accept == nil || w.accept(info) {
				out = append(out, info)
			}
		}
		if !res.HasNextPage || res.NextCursor == nil {
			break
		}
		if cursor != nil && *cursor == *res.NextCursor {
			return nil, fmt.Errorf("dynamic fields of %s: cursor %s did not advance", parentID, *cursor)
		}
		next := *res.NextCursor
		cursor = &next
	}
	return out, nil
}

// ListChildren fetches and decodes every accepted child of parentID. A parent
// without children yields an empty, non-nil slice. Children that fail to
// fetch or decode are dropped; the error is non-nil only when the enumeration
// itself fails.
func (w *SideRecordWalker[T]) ListChildren(ctx context.Context, parentID string) ([]*T, error) {
	fields, err := w.Fields(ctx, parentID)
	if err != nil {
		return nil, err
	}

	records, failed := fetchAll(ctx, fields, w.concurrency, func(ctx context.Context, info ledger.DynamicFieldInfo) (*T, error) {
		obj, err := w.reader.GetObject(ctx, info.ObjectID)
		if err != nil {
			return nil, err
		}
		return w.decode(parentID, info, obj)
	}, func(info ledger.DynamicFieldInfo, err error) {
		w.log.WithField("record", w.record).WithField("parent_id", parentID).
			WithField("object_id", info.ObjectID).WithError(err).Debug("dropping side-record")
	})
	metrics.RecordScanDropped(w.record, failed)

	if w.compare != nil {
		slices.SortStableFunc(records, w.compare)
	}
	return records, nil
}

// FindChild returns the first child, in ListChildren order, matching match,
// or ErrNotFound.
func (w *SideRecordWalker[T]) FindChild(ctx context.Context, parentID string, match func(*T) bool) (*T, error) {
	children, err := w.ListChildren(ctx, parentID)
	if err != nil {
		return nil, err
	}
	for _, c := range children {
		if match(c) {
			return c, nil
		}
	}
	return nil, ErrNotFound
}

// =============================================================================
// Applications
// =============================================================================

// NewApplicationWalker returns the walker over a job's applications.
func NewApplicationWalker(reader ObjectReader, concurrency int, log *logger.Logger) *SideRecordWalker[Application] {
	return NewSideRecordWalker(reader, "application", isApplicationField, decodeApplicationChild,
		compareApplications, concurrency, log)
}

func isApplicationField(info ledger.DynamicFieldInfo) bool {
	return typeMatches(info.ObjectType, ModuleJobBoard, StructApplication)
}

// decodeApplicationChild decodes the field object and takes the
// (candidate, index) key from the enumeration, which a bare Application does
// not carry. A child with no key from either source is rejected: its index
// would be unknown.
func decodeApplicationChild(parentID string, info ledger.DynamicFieldInfo, obj *ledger.ObjectResponse) (*Application, error) {
	app, err := DecodeApplication(obj)
	if err != nil {
		metrics.RecordDecodeFailure("application")
		return nil, err
	}
	key := structFields(gjson.ParseBytes(info.Name.Value))
	if !key.IsObject() && !wrapperHasKey(obj) {
		metrics.RecordDecodeFailure("application")
		return nil, mismatch("application_key", "index", fmt.Errorf("no key for %s", app.ID))
	}
	if key.IsObject() {
		candidate := app.Candidate
		if err := fillApplicationKey(app, key); err != nil {
			return nil, err
		}
		if candidate != app.Candidate {
			return nil, mismatch("application", "candidate",
				fmt.Errorf("field key candidate %s differs from record %s", app.Candidate, candidate))
		}
	}
	app.JobID = parentID
	return app, nil
}

// wrapperHasKey reports whether obj is a Field<ApplicationKey, Application>
// whose name holds the key.
func wrapperHasKey(obj *ledger.ObjectResponse) bool {
	if !obj.Exists() || obj.Data.Content == nil || !isDynamicFieldWrapper(obj.Data.Content.Type) {
		return false
	}
	return structFields(gjson.GetBytes(obj.Data.Content.Fields, "name")).IsObject()
}

func compareApplications(a, b *Application) int {
	if c := cmp.Compare(a.Candidate, b.Candidate); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Index, b.Index); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
