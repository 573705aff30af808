package jobboard

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/R3E-Network/jobboard/internal/ledger"
	"github.com/R3E-Network/jobboard/internal/metrics"
	"github.com/R3E-Network/jobboard/pkg/logger"
)

// DefaultConcurrency bounds per-id fetches issued by one scan.
const DefaultConcurrency = 16

// ObjectReader is the ledger read surface this package needs.
// *ledger.Client implements it.
type ObjectReader interface {
	GetObject(ctx context.Context, objectID string) (*ledger.ObjectResponse, error)
	GetDynamicFields(ctx context.Context, parentID string, cursor *string, limit int) (*ledger.DynamicFieldPage, error)
	GetOwnedObjects(ctx context.Context, owner, structType string, cursor *string, limit int) (*ledger.ObjectPage, error)
}

// ScanResult is the outcome of one registry scan.
type ScanResult[T any] struct {
	// Records holds the successfully decoded records in registry order.
	Records []*T
	// Count is the count stored in the registry object.
	Count uint64
	// Listed is the number of ids the registry lists.
	Listed int
	// Failed is the number of listed ids that could not be fetched or decoded.
	Failed int
}

// Complete reports whether every listed id decoded and the list matches the
// stored count.
func (r *ScanResult[T]) Complete() bool {
	return r.Failed == 0 && uint64(r.Listed) == r.Count
}

// RegistryScanner resolves every record a registry lists. Lookups are linear in
// the registry size; nothing is cached.
type RegistryScanner[T any] struct {
	reader      ObjectReader
	kind        RegistryKind
	record      string
	decode      func(*ledger.ObjectResponse) (*T, error)
	owner       func(*T) string
	concurrency int
	log         *logger.Logger
}

// NewRegistryScanner builds a scanner for registries of the given kind whose
// ids decode with decode. owner extracts the owning address for FindByOwner.
func NewRegistryScanner[T any](reader ObjectReader, kind RegistryKind, record string,
	decode func(*ledger.ObjectResponse) (*T, error), owner func(*T) string,
	concurrency int, log *logger.Logger) *RegistryScanner[T] {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if log == nil {
		log = logger.NewDefault("registry")
	}
	return &RegistryScanner[T]{
		reader:      reader,
		kind:        kind,
		record:      record,
		decode:      decode,
		owner:       owner,
		concurrency: concurrency,
		log:         log,
	}
}

// Registry reads and decodes the registry singleton.
func (s *RegistryScanner[T]) Registry(ctx context.Context, registryID string) (*Registry, error) {
	obj, err := s.reader.GetObject(ctx, registryID)
	if err != nil {
		return nil, fmt.Errorf("get registry %s: %w", registryID, err)
	}
	reg, err := DecodeRegistry(obj, s.kind)
	if err != nil {
		metrics.RecordDecodeFailure(s.kind.Struct)
		return nil, fmt.Errorf("decode registry %s: %w", registryID, err)
	}
	return reg, nil
}

// Scan reads the registry once, then fetches every listed id concurrently.
// Ids that fail are dropped without retry; the error is non-nil only when the
// registry itself cannot be read.
func (s *RegistryScanner[T]) Scan(ctx context.Context, registryID string) (*ScanResult[T], error) {
	reg, err := s.Registry(ctx, registryID)
	if err != nil {
		return nil, err
	}

	records, failed := fetchAll(ctx, reg.IDs, s.concurrency, func(ctx context.Context, id string) (*T, error) {
		obj, err := s.reader.GetObject(ctx, id)
		if err != nil {
			return nil, err
		}
		return s.decode(obj)
	}, s.onDrop)

	metrics.RecordScanDropped(s.record, failed)
	return &ScanResult[T]{
		Records: records,
		Count:   reg.Count,
		Listed:  len(reg.IDs),
		Failed:  failed,
	}, nil
}

// ListAll returns the decoded records in registry order.
func (s *RegistryScanner[T]) ListAll(ctx context.Context, registryID string) ([]*T, error) {
	res, err := s.Scan(ctx, registryID)
	if err != nil {
		return nil, err
	}
	return res.Records, nil
}

// FindByOwner returns the first record in registry order owned by owner, or
// ErrNotFound. The registry allows several records per owner; which one wins
// is only defined by registry order.
func (s *RegistryScanner[T]) FindByOwner(ctx context.Context, registryID, owner string) (*T, error) {
	want, err := ledger.NormalizeAddress(owner)
	if err != nil {
		return nil, fmt.Errorf("%w: owner: %v", ErrInvalidInput, err)
	}

	records, err := s.ListAll(ctx, registryID)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if ledger.SameAddress(s.owner(r), want) {
			return r, nil
		}
	}
	return nil, ErrNotFound
}

func (s *RegistryScanner[T]) onDrop(id string, err error) {
	s.log.WithField("record", s.record).WithField("object_id", id).WithError(err).
		Debug("dropping registry entry")
}

// fetchAll runs fetch for every id with at most limit in flight and returns
// the successes in input order plus the number of failures.
func fetchAll[K any, T any](ctx context.Context, keys []K, limit int,
	fetch func(context.Context, K) (*T, error), onErr func(K, error)) ([]*T, int) {
	results := make([]*T, len(keys))
	errs := make([]error, len(keys))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, key := range keys {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			results[i], errs[i] = fetch(ctx, key)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]*T, 0, len(keys))
	failed := 0
	for i, r := range results {
		if errs[i] != nil || r == nil {
			failed++
			if onErr != nil {
				onErr(keys[i], errs[i])
			}
			continue
		}
		out = append(out, r)
	}
	return out, failed
}
