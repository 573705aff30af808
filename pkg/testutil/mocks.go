// Package testutil provides an in-memory ledger and fixture helpers for tests.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/R3E-Network/jobboard/internal/ledger"
)

// FakeLedger is an in-memory object store implementing the ledger read
// primitives. It can also serve them as JSON-RPC through Handler.
type FakeLedger struct {
	mu        sync.RWMutex
	objects   map[string]ledger.ObjectResponse
	fields    map[string][]ledger.DynamicFieldInfo
	owned     map[string][]string
	failures  map[string]error
	fieldErrs map[string]error
	calls     map[string]int

	// PageSize caps every page; zero means ledger.MaxPageSize.
	PageSize int
}

// NewFakeLedger returns an empty ledger.
func NewFakeLedger() *FakeLedger {
	return &FakeLedger{
		objects:   make(map[string]ledger.ObjectResponse),
		fields:    make(map[string][]ledger.DynamicFieldInfo),
		owned:     make(map[string][]string),
		failures:  make(map[string]error),
		fieldErrs: make(map[string]error),
		calls:     make(map[string]int),
	}
}

func norm(id string) string {
	n, err := ledger.NormalizeAddress(id)
	if err != nil {
		return id
	}
	return n
}

// PutObject stores a Move object of type typ with the given fields, which are
// marshaled to JSON as the node would render them.
func (f *FakeLedger) PutObject(id, typ string, fields any) {
	raw, err := json.Marshal(fields)
	if err != nil {
		panic(fmt.Sprintf("testutil: marshal fields of %s: %v", id, err))
	}
	f.PutRaw(id, ledger.ObjectResponse{Data: &ledger.ObjectData{
		ObjectID: norm(id),
		Version:  "1",
		Digest:   "digest-" + id,
		Type:     typ,
		Content: &ledger.ObjectContent{
			DataType: ledger.DataTypeMoveObject,
			Type:     typ,
			Fields:   raw,
		},
	}})
}

// PutOwnedObject stores an object owned by owner and lists it as owned.
func (f *FakeLedger) PutOwnedObject(owner, id, typ string, fields any) {
	f.PutObject(id, typ, fields)
	f.mu.Lock()
	defer f.mu.Unlock()
	obj := f.objects[norm(id)]
	obj.Data.Owner = json.RawMessage(fmt.Sprintf(`{"AddressOwner":%q}`, norm(owner)))
	f.objects[norm(id)] = obj
	f.owned[norm(owner)] = append(f.owned[norm(owner)], norm(id))
}

// PutRaw stores an arbitrary envelope, including malformed ones.
func (f *FakeLedger) PutRaw(id string, resp ledger.ObjectResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[norm(id)] = resp
}

// AddDynamicField attaches child to parent under the key name of type nameType.
// valueType is reported as the field's object type.
func (f *FakeLedger) AddDynamicField(parent, child, nameType string, name any, valueType string) {
	raw, err := json.Marshal(name)
	if err != nil {
		panic(fmt.Sprintf("testutil: marshal field name: %v", err))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fields[norm(parent)] = append(f.fields[norm(parent)], ledger.DynamicFieldInfo{
		Name:       ledger.DynamicFieldName{Type: nameType, Value: raw},
		Type:       "DynamicField",
		ObjectType: valueType,
		ObjectID:   norm(child),
		Version:    "1",
		Digest:     "digest-" + child,
	})
}

// FailObject makes GetObject(id) return err.
func (f *FakeLedger) FailObject(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[norm(id)] = err
}

// FailDynamicFields makes GetDynamicFields(parent) return err.
func (f *FakeLedger) FailDynamicFields(parent string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fieldErrs[norm(parent)] = err
}

// Calls returns how often method was invoked.
func (f *FakeLedger) Calls(method string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.calls[method]
}

func (f *FakeLedger) count(method string) {
	f.calls[method]++
}

func (f *FakeLedger) pageSize(limit int) int {
	size := f.PageSize
	if size <= 0 {
		size = ledger.MaxPageSize
	}
	if limit > 0 && limit < size {
		size = limit
	}
	return size
}

// page slices n items starting at cursor.
func page(cursor *string, n, size int) (start, end int, next *string, err error) {
	if cursor != nil {
		start, err = strconv.Atoi(*cursor)
		if err != nil || start < 0 || start > n {
			return 0, 0, nil, fmt.Errorf("invalid cursor %q", *cursor)
		}
	}
	end = min(start+size, n)
	if end < n {
		c := strconv.Itoa(end)
		next = &c
	}
	return start, end, next, nil
}

// GetObject implements the object read primitive.
func (f *FakeLedger) GetObject(_ context.Context, objectID string) (*ledger.ObjectResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("GetObject")

	id := norm(objectID)
	if err := f.failures[id]; err != nil {
		return nil, err
	}
	obj, ok := f.objects[id]
	if !ok {
		return &ledger.ObjectResponse{Error: &ledger.ObjectError{Code: ledger.ObjectErrNotExists, ObjectID: id}}, nil
	}
	return &obj, nil
}

// GetDynamicFields implements the dynamic field enumeration primitive.
func (f *FakeLedger) GetDynamicFields(_ context.Context, parentID string, cursor *string, limit int) (*ledger.DynamicFieldPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("GetDynamicFields")

	id := norm(parentID)
	if err := f.fieldErrs[id]; err != nil {
		return nil, err
	}
	all := f.fields[id]
	start, end, next, err := page(cursor, len(all), f.pageSize(limit))
	if err != nil {
		return nil, err
	}
	data := append([]ledger.DynamicFieldInfo{}, all[start:end]...)
	return &ledger.DynamicFieldPage{Data: data, NextCursor: next, HasNextPage: next != nil}, nil
}

// GetOwnedObjects implements the owned-object primitive, filtering on the
// exact struct type.
func (f *FakeLedger) GetOwnedObjects(_ context.Context, owner, structType string, cursor *string, limit int) (*ledger.ObjectPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("GetOwnedObjects")

	var matching []ledger.ObjectResponse
	for _, id := range f.owned[norm(owner)] {
		obj := f.objects[id]
		if structType == "" || (obj.Data != nil && obj.Data.Type == structType) {
			matching = append(matching, obj)
		}
	}
	start, end, next, err := page(cursor, len(matching), f.pageSize(limit))
	if err != nil {
		return nil, err
	}
	data := append([]ledger.ObjectResponse{}, matching[start:end]...)
	return &ledger.ObjectPage{Data: data, NextCursor: next, HasNextPage: next != nil}, nil
}

// =============================================================================
// JSON-RPC
// =============================================================================

// Handler serves the fake over JSON-RPC so a real ledger.Client can talk to it.
func (f *FakeLedger) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     string            `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		result, err := f.dispatch(r.Context(), req.Method, req.Params)
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if err != nil {
			resp["error"] = map[string]any{"code": -32000, "message": err.Error()}
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
}

func (f *FakeLedger) dispatch(ctx context.Context, method string, params []json.RawMessage) (any, error) {
	str := func(i int) string {
		var s string
		if i < len(params) {
			_ = json.Unmarshal(params[i], &s)
		}
		return s
	}
	cursorAt := func(i int) *string {
		var c *string
		if i < len(params) {
			_ = json.Unmarshal(params[i], &c)
		}
		return c
	}
	limitAt := func(i int) int {
		var n int
		if i < len(params) {
			_ = json.Unmarshal(params[i], &n)
		}
		return n
	}

	switch method {
	case "sui_getObject":
		return f.GetObject(ctx, str(0))
	case "suix_getDynamicFields":
		return f.GetDynamicFields(ctx, str(0), cursorAt(1), limitAt(2))
	case "suix_getOwnedObjects":
		var query struct {
			Filter struct {
				StructType string `json:"StructType"`
			} `json:"filter"`
		}
		if len(params) > 1 {
			_ = json.Unmarshal(params[1], &query)
		}
		return f.GetOwnedObjects(ctx, str(0), query.Filter.StructType, cursorAt(2), limitAt(3))
	case "sui_getChainIdentifier":
		return "fake", nil
	default:
		return nil, fmt.Errorf("method %s not supported", method)
	}
}

// =============================================================================
// Fixtures
// =============================================================================

// Addr pads a short hex literal to a full address, e.g. Addr("a1"). It
// panics on non-hex input.
func Addr(short string) string {
	a, err := ledger.NormalizeAddress("0x" + short)
	if err != nil {
		panic(fmt.Sprintf("testutil: %v", err))
	}
	return a
}

// MoveType returns the fully qualified type pkg::module::name.
func MoveType(pkg, module, name string) string {
	return norm(pkg) + "::" + module + "::" + name
}

// Some renders a present Option value.
func Some(v any) map[string]any {
	return map[string]any{"vec": []any{v}}
}

// None renders an absent Option value.
func None() map[string]any {
	return map[string]any{"vec": []any{}}
}

// UID renders a UID struct.
func UID(id string) map[string]any {
	return map[string]any{"id": norm(id)}
}
