package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// =============================================================================
// JSON-RPC envelope
// =============================================================================

// RPCRequest is a JSON-RPC 2.0 request.
type RPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      string `json:"id"`
}

// RPCResponse is a JSON-RPC 2.0 response.
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC error returned by the node.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// =============================================================================
// Objects
// =============================================================================

// Content data types reported by the node.
const (
	DataTypeMoveObject = "moveObject"
	DataTypePackage    = "package"
)

// ObjectResponse is the envelope returned for a single object lookup.
// Exactly one of Data or Error is set by a well-behaved node.
type ObjectResponse struct {
	Data  *ObjectData  `json:"data,omitempty"`
	Error *ObjectError `json:"error,omitempty"`
}

// Exists reports whether the envelope carries object data.
func (r *ObjectResponse) Exists() bool {
	return r != nil && r.Data != nil
}

// ObjectData is the resolved object.
type ObjectData struct {
	ObjectID string          `json:"objectId"`
	Version  json.Number     `json:"version"`
	Digest   string          `json:"digest"`
	Type     string          `json:"type,omitempty"`
	Owner    json.RawMessage `json:"owner,omitempty"`
	Content  *ObjectContent  `json:"content,omitempty"`
}

// ObjectContent is the parsed Move struct payload. Fields is kept raw: its
// shape depends on the struct and is projected by the decoders.
type ObjectContent struct {
	DataType          string          `json:"dataType"`
	Type              string          `json:"type,omitempty"`
	HasPublicTransfer bool            `json:"hasPublicTransfer,omitempty"`
	Fields            json.RawMessage `json:"fields,omitempty"`
}

// ObjectError describes why an object could not be returned.
type ObjectError struct {
	Code     string `json:"code"`
	ObjectID string `json:"object_id,omitempty"`
	Version  string `json:"version,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Object error codes.
const (
	ObjectErrNotExists = "notExists"
	ObjectErrDeleted   = "deleted"
)

// OwnerAddress returns the owning address for address-owned objects, or "".
func (d *ObjectData) OwnerAddress() string {
	if d == nil || len(d.Owner) == 0 {
		return ""
	}
	return gjson.GetBytes(d.Owner, "AddressOwner").String()
}

// InitialSharedVersion returns the initial shared version for shared objects.
func (d *ObjectData) InitialSharedVersion() (uint64, bool) {
	if d == nil || len(d.Owner) == 0 {
		return 0, false
	}
	v := gjson.GetBytes(d.Owner, "Shared.initial_shared_version")
	if !v.Exists() {
		return 0, false
	}
	return v.Uint(), true
}

// ObjectPage is a page of objects, as returned by owned-object queries.
type ObjectPage struct {
	Data        []ObjectResponse `json:"data"`
	NextCursor  *string          `json:"nextCursor"`
	HasNextPage bool             `json:"hasNextPage"`
}

// =============================================================================
// Dynamic fields
// =============================================================================

// DynamicFieldName is the typed key a dynamic field is stored under.
type DynamicFieldName struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// DynamicFieldInfo describes one child attached to a parent object.
type DynamicFieldInfo struct {
	Name       DynamicFieldName `json:"name"`
	BCSName    string           `json:"bcsName,omitempty"`
	Type       string           `json:"type"`
	ObjectType string           `json:"objectType"`
	ObjectID   string           `json:"objectId"`
	Version    json.Number      `json:"version"`
	Digest     string           `json:"digest"`
}

// DynamicFieldPage is one page of a parent's dynamic fields.
type DynamicFieldPage struct {
	Data        []DynamicFieldInfo `json:"data"`
	NextCursor  *string            `json:"nextCursor"`
	HasNextPage bool               `json:"hasNextPage"`
}

// =============================================================================
// Transactions
// =============================================================================

// Execution statuses reported in transaction effects.
const (
	ExecutionSuccess = "success"
	ExecutionFailure = "failure"
)

// TransactionBlock is the subset of a transaction response this client reads.
type TransactionBlock struct {
	Digest      string              `json:"digest"`
	TimestampMs string              `json:"timestampMs,omitempty"`
	Checkpoint  string              `json:"checkpoint,omitempty"`
	Effects     *TransactionEffects `json:"effects,omitempty"`
}

// TransactionEffects holds the execution status of a transaction.
type TransactionEffects struct {
	Status ExecutionStatus `json:"status"`
}

// ExecutionStatus is "success" or "failure" with the abort message.
type ExecutionStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Succeeded reports whether the transaction executed successfully.
func (t *TransactionBlock) Succeeded() bool {
	return t != nil && t.Effects != nil && t.Effects.Status.Status == ExecutionSuccess
}
