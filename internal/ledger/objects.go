package ledger

import (
	"context"
	"encoding/json"
	"fmt"
)

// objectOptions asks the node for everything the decoders need.
var objectOptions = map[string]bool{
	"showType":    true,
	"showOwner":   true,
	"showContent": true,
}

// MaxPageSize is the largest page the node serves for paginated queries.
const MaxPageSize = 50

// =============================================================================
// Object Reads
// =============================================================================

// GetObject fetches one object. A missing object is not an RPC error: the
// returned envelope has Error set and Exists() reports false.
func (c *Client) GetObject(ctx context.Context, objectID string) (*ObjectResponse, error) {
	result, err := c.Call(ctx, "sui_getObject", objectID, objectOptions)
	if err != nil {
		return nil, err
	}

	var obj ObjectResponse
	if err := json.Unmarshal(result, &obj); err != nil {
		return nil, fmt.Errorf("unmarshal object %s: %w", objectID, err)
	}
	return &obj, nil
}

// GetDynamicFields lists one page of the dynamic fields attached to parentID.
// A nil cursor starts from the beginning; limit <= 0 lets the node choose.
func (c *Client) GetDynamicFields(ctx context.Context, parentID string, cursor *string, limit int) (*DynamicFieldPage, error) {
	result, err := c.Call(ctx, "suix_getDynamicFields", parentID, cursor, pageLimit(limit))
	if err != nil {
		return nil, err
	}

	var page DynamicFieldPage
	if err := json.Unmarshal(result, &page); err != nil {
		return nil, fmt.Errorf("unmarshal dynamic fields of %s: %w", parentID, err)
	}
	if page.Data == nil {
		page.Data = []DynamicFieldInfo{}
	}
	return &page, nil
}

// GetOwnedObjects lists one page of objects owned by owner whose Move type is
// structType. An empty structType lists everything the address owns.
func (c *Client) GetOwnedObjects(ctx context.Context, owner, structType string, cursor *string, limit int) (*ObjectPage, error) {
	query := map[string]any{"options": objectOptions}
	if structType != "" {
		query["filter"] = map[string]string{"StructType": structType}
	}

	result, err := c.Call(ctx, "suix_getOwnedObjects", owner, query, cursor, pageLimit(limit))
	if err != nil {
		return nil, err
	}

	var page ObjectPage
	if err := json.Unmarshal(result, &page); err != nil {
		return nil, fmt.Errorf("unmarshal owned objects of %s: %w", owner, err)
	}
	if page.Data == nil {
		page.Data = []ObjectResponse{}
	}
	return &page, nil
}

func pageLimit(limit int) any {
	if limit <= 0 {
		return nil
	}
	return min(limit, MaxPageSize)
}
