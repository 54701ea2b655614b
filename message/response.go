package message

import (
	"encoding/json"
	"slices"
)

// Response is the reply to one query. Found is derived from the items and
// cannot be set on its own.
type Response struct {
	items []Item
}

// NewResponse builds a reply carrying items; it is "found" iff items is
// non-empty.
func NewResponse(items []Item) Response {
	return Response{items: slices.Clone(items)}
}

// NotFound is the empty reply.
func NotFound() Response {
	return Response{}
}

// Found reports whether the reply carries at least one item.
func (r Response) Found() bool {
	return len(r.items) > 0
}

// Items returns a copy of the reply items.
func (r Response) Items() []Item {
	return slices.Clone(r.items)
}

type wireResponse struct {
	Found bool   `json:"found"`
	Items []Item `json:"items"`
}

// MarshalJSON encodes {"found":...,"items":[...]}, with items never null.
func (r Response) MarshalJSON() ([]byte, error) {
	items := r.items
	if items == nil {
		items = []Item{}
	}
	return json.Marshal(wireResponse{Found: len(items) > 0, Items: items})
}

// UnmarshalJSON decodes a reply. The found flag on the wire is ignored in
// favour of the items.
func (r *Response) UnmarshalJSON(data []byte) error {
	var w wireResponse
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.items = w.Items
	return nil
}
