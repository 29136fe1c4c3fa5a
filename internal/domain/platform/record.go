package platform

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RecordKind is the concrete entity type of one flat record
type RecordKind string

const (
	RecordKindCustomer RecordKind = "Customer"
	RecordKindOrder    RecordKind = "Order"
	RecordKindProduct  RecordKind = "Product"
	RecordKindLineItem RecordKind = "LineItem"
	RecordKindVariant  RecordKind = "ProductVariant"
)

// IsValid checks if the record kind is one the pipeline understands
func (k RecordKind) IsValid() bool {
	switch k {
	case RecordKindCustomer, RecordKindOrder, RecordKindProduct, RecordKindLineItem, RecordKindVariant:
		return true
	}
	return false
}

// idField and parentField are the platform's wire names on every JSONL line
const (
	idField     = "id"
	parentField = "__parentId"
)

// Record is one flat JSONL record, classified exactly once at decode time.
// A record is either top-level (ParentID empty) or a child attached to the
// enclosing entity via ParentID. Downstream code dispatches on Kind and
// IsChild, never on raw id prefixes.
type Record struct {
	// ID is the platform's globally unique namespaced id, e.g. gid://commerce/Order/123
	ID string
	// Kind is derived from the id's type segment
	Kind RecordKind
	// ParentID points at the enclosing entity for child records, empty otherwise
	ParentID string
	// Fields holds the remaining wire fields, untouched
	Fields map[string]interface{}
}

// IsChild returns true when the record attaches to a parent entity
func (r *Record) IsChild() bool {
	return r.ParentID != ""
}

// StringField returns a field as a string, or "" when absent
func (r *Record) StringField(name string) string {
	if v, ok := r.Fields[name].(string); ok {
		return v
	}
	return ""
}

// HasField reports whether the wire record carried the field at all.
// Merge semantics only overwrite fields the platform actually sent.
func (r *Record) HasField(name string) bool {
	_, ok := r.Fields[name]
	return ok
}

// KindFromID extracts the entity type from a namespaced platform id.
// Ids have the shape <scheme>://<namespace>/<Type>/<number>.
func KindFromID(id string) (RecordKind, error) {
	idx := strings.Index(id, "://")
	if idx < 0 {
		return "", fmt.Errorf("%w: id %q is not namespaced", ErrRecordParse, id)
	}
	parts := strings.Split(id[idx+3:], "/")
	if len(parts) < 3 {
		return "", fmt.Errorf("%w: id %q has no type segment", ErrRecordParse, id)
	}
	kind := RecordKind(parts[len(parts)-2])
	if !kind.IsValid() {
		return "", fmt.Errorf("%w: unknown record kind %q", ErrRecordParse, kind)
	}
	return kind, nil
}

// DecodeRecord parses one JSONL line into a classified Record.
func DecodeRecord(line []byte) (*Record, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(line, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecordParse, err)
	}

	id, _ := fields[idField].(string)
	if id == "" {
		return nil, fmt.Errorf("%w: record has no id", ErrRecordParse)
	}
	kind, err := KindFromID(id)
	if err != nil {
		return nil, err
	}

	parentID, _ := fields[parentField].(string)
	delete(fields, idField)
	delete(fields, parentField)

	// Child-only kinds must carry a parent reference
	if parentID == "" && (kind == RecordKindLineItem || kind == RecordKindVariant) {
		return nil, fmt.Errorf("%w: %s record %q has no parent reference", ErrRecordParse, kind, id)
	}

	return &Record{
		ID:       id,
		Kind:     kind,
		ParentID: parentID,
		Fields:   fields,
	}, nil
}
