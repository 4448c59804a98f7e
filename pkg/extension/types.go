package extension

import (
	"fmt"
	"strings"
	"time"
)

// FieldType is the declared type of an extension field. Values are always
// stored as strings; the type drives validation and display.
type FieldType string

const (
	FieldTypeInteger         FieldType = "INTEGER"
	FieldTypeDecimal         FieldType = "DECIMAL"
	FieldTypeBoolean         FieldType = "BOOLEAN"
	FieldTypeDate            FieldType = "DATE"
	FieldTypeString          FieldType = "STRING"
	FieldTypeMultiLineString FieldType = "MULTI_LINE_STRING"
	FieldTypeListOfValues    FieldType = "LIST_OF_VALUES"
)

// FieldTypes lists every supported field type
var FieldTypes = []FieldType{
	FieldTypeInteger,
	FieldTypeDecimal,
	FieldTypeBoolean,
	FieldTypeDate,
	FieldTypeString,
	FieldTypeMultiLineString,
	FieldTypeListOfValues,
}

// Valid reports whether t is a supported field type
func (t FieldType) Valid() bool {
	for _, ft := range FieldTypes {
		if ft == t {
			return true
		}
	}
	return false
}

// ParseFieldType parses a field type name case-insensitively
func ParseFieldType(s string) (FieldType, error) {
	t := FieldType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown field type %q", s)
	}
	return t, nil
}

// GlobalOwner is the owner type of extensions that apply to every caller
const GlobalOwner = "global"

// MaxOptionsLength bounds the serialized LOV option list
const MaxOptionsLength = 2000

// ExtensionPoint names an entity type that accepts extension fields
type ExtensionPoint struct {
	Name       string `json:"name" yaml:"name"`
	TargetType string `json:"target_type" yaml:"target_type"`
}

// Owner identifies the scope of an extension
type Owner struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Global is the owner of unscoped extensions
var Global = Owner{Type: GlobalOwner}

// Extension is one scope's set of extra fields for a target entity type
type Extension struct {
	ID         int64             `json:"id"`
	TargetType string            `json:"target_type"`
	OwnerType  string            `json:"owner_type"`
	OwnerID    string            `json:"owner_id"`
	Name       string            `json:"name,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Owner returns the extension's scope
func (e *Extension) Owner() Owner {
	return Owner{Type: e.OwnerType, ID: e.OwnerID}
}

// Key identifies the extension in settings columns: its name when set,
// otherwise target/ownerType/ownerID.
func (e *Extension) Key() string {
	if e.Name != "" {
		return e.Name
	}
	if e.OwnerID == "" {
		return e.TargetType + "/" + e.OwnerType
	}
	return e.TargetType + "/" + e.OwnerType + "/" + e.OwnerID
}

// LOVOption is one entry of a list-of-values field
type LOVOption struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

// Field is an extension field definition
type Field struct {
	ID          int64       `json:"id"`
	ExtensionID int64       `json:"extension_id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Type        FieldType   `json:"type"`
	Required    bool        `json:"required"`
	MaxLength   int         `json:"max_length,omitempty"`
	Options     []LOVOption `json:"options,omitempty"`
	Version     int         `json:"version"`
	CreatedAt   time.Time   `json:"created_at"`
	CreatedBy   string      `json:"created_by,omitempty"`
	UpdatedAt   time.Time   `json:"updated_at"`
	UpdatedBy   string      `json:"updated_by,omitempty"`
}

// Label is the display label of the field
func (f *Field) Label() string {
	if f.Description != "" {
		return f.Description
	}
	return f.Name
}

// Clone returns a deep copy
func (f *Field) Clone() *Field {
	c := *f
	if f.Options != nil {
		c.Options = append([]LOVOption(nil), f.Options...)
	}
	return &c
}

// FieldSpec describes a field to add or update
type FieldSpec struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Type        FieldType   `json:"type"`
	Required    bool        `json:"required"`
	MaxLength   int         `json:"max_length,omitempty"`
	Options     []LOVOption `json:"options,omitempty"`
}

// FieldValue is the stored value of a field for one entity instance
type FieldValue struct {
	ID       int64  `json:"id"`
	FieldID  int64  `json:"field_id"`
	EntityID int64  `json:"entity_id"`
	Value    string `json:"value"`
}

// ExtendableRecord is implemented by entities that carry extended fields.
// The map is keyed by field name.
type ExtendableRecord interface {
	GetExtendedFields() map[string]string
	SetExtendedFields(map[string]string)
}
