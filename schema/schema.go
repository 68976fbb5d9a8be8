// Package schema provides the field contracts for the business, review and
// photo collections, and the validation and extraction applied to incoming
// documents before they reach a store.
package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrInvalid is returned when a document is missing required fields.
	ErrInvalid = errors.New("document does not match schema")

	// ErrNoMatchingFields is returned when a partial update carries no
	// field known to the schema.
	ErrNoMatchingFields = errors.New("document has no fields matching schema")
)

// Field describes a single schema field.
type Field struct {
	Required bool
}

// Schema maps field names to their descriptors.
type Schema map[string]Field

// Fields returns the schema's field names in sorted order.
func (s Schema) Fields() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Required returns the names of the required fields in sorted order.
func (s Schema) Required() []string {
	var names []string
	for _, name := range s.Fields() {
		if s[name].Required {
			names = append(names, name)
		}
	}
	return names
}

// Business is the schema for the "businesses" collection.
var Business = Schema{
	"name":        {Required: true},
	"address":     {Required: true},
	"city":        {Required: true},
	"state":       {Required: true},
	"zip":         {Required: true},
	"phone":       {Required: true},
	"category":    {Required: true},
	"subcategory": {Required: true},
	"website":     {Required: false},
	"email":       {Required: false},
}

// Review is the schema for the "reviews" collection.
var Review = Schema{
	"star":   {Required: true},
	"dollar": {Required: true},
	"review": {Required: false},
}

// Photo is the schema for the "photos" collection.
var Photo = Schema{
	"url":     {Required: true},
	"caption": {Required: false},
}

var registry = map[string]Schema{
	"businesses": Business,
	"reviews":    Review,
	"photos":     Photo,
}

// Lookup returns the schema registered for a collection.
func Lookup(collection string) (Schema, bool) {
	s, ok := registry[collection]
	return s, ok
}

// Validate checks that doc carries every required field of s.
// A field is present when its key exists, even if the value is JSON null.
// Fields unknown to the schema are ignored.
func Validate(doc map[string]any, s Schema) error {
	if doc == nil {
		return fmt.Errorf("%w: no document", ErrInvalid)
	}
	var missing []string
	for _, field := range s.Required() {
		if _, ok := doc[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required field(s) %s", ErrInvalid, strings.Join(missing, ", "))
	}
	return nil
}

// Valid is the boolean form of Validate.
func Valid(doc map[string]any, s Schema) bool {
	return Validate(doc, s) == nil
}

// Extract returns a new document holding only the fields of doc that s
// declares. Schema fields absent from doc are omitted, not defaulted.
func Extract(doc map[string]any, s Schema) map[string]any {
	out := make(map[string]any, len(s))
	for field := range s {
		if v, ok := doc[field]; ok {
			out[field] = v
		}
	}
	return out
}

// HasAny reports whether doc carries at least one field declared by s.
func HasAny(doc map[string]any, s Schema) bool {
	for field := range s {
		if _, ok := doc[field]; ok {
			return true
		}
	}
	return false
}
