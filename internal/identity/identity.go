// Package identity parses and formats composite entity identifiers of the
// form "Type::Relation/id", where the id portion may itself contain slashes
// and the relation segment is optional.
package identity

import (
	"strings"

	"eventengine/pkg/models"
)

// Parse decomposes a composite entity identifier. Missing segments default to
// the empty string; Parse never fails. All downstream entity comparisons use
// the (type, id) pair produced here.
func Parse(raw string) models.EntityRef {
	head := raw
	id := ""
	if i := strings.Index(raw, "/"); i >= 0 {
		head = raw[:i]
		id = raw[i+1:]
	}

	typ := head
	relation := ""
	if j := strings.Index(head, "::"); j >= 0 {
		typ = head[:j]
		relation = head[j+2:]
	}

	return models.EntityRef{Type: typ, Relation: relation, ID: id}
}

// Format renders a ref back into the wire format. The relation segment is
// omitted when empty.
func Format(ref models.EntityRef) string {
	if ref.Relation == "" {
		return ref.Type + "/" + ref.ID
	}
	return ref.Type + "::" + ref.Relation + "/" + ref.ID
}
