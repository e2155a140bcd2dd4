// internal/records/extractor.go
package records

import (
	"fmt"
	"strconv"
)

// Sublocation is one child entry of a location record.
type Sublocation struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Extractor pulls display fields out of a raw backend record. The backend's
// nested field schema varies between template versions, so the heuristics
// live behind this interface.
type Extractor interface {
	// ID returns the record identifier, or "" when none can be found.
	ID(raw map[string]any) string
	// Name returns a display name for the record.
	Name(raw map[string]any) string
	// Children returns the record's sublocations, duplicates suppressed.
	Children(raw map[string]any) []Sublocation
}

// heuristic is the default extractor for the platform's location template:
// top-level "name" first, then well-known field identifiers, children from
// the "Item" field's rows.
type heuristic struct{}

func NewHeuristicExtractor() Extractor { return heuristic{} }

var nameFieldIdentifiers = []string{"LocationName", "RecordName", "Name"}

func (heuristic) ID(raw map[string]any) string {
	if v := asIDString(raw["recordId"]); v != "" {
		return v
	}
	return asIDString(raw["id"])
}

func (h heuristic) Name(raw map[string]any) string {
	if s, ok := raw["name"].(string); ok && s != "" {
		return s
	}
	for _, want := range nameFieldIdentifiers {
		if s := firstFieldValue(raw, want); s != "" {
			return s
		}
	}
	id := h.ID(raw)
	if id == "" {
		id = "unknown"
	}
	return "Location " + id
}

func (heuristic) Children(raw map[string]any) []Sublocation {
	var out []Sublocation
	seen := map[string]bool{}
	for _, row := range fieldRows(raw, "Item") {
		val, ok := rowValue(row).(map[string]any)
		if !ok {
			continue
		}
		id := asIDString(val["recordId"])
		name, _ := val["name"].(string)
		if id == "" || name == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, Sublocation{ID: id, Name: name})
	}
	return out
}

// fieldRows returns the rows of the field with the given identifier.
func fieldRows(raw map[string]any, identifier string) []any {
	fields, ok := raw["fields"].([]any)
	if !ok {
		return nil
	}
	for _, f := range fields {
		fm, ok := f.(map[string]any)
		if !ok {
			continue
		}
		if fm["identifier"] != identifier {
			continue
		}
		rows, _ := fm["rows"].([]any)
		return rows
	}
	return nil
}

// rowValue returns row.values[0].value, or nil.
func rowValue(row any) any {
	rm, ok := row.(map[string]any)
	if !ok {
		return nil
	}
	values, ok := rm["values"].([]any)
	if !ok || len(values) == 0 {
		return nil
	}
	vm, ok := values[0].(map[string]any)
	if !ok {
		return nil
	}
	return vm["value"]
}

func firstFieldValue(raw map[string]any, identifier string) string {
	rows := fieldRows(raw, identifier)
	if len(rows) == 0 {
		return ""
	}
	if s, ok := rowValue(rows[0]).(string); ok {
		return s
	}
	return ""
}

// asIDString renders a record id as a string whether the backend sent it as
// a string, an integer or a JSON float.
func asIDString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", x)
	}
}
