// internal/records/jmespath.go
package records

import (
	"fmt"

	jmes "github.com/jmespath/go-jmespath"
	"go.uber.org/zap"
)

// JMESPathConfig carries optional expressions that override the heuristic
// extractor for a particular backend schema version. Empty expressions fall
// through to the fallback extractor.
type JMESPathConfig struct {
	IDExpr       string // e.g. "recordId"
	NameExpr     string // e.g. "fields[?identifier=='LocationName'].rows[0].values[0].value | [0]"
	ChildrenExpr string // must yield a list of {id, name} or {recordId, name} objects
}

type jmesExtractor struct {
	id, name, children *jmes.JMESPath
	fallback           Extractor
	log                *zap.SugaredLogger
}

// NewJMESPathExtractor compiles cfg's expressions once. An expression that
// fails to compile is an error rather than a silent fallback, since it is
// operator-supplied configuration.
func NewJMESPathExtractor(cfg JMESPathConfig, fallback Extractor, log *zap.SugaredLogger) (Extractor, error) {
	e := &jmesExtractor{fallback: fallback, log: log}
	var err error
	if cfg.IDExpr != "" {
		if e.id, err = jmes.Compile(cfg.IDExpr); err != nil {
			return nil, fmt.Errorf("compile id expression: %w", err)
		}
	}
	if cfg.NameExpr != "" {
		if e.name, err = jmes.Compile(cfg.NameExpr); err != nil {
			return nil, fmt.Errorf("compile name expression: %w", err)
		}
	}
	if cfg.ChildrenExpr != "" {
		if e.children, err = jmes.Compile(cfg.ChildrenExpr); err != nil {
			return nil, fmt.Errorf("compile children expression: %w", err)
		}
	}
	return e, nil
}

func (e *jmesExtractor) ID(raw map[string]any) string {
	if e.id != nil {
		if v, err := e.id.Search(raw); err == nil {
			if s := asIDString(v); s != "" {
				return s
			}
		}
	}
	return e.fallback.ID(raw)
}

func (e *jmesExtractor) Name(raw map[string]any) string {
	if e.name != nil {
		v, err := e.name.Search(raw)
		if err != nil {
			e.log.Warnw("name expression failed", "err", err)
		} else if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return e.fallback.Name(raw)
}

func (e *jmesExtractor) Children(raw map[string]any) []Sublocation {
	if e.children == nil {
		return e.fallback.Children(raw)
	}
	v, err := e.children.Search(raw)
	if err != nil {
		e.log.Warnw("children expression failed", "err", err)
		return e.fallback.Children(raw)
	}
	items, ok := v.([]any)
	if !ok {
		return e.fallback.Children(raw)
	}
	var out []Sublocation
	seen := map[string]bool{}
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		id := asIDString(m["id"])
		if id == "" {
			id = asIDString(m["recordId"])
		}
		name, _ := m["name"].(string)
		if id == "" || name == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, Sublocation{ID: id, Name: name})
	}
	return out
}
