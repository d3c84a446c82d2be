package extract

import (
	"errors"
	"log/slog"

	"github.com/rflorenc/apim-template-extractor/internal/logging"
	"github.com/rflorenc/apim-template-extractor/internal/models"
)

// Universe holds the entities of every kind, each list in discovery order.
type Universe map[models.Kind][]models.Entity

// Count returns the number of entities across all kinds.
func (u Universe) Count() int {
	n := 0
	for _, list := range u {
		n += len(list)
	}
	return n
}

// IDs returns the entity ids per kind, in discovery order.
func (u Universe) IDs() map[models.Kind][]string {
	out := make(map[models.Kind][]string, len(u))
	for _, k := range models.AllKinds {
		for _, e := range u[k] {
			out[k] = append(out[k], e.ID)
		}
	}
	return out
}

// dedupe drops repeated ids within a kind, keeping the first occurrence.
func dedupe(list []models.Entity) []models.Entity {
	seen := make(map[string]bool, len(list))
	out := list[:0:0]
	for _, e := range list {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		out = append(out, e)
	}
	return out
}

// index finds entities by kind and id. Named values are also found by their
// display name, which is how policies refer to them.
type index struct {
	byID    map[models.Kind]map[string]models.Entity
	aliases map[models.Kind]map[string]string
}

func newIndex(u Universe) *index {
	idx := &index{
		byID:    make(map[models.Kind]map[string]models.Entity),
		aliases: make(map[models.Kind]map[string]string),
	}
	for kind, list := range u {
		ids := make(map[string]models.Entity, len(list))
		for _, e := range list {
			if _, dup := ids[e.ID]; !dup {
				ids[e.ID] = e
			}
		}
		idx.byID[kind] = ids
	}
	nv := make(map[string]string)
	for _, e := range u[models.KindNamedValue] {
		if name := e.StringProperty("displayName"); name != "" {
			if _, dup := nv[name]; !dup {
				nv[name] = e.ID
			}
		}
	}
	idx.aliases[models.KindNamedValue] = nv
	return idx
}

// lookup resolves a reference key to an entity.
func (idx *index) lookup(kind models.Kind, key string) (models.Entity, bool) {
	if e, ok := idx.byID[kind][key]; ok {
		return e, true
	}
	if id, ok := idx.aliases[kind][key]; ok {
		e, ok := idx.byID[kind][id]
		return e, ok
	}
	return models.Entity{}, false
}

// Scope restricts u to what one API reaches: the API, the products that
// contain it, and the transitive closure of their references, never
// crossing into another API. The service policy is always in scope. An
// empty apiID returns u unchanged.
func Scope(u Universe, apiID string, logger *slog.Logger) (Universe, error) {
	if apiID == "" {
		return u, nil
	}
	if logger == nil {
		logger = logging.Nop()
	}
	idx := newIndex(u)
	api, ok := idx.lookup(models.KindAPI, apiID)
	if !ok {
		return nil, models.UnresolvedReference("scope", models.KindAPI, apiID, errors.New("api not found in source service"))
	}

	b := &builder{logger: logger}
	in := make(map[models.Kind]map[string]bool)
	var queue []models.Entity
	visit := func(e models.Entity) {
		if in[e.Kind] == nil {
			in[e.Kind] = make(map[string]bool)
		}
		if in[e.Kind][e.ID] {
			return
		}
		in[e.Kind][e.ID] = true
		queue = append(queue, e)
	}

	// 1. The API and the products containing it
	visit(api)
	for _, p := range u[models.KindProduct] {
		if contains(p.Links[models.KindAPI], apiID) {
			visit(p)
		}
	}

	// 2. Service policy
	for _, gp := range u[models.KindGlobalPolicy] {
		visit(gp)
	}

	// 3. Closure over references
	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]
		refs, err := b.references(e)
		if err != nil {
			return nil, err
		}
		for _, ref := range refs {
			if ref.Kind == models.KindAPI {
				continue
			}
			if target, ok := idx.lookup(ref.Kind, ref.Key); ok {
				visit(target)
			}
			// unresolved keys are reported by the rewriter
		}
	}

	scoped := make(Universe, len(u))
	for _, k := range models.AllKinds {
		for _, e := range dedupe(u[k]) {
			if in[k][e.ID] {
				scoped[k] = append(scoped[k], e)
			}
		}
		logger.Debug("scoped kind", "stage", "scope", "kind", k, "count", len(scoped[k]), "of", len(u[k]))
	}
	return scoped, nil
}
