package extract

import (
	"fmt"
	"log/slog"

	"github.com/rflorenc/apim-template-extractor/internal/models"
	"github.com/rflorenc/apim-template-extractor/internal/platform"
)

// target is the primary resource generated for an entity.
type target struct {
	resource *models.ResourceTemplate
	template *models.Template
}

// Flag reasons.
const (
	reasonOutOfScope = "target not in extraction scope"
	reasonLinkDrop   = "; link resource removed"
)

// rewriter resolves the Refs recorded by the builders against the generated
// templates. In a scoped run a reference whose target exists in the source
// but was left out of scope is dropped and flagged. Any other unresolved
// reference fails the run.
type rewriter struct {
	idx     *index
	source  *index
	targets map[models.Edge]target
	scoped  bool
	logger  *slog.Logger
	flags   []models.Flag
}

// newRewriter indexes the scoped universe u and the full source universe
// all. They are the same universe in an unscoped run.
func newRewriter(u, all Universe, templates []*models.Template, scoped bool, logger *slog.Logger) *rewriter {
	rw := &rewriter{
		idx:     newIndex(u),
		source:  newIndex(all),
		targets: make(map[models.Edge]target),
		scoped:  scoped,
		logger:  logger,
	}
	for _, t := range templates {
		primary := primaryType(t.Kind)
		for _, r := range t.Resources {
			if r.Type != primary {
				continue
			}
			key := models.Edge{Kind: r.Kind, EntityID: r.EntityID}
			if _, dup := rw.targets[key]; !dup {
				rw.targets[key] = target{resource: r, template: t}
			}
		}
	}
	return rw
}

func primaryType(kind models.Kind) string {
	rt, _ := platform.LookupResourceType(kind)
	return rt.ARMType
}

// resolve finds the generated resource a reference points at.
func (rw *rewriter) resolve(ref models.Ref) (target, bool) {
	e, ok := rw.idx.lookup(ref.Kind, ref.Key)
	if !ok {
		return target{}, false
	}
	tg, ok := rw.targets[models.Edge{Kind: ref.Kind, EntityID: e.ID}]
	return tg, ok
}

// rewrite walks every resource of every template. Pass 1 rewrites the
// referring property, pass 2 records the dependency edge. Both happen per
// reference so edges keep discovery order.
func (rw *rewriter) rewrite(templates []*models.Template) error {
	for _, t := range templates {
		kept := t.Resources[:0]
		for _, r := range t.Resources {
			keep, err := rw.rewriteResource(t, r)
			if err != nil {
				return err
			}
			if keep {
				kept = append(kept, r)
			}
		}
		for i := len(kept); i < len(t.Resources); i++ {
			t.Resources[i] = nil
		}
		t.Resources = kept
	}
	return nil
}

func (rw *rewriter) rewriteResource(t *models.Template, r *models.ResourceTemplate) (bool, error) {
	keep := true
	for _, ref := range r.Refs {
		tg, ok := rw.resolve(ref)
		if !ok {
			cause := fmt.Errorf("%s %q referenced by %s not found", ref.Kind, ref.Key, ref.Source)
			if !rw.scoped {
				return false, models.UnresolvedReference("crossref", r.Kind, r.EntityID, cause)
			}
			if _, exists := rw.source.lookup(ref.Kind, ref.Key); !exists {
				return false, models.UnresolvedReference("crossref", r.Kind, r.EntityID,
					fmt.Errorf("%w in the source service", cause))
			}
			reason := reasonOutOfScope
			if ref.Style == models.RefLink {
				reason += reasonLinkDrop
				keep = false
			}
			rw.flags = append(rw.flags, models.Flag{
				Kind:     r.Kind,
				EntityID: r.EntityID,
				Resource: r.Name,
				Target:   ref.Kind,
				Key:      ref.Key,
				Source:   ref.Source,
				Reason:   reason,
			})
			rw.logger.Warn("dropped reference", "stage", "crossref", "kind", r.Kind, "id", r.EntityID,
				"target", ref.Kind, "key", ref.Key, "source", ref.Source)
			continue
		}
		if !allowed(r.Kind, ref.Kind) {
			return false, fmt.Errorf("crossref: %s may not depend on %s (%s)",
				models.EntityRef(r.Kind, r.EntityID), ref.Kind, ref.Source)
		}

		switch ref.Style {
		case models.RefResourceID:
			setPath(r.Properties, ref.Path, tg.resource.ResourceID)
		case models.RefName:
			setPath(r.Properties, ref.Path, tg.resource.EntityID)
		}

		r.AddRequires(models.Edge{Kind: ref.Kind, EntityID: tg.resource.EntityID, ResourceID: tg.resource.ResourceID})
		if tg.template == t {
			r.AddDependsOn(tg.resource.ResourceID)
		}
	}
	return keep, nil
}

// checkAcyclic fails when the dependency edges across all templates form a
// cycle.
func checkAcyclic(templates []*models.Template) error {
	deps := make(map[string][]string)
	var nodes []string
	for _, t := range templates {
		for _, r := range t.Resources {
			if _, seen := deps[r.ResourceID]; !seen {
				nodes = append(nodes, r.ResourceID)
			}
			edges := append([]string(nil), r.DependsOn...)
			for _, e := range r.Requires {
				edges = append(edges, e.ResourceID)
			}
			deps[r.ResourceID] = append(deps[r.ResourceID], edges...)
		}
	}

	const (
		unvisited = iota
		inProgress
		done
	)
	state := make(map[string]int, len(nodes))
	var visit func(n string) error
	visit = func(n string) error {
		switch state[n] {
		case inProgress:
			return fmt.Errorf("crossref: dependency cycle through %s", n)
		case done:
			return nil
		}
		state[n] = inProgress
		for _, d := range deps[n] {
			if err := visit(d); err != nil {
				return err
			}
		}
		state[n] = done
		return nil
	}
	for _, n := range nodes {
		if err := visit(n); err != nil {
			return err
		}
	}
	return nil
}
