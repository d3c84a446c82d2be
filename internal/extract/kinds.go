package extract

import (
	"fmt"
	"sort"

	"github.com/rflorenc/apim-template-extractor/internal/models"
	"github.com/rflorenc/apim-template-extractor/internal/naming"
	"github.com/rflorenc/apim-template-extractor/internal/platform"
)

// buildFunc appends the resources (and policy files) of one entity to its
// kind's template.
type buildFunc func(b *builder, e models.Entity, t *models.Template) error

// handler binds one kind to its builder and the kinds it may reference.
type handler struct {
	kind  models.Kind
	deps  []models.Kind
	build buildFunc
	// policies marks kinds whose templates take the policy XML base URL.
	policies bool
}

// Kind registry, in output order.
var handlers = []handler{
	{
		kind: models.KindAPI,
		deps: []models.Kind{
			models.KindAPIVersionSet, models.KindAuthorizationServer, models.KindBackend,
			models.KindLogger, models.KindNamedValue, models.KindTag,
		},
		build:    buildAPI,
		policies: true,
	},
	{kind: models.KindAPIVersionSet, build: buildAPIVersionSet},
	{kind: models.KindAuthorizationServer, build: buildAuthorizationServer},
	{kind: models.KindBackend, deps: []models.Kind{models.KindNamedValue}, build: buildBackend},
	{kind: models.KindLogger, deps: []models.Kind{models.KindNamedValue}, build: buildLogger},
	{kind: models.KindNamedValue, build: buildNamedValue},
	{kind: models.KindTag, build: buildTag},
	{
		kind: models.KindProduct,
		deps: []models.Kind{
			models.KindAPI, models.KindNamedValue, models.KindTag, models.KindBackend, models.KindLogger,
		},
		build:    buildProduct,
		policies: true,
	},
	{
		kind:     models.KindGlobalPolicy,
		deps:     []models.Kind{models.KindNamedValue, models.KindBackend, models.KindLogger},
		build:    buildGlobalPolicy,
		policies: true,
	},
}

func lookupHandler(kind models.Kind) (handler, bool) {
	for _, h := range handlers {
		if h.kind == kind {
			return h, true
		}
	}
	return handler{}, false
}

// DeclaredDeps returns the kinds that entities of kind may reference.
func DeclaredDeps(kind models.Kind) []models.Kind {
	h, ok := lookupHandler(kind)
	if !ok {
		return nil
	}
	out := make([]models.Kind, len(h.deps))
	copy(out, h.deps)
	return out
}

// allowed reports whether a resource of kind from may depend on kind to.
func allowed(from, to models.Kind) bool {
	if from == to {
		return true
	}
	for _, d := range DeclaredDeps(from) {
		if d == to {
			return true
		}
	}
	return false
}

// Waves groups kinds so that every kind comes after the kinds it depends on.
// Kinds within a wave are independent and keep output order. A cycle in the
// declared dependencies is an error.
func Waves() ([][]models.Kind, error) {
	order := make(map[models.Kind]int, len(handlers))
	indegree := make(map[models.Kind]int, len(handlers))
	dependents := make(map[models.Kind][]models.Kind)
	for i, h := range handlers {
		order[h.kind] = i
		for _, d := range h.deps {
			if _, ok := lookupHandler(d); !ok {
				return nil, fmt.Errorf("kind %s depends on unregistered kind %s", h.kind, d)
			}
			indegree[h.kind]++
			dependents[d] = append(dependents[d], h.kind)
		}
	}

	var waves [][]models.Kind
	var ready []models.Kind
	for _, h := range handlers {
		if indegree[h.kind] == 0 {
			ready = append(ready, h.kind)
		}
	}
	placed := 0
	for len(ready) > 0 {
		sort.Slice(ready, func(a, b int) bool { return order[ready[a]] < order[ready[b]] })
		waves = append(waves, ready)
		placed += len(ready)

		var next []models.Kind
		for _, k := range ready {
			for _, dep := range dependents[k] {
				indegree[dep]--
				if indegree[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		ready = next
	}
	if placed != len(handlers) {
		var stuck []string
		for _, h := range handlers {
			if indegree[h.kind] > 0 {
				stuck = append(stuck, string(h.kind))
			}
		}
		return nil, fmt.Errorf("dependency cycle between kinds %v", stuck)
	}
	return waves, nil
}

// KindInfo describes one registered kind for listings.
type KindInfo struct {
	models.ResourceType
	FileName  string        `json:"file_name"`
	DependsOn []models.Kind `json:"depends_on"`
	Wave      int           `json:"wave"`
}

// Kinds lists the registry in output order with the file names used for
// baseFileName.
func Kinds(baseFileName string) ([]KindInfo, error) {
	waves, err := Waves()
	if err != nil {
		return nil, err
	}
	wave := make(map[models.Kind]int, len(handlers))
	for i, w := range waves {
		for _, k := range w {
			wave[k] = i + 1
		}
	}
	files := naming.GenerateFileNames(baseFileName)
	out := make([]KindInfo, 0, len(handlers))
	for _, h := range handlers {
		rt, _ := platform.LookupResourceType(h.kind)
		out = append(out, KindInfo{
			ResourceType: rt,
			FileName:     files.ForKind(h.kind),
			DependsOn:    DeclaredDeps(h.kind),
			Wave:         wave[h.kind],
		})
	}
	return out, nil
}
