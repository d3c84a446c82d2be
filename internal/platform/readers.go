package platform

import (
	"context"
	"fmt"
	"strings"

	"github.com/rflorenc/apim-template-extractor/internal/models"
)

// readCollection reads a flat collection (version sets, authorization servers,
// backends, loggers, named values, tags).
func (s *Source) readCollection(ctx context.Context, rt models.ResourceType) ([]models.Entity, error) {
	items, err := s.client.GetAll(ctx, "/"+rt.Collection)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rt.Collection, err)
	}
	entities := make([]models.Entity, 0, len(items))
	for _, it := range items {
		entities = append(entities, entityFromItem(rt.Kind, it))
	}
	s.logger.Debug("read collection", "kind", rt.Kind, "count", len(entities))
	return entities, nil
}

// readAPIs reads current API revisions with their policies, operations,
// schemas, diagnostics and tags.
func (s *Source) readAPIs(ctx context.Context, opts ReadOptions) ([]models.Entity, error) {
	items, err := s.client.GetAll(ctx, "/apis")
	if err != nil {
		return nil, fmt.Errorf("apis: %w", err)
	}

	var entities []models.Entity
	for _, it := range items {
		if isRevision(it) {
			continue
		}
		e := entityFromItem(models.KindAPI, it)
		if opts.API != "" && e.ID != opts.API {
			entities = append(entities, e)
			continue
		}

		base := "/apis/" + e.ID
		if e.Policy, err = s.client.GetPolicy(ctx, base+"/policies/policy"); err != nil {
			return nil, fmt.Errorf("api %s policy: %w", e.ID, err)
		}

		ops, err := s.client.GetAll(ctx, base+"/operations")
		if err != nil {
			return nil, fmt.Errorf("api %s operations: %w", e.ID, err)
		}
		for _, op := range ops {
			child := models.Child{Type: models.ChildOperation, ID: op.Name, Properties: op.Properties}
			child.Policy, err = s.client.GetPolicy(ctx, fmt.Sprintf("%s/operations/%s/policies/policy", base, op.Name))
			if err != nil {
				return nil, fmt.Errorf("api %s operation %s policy: %w", e.ID, op.Name, err)
			}
			e.Children = append(e.Children, child)
		}

		schemas, err := s.client.GetAll(ctx, base+"/schemas")
		if err != nil {
			return nil, fmt.Errorf("api %s schemas: %w", e.ID, err)
		}
		for _, sc := range schemas {
			e.Children = append(e.Children, models.Child{Type: models.ChildSchema, ID: sc.Name, Properties: sc.Properties})
		}

		diags, err := s.client.GetAll(ctx, base+"/diagnostics")
		if err != nil {
			return nil, fmt.Errorf("api %s diagnostics: %w", e.ID, err)
		}
		for _, d := range diags {
			e.Children = append(e.Children, models.Child{Type: models.ChildDiagnostic, ID: d.Name, Properties: d.Properties})
		}

		tags, err := s.client.GetAll(ctx, base+"/tags")
		if err != nil {
			return nil, fmt.Errorf("api %s tags: %w", e.ID, err)
		}
		e.Links = linkNames(e.Links, models.KindTag, tags)

		s.logger.Debug("read api", "api", e.ID, "operations", len(ops), "schemas", len(schemas), "diagnostics", len(diags))
		entities = append(entities, e)
	}
	return entities, nil
}

// readProducts reads products with their API membership, tags and policy.
func (s *Source) readProducts(ctx context.Context) ([]models.Entity, error) {
	items, err := s.client.GetAll(ctx, "/products")
	if err != nil {
		return nil, fmt.Errorf("products: %w", err)
	}

	entities := make([]models.Entity, 0, len(items))
	for _, it := range items {
		e := entityFromItem(models.KindProduct, it)
		base := "/products/" + e.ID

		apis, err := s.client.GetAll(ctx, base+"/apis")
		if err != nil {
			return nil, fmt.Errorf("product %s apis: %w", e.ID, err)
		}
		var current []Item
		for _, a := range apis {
			if !isRevision(a) {
				current = append(current, a)
			}
		}
		e.Links = linkNames(e.Links, models.KindAPI, current)

		tags, err := s.client.GetAll(ctx, base+"/tags")
		if err != nil {
			return nil, fmt.Errorf("product %s tags: %w", e.ID, err)
		}
		e.Links = linkNames(e.Links, models.KindTag, tags)

		if e.Policy, err = s.client.GetPolicy(ctx, base+"/policies/policy"); err != nil {
			return nil, fmt.Errorf("product %s policy: %w", e.ID, err)
		}
		entities = append(entities, e)
	}
	return entities, nil
}

// readServicePolicy reads the service-wide policy. A service without one
// yields no entity.
func (s *Source) readServicePolicy(ctx context.Context) ([]models.Entity, error) {
	doc, err := s.client.GetPolicy(ctx, "/policies/policy")
	if err != nil {
		return nil, fmt.Errorf("service policy: %w", err)
	}
	if doc == "" {
		return nil, nil
	}
	return []models.Entity{{
		ID:         "policy",
		Kind:       models.KindGlobalPolicy,
		Properties: models.Resource{},
		Policy:     doc,
	}}, nil
}

func entityFromItem(kind models.Kind, it Item) models.Entity {
	props := it.Properties
	if props == nil {
		props = models.Resource{}
	}
	return models.Entity{ID: it.Name, Kind: kind, Properties: props}
}

// isRevision reports whether an API item is a non-current revision
// ("echo-api;rev=2").
func isRevision(it Item) bool {
	if strings.Contains(it.Name, ";rev=") {
		return true
	}
	if current, ok := it.Properties["isCurrent"].(bool); ok && !current {
		return true
	}
	return false
}

func linkNames(links map[models.Kind][]string, kind models.Kind, items []Item) map[models.Kind][]string {
	if len(items) == 0 {
		return links
	}
	if links == nil {
		links = make(map[models.Kind][]string)
	}
	for _, it := range items {
		links[kind] = append(links[kind], it.Name)
	}
	return links
}
