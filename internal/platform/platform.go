package platform

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rflorenc/apim-template-extractor/internal/logging"
	"github.com/rflorenc/apim-template-extractor/internal/models"
	"github.com/rflorenc/apim-template-extractor/internal/naming"
)

// Resource types exposed by the management API (registry).
var resourceTypes = []models.ResourceType{
	{Kind: models.KindAPI, Label: "APIs", Collection: "apis", ARMType: naming.TypeAPI},
	{Kind: models.KindAPIVersionSet, Label: "API Version Sets", Collection: "apiVersionSets", ARMType: naming.TypeAPIVersionSet},
	{Kind: models.KindAuthorizationServer, Label: "Authorization Servers", Collection: "authorizationServers", ARMType: naming.TypeAuthorizationServer},
	{Kind: models.KindBackend, Label: "Backends", Collection: "backends", ARMType: naming.TypeBackend},
	{Kind: models.KindLogger, Label: "Loggers", Collection: "loggers", ARMType: naming.TypeLogger},
	{Kind: models.KindNamedValue, Label: "Named Values", Collection: "properties", ARMType: naming.TypeNamedValue},
	{Kind: models.KindTag, Label: "Tags", Collection: "tags", ARMType: naming.TypeTag},
	{Kind: models.KindProduct, Label: "Products", Collection: "products", ARMType: naming.TypeProduct},
	{Kind: models.KindGlobalPolicy, Label: "Service Policy", Collection: "policies", ARMType: naming.TypeServicePolicy},
}

// ResourceTypes returns the registry of readable kinds.
func ResourceTypes() []models.ResourceType {
	out := make([]models.ResourceType, len(resourceTypes))
	copy(out, resourceTypes)
	return out
}

// LookupResourceType returns the registry entry of a kind.
func LookupResourceType(kind models.Kind) (models.ResourceType, bool) {
	for _, rt := range resourceTypes {
		if rt.Kind == kind {
			return rt, true
		}
	}
	return models.ResourceType{}, false
}

// ReadOptions narrows what a reader fetches.
type ReadOptions struct {
	// API, when set, limits child reads (operations, policies, schemas, ...)
	// to that API. The API list itself is always complete.
	API string
}

// Source reads configuration entities from one API Management service.
type Source struct {
	client *Client
	logger *slog.Logger
}

// NewSource creates a Source on top of a Client.
func NewSource(client *Client, logger *slog.Logger) *Source {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Source{client: client, logger: logger}
}

// CheckService verifies the service is reachable and the credentials are accepted.
func (s *Source) CheckService(ctx context.Context) error {
	_, err := s.Describe(ctx)
	return err
}

// List returns every entity of a kind, paging through the collection.
func (s *Source) List(ctx context.Context, kind models.Kind, opts ReadOptions) ([]models.Entity, error) {
	rt, ok := LookupResourceType(kind)
	if !ok {
		return nil, fmt.Errorf("unknown resource type: %s", kind)
	}
	switch kind {
	case models.KindAPI:
		return s.readAPIs(ctx, opts)
	case models.KindProduct:
		return s.readProducts(ctx)
	case models.KindGlobalPolicy:
		return s.readServicePolicy(ctx)
	default:
		return s.readCollection(ctx, rt)
	}
}
