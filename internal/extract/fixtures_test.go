package extract

import (
	"context"
	"fmt"
	"sync"

	"github.com/rflorenc/apim-template-extractor/internal/models"
	"github.com/rflorenc/apim-template-extractor/internal/platform"
)

const armPrefix = "/subscriptions/sub/resourceGroups/rg/providers/Microsoft.ApiManagement/service/contoso"

// fakeSource serves a fixed universe. Scoped reads strip the children of
// other APIs, like the HTTP readers do.
type fakeSource struct {
	mu       sync.Mutex
	entities Universe
	fail     map[models.Kind]error
	calls    []models.Kind
}

func (f *fakeSource) List(ctx context.Context, kind models.Kind, opts platform.ReadOptions) ([]models.Entity, error) {
	f.mu.Lock()
	f.calls = append(f.calls, kind)
	f.mu.Unlock()
	if err := f.fail[kind]; err != nil {
		return nil, err
	}
	out := make([]models.Entity, 0, len(f.entities[kind]))
	for _, e := range f.entities[kind] {
		if kind == models.KindAPI && opts.API != "" && e.ID != opts.API {
			e.Children = nil
			e.Policy = ""
		}
		out = append(out, e)
	}
	return out, nil
}

func entity(kind models.Kind, id string, props models.Resource) models.Entity {
	if props == nil {
		props = models.Resource{}
	}
	return models.Entity{ID: id, Kind: kind, Properties: props}
}

const (
	echoPolicy = `<policies>
  <inbound>
    <base />
    <set-header name="x-key" exists-action="override"><value>{{BackendKey}}</value></set-header>
    <set-backend-service backend-id="b1" />
  </inbound>
</policies>`
	starterPolicy = `<policies><inbound><set-header name="x-product"><value>{{BackendKey}}</value></set-header></inbound></policies>`
)

// tenant is a service with two APIs and three products:
// starter{echo}, unlimited{echo, orders}, partner{orders}.
func tenant() Universe {
	echo := entity(models.KindAPI, "echo", models.Resource{
		"displayName":     "Echo",
		"path":            "echo",
		"protocols":       []interface{}{"https"},
		"isCurrent":       true,
		"apiVersionSetId": armPrefix + "/apiVersionSets/vs1",
		"authenticationSettings": map[string]interface{}{
			"oAuth2": map[string]interface{}{"authorizationServerId": "oauth"},
		},
	})
	echo.Policy = echoPolicy
	echo.Children = []models.Child{
		{Type: models.ChildSchema, ID: "s1", Properties: models.Resource{"contentType": "application/json"}},
		{Type: models.ChildOperation, ID: "get", Properties: models.Resource{
			"method": "GET", "urlTemplate": "/",
			"request": map[string]interface{}{
				"representations": []interface{}{map[string]interface{}{"contentType": "application/json", "schemaId": "s1"}},
			},
		}, Policy: `<policies><inbound><base /></inbound></policies>`},
		{Type: models.ChildDiagnostic, ID: "applicationinsights", Properties: models.Resource{
			"loggerId": armPrefix + "/loggers/ai",
		}},
	}
	echo.Links = map[models.Kind][]string{models.KindTag: {"public"}}

	orders := entity(models.KindAPI, "orders", models.Resource{"displayName": "Orders", "path": "orders"})
	orders.Children = []models.Child{{Type: models.ChildOperation, ID: "list", Properties: models.Resource{"method": "GET"}}}

	starter := entity(models.KindProduct, "starter", models.Resource{"displayName": "Starter", "state": "published"})
	starter.Policy = starterPolicy
	starter.Links = map[models.Kind][]string{models.KindAPI: {"echo"}, models.KindTag: {"public"}}
	unlimited := entity(models.KindProduct, "unlimited", models.Resource{"displayName": "Unlimited"})
	unlimited.Links = map[models.Kind][]string{models.KindAPI: {"echo", "orders"}}
	partner := entity(models.KindProduct, "partner", models.Resource{"displayName": "Partner"})
	partner.Links = map[models.Kind][]string{models.KindAPI: {"orders"}}

	return Universe{
		models.KindAPI: {echo, orders},
		models.KindAPIVersionSet: {
			entity(models.KindAPIVersionSet, "vs1", models.Resource{"displayName": "Echo", "versioningScheme": "Segment"}),
		},
		models.KindAuthorizationServer: {
			entity(models.KindAuthorizationServer, "oauth", models.Resource{"displayName": "OAuth", "authorizationEndpoint": "https://login.example.com/authorize"}),
		},
		models.KindBackend: {
			entity(models.KindBackend, "b1", models.Resource{
				"url": "https://backend.example.com", "protocol": "http",
				"credentials": map[string]interface{}{"header": map[string]interface{}{"x-key": []interface{}{"{{BackendKey}}"}}},
			}),
		},
		models.KindLogger: {
			entity(models.KindLogger, "ai", models.Resource{
				"loggerType":  "applicationInsights",
				"credentials": map[string]interface{}{"instrumentationKey": "{{Logger-Credentials-ai}}"},
			}),
		},
		models.KindNamedValue: {
			entity(models.KindNamedValue, "nv1", models.Resource{"displayName": "BackendKey", "value": "s3cret"}),
			entity(models.KindNamedValue, "nv2", models.Resource{"displayName": "Logger-Credentials-ai", "value": "key", "secret": true}),
			entity(models.KindNamedValue, "nv3", models.Resource{"displayName": "Unused", "value": "x"}),
		},
		models.KindTag: {
			entity(models.KindTag, "public", models.Resource{"displayName": "Public"}),
			entity(models.KindTag, "internal", models.Resource{"displayName": "Internal"}),
		},
		models.KindProduct: {starter, unlimited, partner},
	}
}

func fullOptions() Options {
	return Options{SourceService: "contoso", DestinationService: "contoso-prod", Workers: 2}
}

func findResource(t *models.Template, name string) *models.ResourceTemplate {
	for _, r := range t.Resources {
		if r.Name == name {
			return r
		}
	}
	return nil
}

func resourceNames(t *models.Template) []string {
	names := make([]string, 0, len(t.Resources))
	for _, r := range t.Resources {
		names = append(names, r.Name)
	}
	return names
}

// graph renders every resource's name and dependsOn for comparisons.
func graph(b *Bundle) []string {
	var out []string
	all := append([]*models.Template(nil), b.Templates...)
	if b.Master != nil {
		all = append(all, b.Master)
	}
	for _, t := range all {
		for _, r := range t.Resources {
			out = append(out, fmt.Sprintf("%s %s <- %v %v", t.FileName, r.Name, r.DependsOn, r.Requires))
		}
	}
	return out
}
