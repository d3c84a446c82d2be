package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rflorenc/apim-template-extractor/internal/logging"
	"github.com/rflorenc/apim-template-extractor/internal/models"
	"github.com/rflorenc/apim-template-extractor/internal/naming"
)

func TestScope_NoAPI(t *testing.T) {
	u := tenant()
	got, err := Scope(u, "", nil)
	require.NoError(t, err)
	assert.Equal(t, u.IDs(), got.IDs())
}

func TestScope_Echo(t *testing.T) {
	got, err := Scope(tenant(), "echo", logging.Nop())
	require.NoError(t, err)

	assert.Equal(t, map[models.Kind][]string{
		models.KindAPI:                 {"echo"},
		models.KindAPIVersionSet:       {"vs1"},
		models.KindAuthorizationServer: {"oauth"},
		models.KindBackend:             {"b1"},
		models.KindLogger:              {"ai"},
		models.KindNamedValue:          {"nv1", "nv2"},
		models.KindTag:                 {"public"},
		models.KindProduct:             {"starter", "unlimited"},
	}, got.IDs())
}

func TestScope_Orders(t *testing.T) {
	got, err := Scope(tenant(), "orders", logging.Nop())
	require.NoError(t, err)

	assert.Equal(t, map[models.Kind][]string{
		models.KindAPI:     {"orders"},
		models.KindProduct: {"unlimited", "partner"},
	}, got.IDs(), "products never pull in their other APIs")
}

func TestScope_ProductTagsInScope(t *testing.T) {
	u := tenant()
	u[models.KindProduct][2].Links[models.KindTag] = []string{"internal"}

	got, err := Scope(u, "orders", logging.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{"internal"}, got.IDs()[models.KindTag])
}

func TestScope_Dedupe(t *testing.T) {
	u := tenant()
	u[models.KindNamedValue] = append(u[models.KindNamedValue], u[models.KindNamedValue][0])

	got, err := Scope(u, "echo", logging.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{"nv1", "nv2"}, got.IDs()[models.KindNamedValue])
}

func TestScope_NamedValueByID(t *testing.T) {
	u := tenant()
	u[models.KindAPI][1].Policy = `<policies><inbound><set-variable name="v" value="{{nv3}}" /></inbound></policies>`

	got, err := Scope(u, "orders", logging.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{"nv3"}, got.IDs()[models.KindNamedValue])
}

func TestScope_UnknownAPI(t *testing.T) {
	_, err := Scope(tenant(), "missing", logging.Nop())
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindUnresolvedReference))
	assert.Contains(t, err.Error(), "apis/missing")
}

func TestScope_InvalidInScopeEntity(t *testing.T) {
	u := tenant()
	u[models.KindBackend][0].Properties = models.Resource{"protocol": "http"}

	_, err := Scope(u, "echo", logging.Nop())
	assert.True(t, models.IsKind(err, models.KindInvalidEntity))

	_, err = Scope(u, "orders", logging.Nop())
	assert.NoError(t, err, "out-of-scope entities are never built")
}

func TestIndex_Lookup(t *testing.T) {
	idx := newIndex(tenant())

	e, ok := idx.lookup(models.KindNamedValue, "BackendKey")
	require.True(t, ok)
	assert.Equal(t, "nv1", e.ID)

	e, ok = idx.lookup(models.KindNamedValue, "nv2")
	require.True(t, ok)
	assert.Equal(t, "Logger-Credentials-ai", e.StringProperty("displayName"))

	_, ok = idx.lookup(models.KindBackend, "BackendKey")
	assert.False(t, ok, "aliases are per kind")
}

func TestCheckAcyclic(t *testing.T) {
	a := &models.ResourceTemplate{ResourceID: "a"}
	b := &models.ResourceTemplate{ResourceID: "b"}
	c := &models.ResourceTemplate{ResourceID: "c"}
	a.AddDependsOn("b")
	b.AddRequires(models.Edge{ResourceID: "c"})

	tmpl := &models.Template{Resources: []*models.ResourceTemplate{a, b, c}}
	assert.NoError(t, checkAcyclic([]*models.Template{tmpl}))

	c.AddDependsOn("a")
	err := checkAcyclic([]*models.Template{tmpl})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestRewriter_UndeclaredDependency(t *testing.T) {
	u := Universe{
		models.KindTag:        {entity(models.KindTag, "t1", models.Resource{"displayName": "T"})},
		models.KindNamedValue: {entity(models.KindNamedValue, "n1", models.Resource{"displayName": "N"})},
	}
	tags := models.NewTemplate(models.KindTag, "tags.json")
	r := newResource(models.KindTag, "t1", naming.TypeTag, "t1")
	r.Refs = []models.Ref{{Kind: models.KindNamedValue, Key: "N", Source: "test"}}
	tags.Resources = append(tags.Resources, r)
	nvs := models.NewTemplate(models.KindNamedValue, "nv.json")
	nvs.Resources = append(nvs.Resources, newResource(models.KindNamedValue, "n1", naming.TypeNamedValue, "n1"))

	templates := []*models.Template{tags, nvs}
	err := newRewriter(u, u, templates, false, logging.Nop()).rewrite(templates)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "may not depend on")
}

func TestRewriter_SameTemplateEdgeInDependsOn(t *testing.T) {
	u := Universe{models.KindTag: {
		entity(models.KindTag, "t1", models.Resource{"displayName": "T1"}),
		entity(models.KindTag, "t2", models.Resource{"displayName": "T2"}),
	}}
	tags := models.NewTemplate(models.KindTag, "tags.json")
	t1 := newResource(models.KindTag, "t1", naming.TypeTag, "t1")
	t2 := newResource(models.KindTag, "t2", naming.TypeTag, "t2")
	t2.Refs = []models.Ref{{Kind: models.KindTag, Key: "t1", Source: "test"}}
	tags.Resources = append(tags.Resources, t1, t2)

	templates := []*models.Template{tags}
	require.NoError(t, newRewriter(u, u, templates, false, logging.Nop()).rewrite(templates))
	assert.Equal(t, []string{t1.ResourceID}, t2.DependsOn)
	assert.Len(t, t2.Requires, 1)
}
