package extract

import (
	"log/slog"
	"strings"

	"github.com/rflorenc/apim-template-extractor/internal/models"
	"github.com/rflorenc/apim-template-extractor/internal/naming"
	"github.com/rflorenc/apim-template-extractor/internal/policy"
)

// builder converts entities into resource templates. Cross-kind names are
// recorded as Refs and left for the rewriter.
type builder struct {
	policyBaseURL string
	logger        *slog.Logger
}

// newTemplate returns the empty template of a kind.
func (b *builder) newTemplate(h handler, fileName string) *models.Template {
	params := []string{naming.ParamServiceName}
	if h.policies && b.policyBaseURL != "" {
		params = append(params, naming.ParamPolicyXMLBaseURL)
	}
	return models.NewTemplate(h.kind, fileName, params...)
}

// build runs every handler over the universe, in kind order.
func (b *builder) build(u Universe, fileFor func(models.Kind) string) ([]*models.Template, error) {
	templates := make([]*models.Template, 0, len(handlers))
	for _, h := range handlers {
		t := b.newTemplate(h, fileFor(h.kind))
		for _, e := range u[h.kind] {
			if err := h.build(b, e, t); err != nil {
				return nil, err
			}
		}
		b.logger.Info("built template", "stage", "build", "kind", h.kind, "count", len(t.Resources), "file", t.FileName)
		templates = append(templates, t)
	}
	return templates, nil
}

// references builds e into a scratch template and returns every Ref its
// resources carry.
func (b *builder) references(e models.Entity) ([]models.Ref, error) {
	h, ok := lookupHandler(e.Kind)
	if !ok {
		return nil, nil
	}
	scratch := b.newTemplate(h, "")
	if err := h.build(b, e, scratch); err != nil {
		return nil, err
	}
	var refs []models.Ref
	for _, r := range scratch.Resources {
		refs = append(refs, r.Refs...)
	}
	return refs, nil
}

func newResource(kind models.Kind, entityID, armType string, segments ...string) *models.ResourceTemplate {
	return &models.ResourceTemplate{
		Name:       naming.ResourceName(segments...),
		Type:       armType,
		APIVersion: models.APIManagementAPIVersion,
		Properties: models.Resource{},
		Kind:       kind,
		EntityID:   entityID,
		ResourceID: naming.ResourceID(armType, segments...),
	}
}

// requireFields checks the id and the mandatory string properties of e.
func requireFields(e models.Entity, fields ...string) error {
	if !naming.ValidID(e.ID) {
		return models.InvalidEntity(e.Kind, e.ID, "id")
	}
	for _, f := range fields {
		if strings.TrimSpace(stringField(e.Properties, f)) == "" {
			return models.InvalidEntity(e.Kind, e.ID, f)
		}
	}
	return nil
}

// policyResource wraps a policy document. With a policy base URL the
// document is scheduled as a file and the resource links to it.
func (b *builder) policyResource(t *models.Template, kind models.Kind, entityID, armType, fileName, document string, segments ...string) *models.ResourceTemplate {
	r := newResource(kind, entityID, armType, segments...)
	if b.policyBaseURL != "" {
		r.Properties["format"] = "rawxml-link"
		r.Properties["value"] = naming.PolicyLink(fileName)
		t.PolicyFiles = append(t.PolicyFiles, models.PolicyFile{Name: fileName, Content: document})
	} else {
		r.Properties["format"] = "rawxml"
		r.Properties["value"] = document
	}
	r.Refs = append(r.Refs, policyRefs(document, fileName)...)
	return r
}

func policyRefs(document, source string) []models.Ref {
	found := policy.Inspect(document)
	var refs []models.Ref
	for _, nv := range found.NamedValues {
		refs = append(refs, models.Ref{Kind: models.KindNamedValue, Key: nv, Style: models.RefDependOnly, Source: source})
	}
	for _, id := range found.Backends {
		refs = append(refs, models.Ref{Kind: models.KindBackend, Key: id, Style: models.RefDependOnly, Source: source})
	}
	for _, id := range found.Loggers {
		refs = append(refs, models.Ref{Kind: models.KindLogger, Key: id, Style: models.RefDependOnly, Source: source})
	}
	return refs
}

// namedValueRefs finds {{name}} placeholders anywhere in a payload.
func namedValueRefs(props models.Resource) []models.Ref {
	var refs []models.Ref
	seen := make(map[string]bool)
	walkStrings(props, nil, func(path []string, s string) {
		for _, nv := range policy.NamedValues(s) {
			if seen[nv] {
				continue
			}
			seen[nv] = true
			refs = append(refs, models.Ref{
				Kind:   models.KindNamedValue,
				Key:    nv,
				Style:  models.RefDependOnly,
				Source: "properties." + strings.Join(path, "."),
			})
		}
	})
	return refs
}

func buildAPI(b *builder, e models.Entity, t *models.Template) error {
	if err := requireFields(e, "displayName", "path"); err != nil {
		return err
	}

	api := newResource(models.KindAPI, e.ID, naming.TypeAPI, e.ID)
	api.Properties = copyProperties(e.Properties)
	if vs := stringField(e.Properties, "apiVersionSetId"); vs != "" {
		api.Refs = append(api.Refs, models.Ref{
			Kind:   models.KindAPIVersionSet,
			Key:    naming.IDFromResourceID(vs),
			Path:   []string{"apiVersionSetId"},
			Style:  models.RefResourceID,
			Source: "apiVersionSetId",
		})
	}
	authPath := []string{"authenticationSettings", "oAuth2", "authorizationServerId"}
	if as := pathString(e.Properties, authPath...); as != "" {
		api.Refs = append(api.Refs, models.Ref{
			Kind:   models.KindAuthorizationServer,
			Key:    naming.IDFromResourceID(as),
			Path:   authPath,
			Style:  models.RefName,
			Source: strings.Join(authPath, "."),
		})
	}
	t.Resources = append(t.Resources, api)

	if e.Policy != "" {
		p := b.policyResource(t, models.KindAPI, e.ID, naming.TypeAPIPolicy,
			naming.APIPolicyFileName(e.ID), e.Policy, e.ID, naming.PolicyName)
		p.AddDependsOn(api.ResourceID)
		t.Resources = append(t.Resources, p)
	}

	schemas := make(map[string]string)
	for _, sc := range e.ChildrenOfType(models.ChildSchema) {
		if !naming.ValidID(sc.ID) {
			return models.InvalidEntity(models.KindAPI, e.ID+"/schemas/"+sc.ID, "id")
		}
		r := newResource(models.KindAPI, e.ID, naming.TypeAPISchema, e.ID, sc.ID)
		r.Properties = copyProperties(sc.Properties)
		r.AddDependsOn(api.ResourceID)
		schemas[sc.ID] = r.ResourceID
		t.Resources = append(t.Resources, r)
	}

	for _, op := range e.ChildrenOfType(models.ChildOperation) {
		if !naming.ValidID(op.ID) {
			return models.InvalidEntity(models.KindAPI, e.ID+"/operations/"+op.ID, "id")
		}
		r := newResource(models.KindAPI, e.ID, naming.TypeAPIOperation, e.ID, op.ID)
		r.Properties = copyProperties(op.Properties)
		r.AddDependsOn(api.ResourceID)
		walkStrings(op.Properties, nil, func(path []string, s string) {
			if len(path) > 0 && path[len(path)-1] == "schemaId" {
				if id, ok := schemas[s]; ok {
					r.AddDependsOn(id)
				}
			}
		})
		t.Resources = append(t.Resources, r)

		if op.Policy != "" {
			p := b.policyResource(t, models.KindAPI, e.ID, naming.TypeAPIOperationPolicy,
				naming.OperationPolicyFileName(e.ID, op.ID), op.Policy, e.ID, op.ID, naming.PolicyName)
			p.AddDependsOn(r.ResourceID)
			t.Resources = append(t.Resources, p)
		}
	}

	for _, d := range e.ChildrenOfType(models.ChildDiagnostic) {
		if !naming.ValidID(d.ID) {
			return models.InvalidEntity(models.KindAPI, e.ID+"/diagnostics/"+d.ID, "id")
		}
		r := newResource(models.KindAPI, e.ID, naming.TypeAPIDiagnostic, e.ID, d.ID)
		r.Properties = copyProperties(d.Properties)
		r.AddDependsOn(api.ResourceID)
		if l := stringField(d.Properties, "loggerId"); l != "" {
			r.Refs = append(r.Refs, models.Ref{
				Kind:   models.KindLogger,
				Key:    naming.IDFromResourceID(l),
				Path:   []string{"loggerId"},
				Style:  models.RefResourceID,
				Source: "diagnostics/" + d.ID,
			})
		}
		t.Resources = append(t.Resources, r)
	}

	for _, tag := range e.Links[models.KindTag] {
		r := newResource(models.KindAPI, e.ID, naming.TypeAPITag, e.ID, tag)
		r.AddDependsOn(api.ResourceID)
		r.Refs = append(r.Refs, models.Ref{Kind: models.KindTag, Key: tag, Style: models.RefLink, Source: "tags"})
		t.Resources = append(t.Resources, r)
	}
	return nil
}

func buildAPIVersionSet(b *builder, e models.Entity, t *models.Template) error {
	if err := requireFields(e, "displayName", "versioningScheme"); err != nil {
		return err
	}
	r := newResource(models.KindAPIVersionSet, e.ID, naming.TypeAPIVersionSet, e.ID)
	r.Properties = copyProperties(e.Properties)
	t.Resources = append(t.Resources, r)
	return nil
}

func buildAuthorizationServer(b *builder, e models.Entity, t *models.Template) error {
	if err := requireFields(e, "displayName", "authorizationEndpoint"); err != nil {
		return err
	}
	r := newResource(models.KindAuthorizationServer, e.ID, naming.TypeAuthorizationServer, e.ID)
	r.Properties = copyProperties(e.Properties)
	t.Resources = append(t.Resources, r)
	return nil
}

func buildBackend(b *builder, e models.Entity, t *models.Template) error {
	if err := requireFields(e, "url", "protocol"); err != nil {
		return err
	}
	r := newResource(models.KindBackend, e.ID, naming.TypeBackend, e.ID)
	r.Properties = copyProperties(e.Properties)
	r.Refs = namedValueRefs(e.Properties)
	t.Resources = append(t.Resources, r)
	return nil
}

func buildLogger(b *builder, e models.Entity, t *models.Template) error {
	if err := requireFields(e, "loggerType"); err != nil {
		return err
	}
	r := newResource(models.KindLogger, e.ID, naming.TypeLogger, e.ID)
	r.Properties = copyProperties(e.Properties)
	r.Refs = namedValueRefs(e.Properties)
	t.Resources = append(t.Resources, r)
	return nil
}

func buildNamedValue(b *builder, e models.Entity, t *models.Template) error {
	if err := requireFields(e, "displayName"); err != nil {
		return err
	}
	if boolField(e.Properties, "secret") && stringField(e.Properties, "value") == "" {
		b.logger.Warn("secret named value has no readable value", "stage", "build", "kind", e.Kind, "id", e.ID)
	}
	r := newResource(models.KindNamedValue, e.ID, naming.TypeNamedValue, e.ID)
	r.Properties = copyProperties(e.Properties)
	t.Resources = append(t.Resources, r)
	return nil
}

func buildTag(b *builder, e models.Entity, t *models.Template) error {
	if err := requireFields(e, "displayName"); err != nil {
		return err
	}
	r := newResource(models.KindTag, e.ID, naming.TypeTag, e.ID)
	r.Properties = copyProperties(e.Properties)
	t.Resources = append(t.Resources, r)
	return nil
}

func buildProduct(b *builder, e models.Entity, t *models.Template) error {
	if err := requireFields(e, "displayName"); err != nil {
		return err
	}
	product := newResource(models.KindProduct, e.ID, naming.TypeProduct, e.ID)
	product.Properties = copyProperties(e.Properties)
	t.Resources = append(t.Resources, product)

	if e.Policy != "" {
		p := b.policyResource(t, models.KindProduct, e.ID, naming.TypeProductPolicy,
			naming.ProductPolicyFileName(e.ID), e.Policy, e.ID, naming.PolicyName)
		p.AddDependsOn(product.ResourceID)
		t.Resources = append(t.Resources, p)
	}

	for _, api := range e.Links[models.KindAPI] {
		r := newResource(models.KindProduct, e.ID, naming.TypeProductAPI, e.ID, api)
		r.AddDependsOn(product.ResourceID)
		r.Refs = append(r.Refs, models.Ref{Kind: models.KindAPI, Key: api, Style: models.RefLink, Source: "apis"})
		t.Resources = append(t.Resources, r)
	}
	for _, tag := range e.Links[models.KindTag] {
		r := newResource(models.KindProduct, e.ID, naming.TypeProductTag, e.ID, tag)
		r.AddDependsOn(product.ResourceID)
		r.Refs = append(r.Refs, models.Ref{Kind: models.KindTag, Key: tag, Style: models.RefLink, Source: "tags"})
		t.Resources = append(t.Resources, r)
	}
	return nil
}

func buildGlobalPolicy(b *builder, e models.Entity, t *models.Template) error {
	if strings.TrimSpace(e.Policy) == "" {
		return models.InvalidEntity(models.KindGlobalPolicy, e.ID, "policy")
	}
	r := b.policyResource(t, models.KindGlobalPolicy, e.ID, naming.TypeServicePolicy,
		naming.GlobalPolicyFileName(), e.Policy, naming.PolicyName)
	t.Resources = append(t.Resources, r)
	return nil
}
