package models

// Schema URLs and versions used by every generated template.
const (
	DeploymentTemplateSchema   = "https://schema.management.azure.com/schemas/2015-01-01/deploymentTemplate.json#"
	DeploymentParametersSchema = "https://schema.management.azure.com/schemas/2015-01-01/deploymentParameters.json#"
	ContentVersion             = "1.0.0.0"
	APIManagementAPIVersion    = "2019-01-01"
	DeploymentsAPIVersion      = "2018-01-01"
)

// ResourceTemplate is one declarative resource inside a Template.
type ResourceTemplate struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	APIVersion string   `json:"apiVersion"`
	Properties Resource `json:"properties"`
	DependsOn  []string `json:"dependsOn,omitempty"`

	// Kind and EntityID identify the entity this resource was built from.
	Kind     Kind   `json:"-"`
	EntityID string `json:"-"`
	// ResourceID is the resourceId() expression other resources use to depend on this one.
	ResourceID string `json:"-"`
	// Refs are cross-kind references recorded by the builder, resolved by the rewriter.
	Refs []Ref `json:"-"`
	// Requires holds every resolved dependency edge (same template or not), in discovery order.
	Requires []Edge `json:"-"`
}

// AddDependsOn appends a dependsOn entry unless it is already present.
func (r *ResourceTemplate) AddDependsOn(resourceID string) {
	for _, d := range r.DependsOn {
		if d == resourceID {
			return
		}
	}
	r.DependsOn = append(r.DependsOn, resourceID)
}

// AddRequires appends a dependency edge unless it is already present.
func (r *ResourceTemplate) AddRequires(e Edge) {
	for _, x := range r.Requires {
		if x == e {
			return
		}
	}
	r.Requires = append(r.Requires, e)
}

// RefStyle says how a resolved reference is written back into the referring property.
type RefStyle int

const (
	// RefDependOnly adds a dependency edge but leaves properties untouched
	// (policy text, membership links).
	RefDependOnly RefStyle = iota
	// RefResourceID replaces the property with the target's resourceId() expression.
	RefResourceID
	// RefName replaces the property with the target's entity id.
	RefName
	// RefLink is a dependency that is the resource's only reason to exist
	// (product/API membership, tag association). When the target is dropped
	// from a scoped extraction the resource goes with it.
	RefLink
)

// Ref is an unresolved reference from one resource to an entity of another kind.
type Ref struct {
	Kind Kind   // target kind
	Key  string // target id, or an alias such as a named value's display name
	// Path locates the property to rewrite (nil for RefDependOnly).
	Path  []string
	Style RefStyle
	// Source describes where the reference was found, for flags and error messages.
	Source string
}

// Edge is a resolved dependency on another generated resource.
type Edge struct {
	Kind       Kind
	EntityID   string
	ResourceID string
}

// TemplateParameter is one entry in a template's parameters declaration.
type TemplateParameter struct {
	Type         string      `json:"type,omitempty"`
	DefaultValue interface{} `json:"defaultValue,omitempty"`
	Value        interface{} `json:"value,omitempty"`
}

// Template is a deployment template (or parameters file) produced for one kind.
type Template struct {
	Schema         string                       `json:"$schema"`
	ContentVersion string                       `json:"contentVersion"`
	Parameters     map[string]TemplateParameter `json:"parameters"`
	Variables      map[string]interface{}       `json:"variables,omitempty"`
	Resources      []*ResourceTemplate          `json:"resources"`
	Outputs        map[string]interface{}       `json:"outputs,omitempty"`

	Kind        Kind         `json:"-"`
	FileName    string       `json:"-"`
	PolicyFiles []PolicyFile `json:"-"`
}

// NewTemplate returns an empty deployment template taking the given string parameters.
func NewTemplate(kind Kind, fileName string, params ...string) *Template {
	t := &Template{
		Schema:         DeploymentTemplateSchema,
		ContentVersion: ContentVersion,
		Parameters:     make(map[string]TemplateParameter),
		Variables:      map[string]interface{}{},
		Resources:      []*ResourceTemplate{},
		Outputs:        map[string]interface{}{},
		Kind:           kind,
		FileName:       fileName,
	}
	for _, p := range params {
		t.Parameters[p] = TemplateParameter{Type: "string"}
	}
	return t
}

// NewParametersTemplate returns an empty deployment parameters file.
func NewParametersTemplate(fileName string) *Template {
	return &Template{
		Schema:         DeploymentParametersSchema,
		ContentVersion: ContentVersion,
		Parameters:     make(map[string]TemplateParameter),
		FileName:       fileName,
	}
}

// Empty reports whether the template declares no resources.
func (t *Template) Empty() bool {
	return len(t.Resources) == 0
}

// PolicyFile is a policy document scheduled to be written next to the templates.
type PolicyFile struct {
	Name    string
	Content string
}

// Flag records a reference that was dropped instead of failing the run.
type Flag struct {
	Kind     Kind   `json:"kind"`
	EntityID string `json:"entity_id"`
	Resource string `json:"resource"`
	Target   Kind   `json:"target"`
	Key      string `json:"key"`
	Source   string `json:"source"`
	Reason   string `json:"reason"`
}
