package models

// Resource represents a generic API Management payload (the "properties" object of an entity,
// or any nested map inside it).
type Resource map[string]interface{}

// Kind identifies one category of API Management configuration.
type Kind string

const (
	KindAPI                 Kind = "apis"
	KindAPIVersionSet       Kind = "apiVersionSets"
	KindAuthorizationServer Kind = "authorizationServers"
	KindBackend             Kind = "backends"
	KindLogger              Kind = "loggers"
	KindNamedValue          Kind = "namedValues"
	KindTag                 Kind = "tags"
	KindProduct             Kind = "products"
	KindGlobalPolicy        Kind = "globalServicePolicy"
)

// AllKinds lists every extracted kind in output order.
var AllKinds = []Kind{
	KindAPI,
	KindAPIVersionSet,
	KindAuthorizationServer,
	KindBackend,
	KindLogger,
	KindNamedValue,
	KindTag,
	KindProduct,
	KindGlobalPolicy,
}

// Child types of an API entity.
const (
	ChildOperation  = "operations"
	ChildSchema     = "schemas"
	ChildDiagnostic = "diagnostics"
)

// Entity is one configuration object read from the source service.
// It is a read-only snapshot once returned by a reader.
type Entity struct {
	ID         string            `json:"id"` // service-scoped short name
	Kind       Kind              `json:"kind"`
	Properties Resource          `json:"properties"`
	Policy     string            `json:"policy,omitempty"` // raw policy XML, if any
	Links      map[Kind][]string `json:"links,omitempty"`  // membership ids by kind (product→apis, api→tags, ...)
	Children   []Child           `json:"children,omitempty"`
}

// Child is a sub-resource of an entity (API operations, schemas, diagnostics).
type Child struct {
	Type       string   `json:"type"`
	ID         string   `json:"id"`
	Properties Resource `json:"properties"`
	Policy     string   `json:"policy,omitempty"`
}

// StringProperty returns a top-level string property, or "" when absent.
func (e Entity) StringProperty(key string) string {
	if v, ok := e.Properties[key].(string); ok {
		return v
	}
	return ""
}

// ChildrenOfType returns the children of the given type, in read order.
func (e Entity) ChildrenOfType(t string) []Child {
	var out []Child
	for _, c := range e.Children {
		if c.Type == t {
			out = append(out, c)
		}
	}
	return out
}

// ResourceType describes how a kind is exposed by the management API and in templates.
type ResourceType struct {
	Kind       Kind   `json:"kind"`
	Label      string `json:"label"`      // Human-readable: "API Version Sets"
	Collection string `json:"collection"` // path segment under the service: "apiVersionSets"
	ARMType    string `json:"arm_type"`   // "Microsoft.ApiManagement/service/apiVersionSets"
}
