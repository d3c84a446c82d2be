// Package naming derives output file names, template resource names and resourceId
// expressions from the source service name and entity ids. Every function is pure.
package naming

import (
	"fmt"
	"strings"

	"github.com/rflorenc/apim-template-extractor/internal/models"
)

// Template parameter names shared by every generated template.
const (
	ParamServiceName      = "ApimServiceName"
	ParamLinkedBaseURL    = "LinkedTemplatesBaseUrl"
	ParamLinkedQuery      = "LinkedTemplatesUrlQueryString"
	ParamPolicyXMLBaseURL = "PolicyXMLBaseUrl"
)

// ARM resource types.
const (
	TypeService             = "Microsoft.ApiManagement/service"
	TypeAPI                 = "Microsoft.ApiManagement/service/apis"
	TypeAPIOperation        = "Microsoft.ApiManagement/service/apis/operations"
	TypeAPIOperationPolicy  = "Microsoft.ApiManagement/service/apis/operations/policies"
	TypeAPIPolicy           = "Microsoft.ApiManagement/service/apis/policies"
	TypeAPISchema           = "Microsoft.ApiManagement/service/apis/schemas"
	TypeAPIDiagnostic       = "Microsoft.ApiManagement/service/apis/diagnostics"
	TypeAPITag              = "Microsoft.ApiManagement/service/apis/tags"
	TypeAPIVersionSet       = "Microsoft.ApiManagement/service/apiVersionSets"
	TypeAuthorizationServer = "Microsoft.ApiManagement/service/authorizationServers"
	TypeBackend             = "Microsoft.ApiManagement/service/backends"
	TypeLogger              = "Microsoft.ApiManagement/service/loggers"
	TypeNamedValue          = "Microsoft.ApiManagement/service/properties"
	TypeTag                 = "Microsoft.ApiManagement/service/tags"
	TypeProduct             = "Microsoft.ApiManagement/service/products"
	TypeProductAPI          = "Microsoft.ApiManagement/service/products/apis"
	TypeProductPolicy       = "Microsoft.ApiManagement/service/products/policies"
	TypeProductTag          = "Microsoft.ApiManagement/service/products/tags"
	TypeServicePolicy       = "Microsoft.ApiManagement/service/policies"
	TypeDeployment          = "Microsoft.Resources/deployments"
)

// PolicyName is the fixed id of every policy sub-resource.
const PolicyName = "policy"

// FileNames maps each kind to its output file, derived once from the service name.
type FileNames struct {
	APIs                 string `json:"apis"`
	APIVersionSets       string `json:"apiVersionSets"`
	AuthorizationServers string `json:"authorizationServers"`
	Backends             string `json:"backends"`
	Loggers              string `json:"loggers"`
	NamedValues          string `json:"namedValues"`
	Tags                 string `json:"tags"`
	Products             string `json:"products"`
	GlobalServicePolicy  string `json:"globalServicePolicy"`
	Parameters           string `json:"parameters"`
	LinkedMaster         string `json:"linkedMaster"`
}

// GenerateFileNames returns the file name set for a service.
func GenerateFileNames(baseFileName string) FileNames {
	return FileNames{
		APIs:                 fmt.Sprintf("%s-apis.template.json", baseFileName),
		APIVersionSets:       fmt.Sprintf("%s-apiVersionSets.template.json", baseFileName),
		AuthorizationServers: fmt.Sprintf("%s-authorizationServers.template.json", baseFileName),
		Backends:             fmt.Sprintf("%s-backends.template.json", baseFileName),
		Loggers:              fmt.Sprintf("%s-loggers.template.json", baseFileName),
		NamedValues:          fmt.Sprintf("%s-namedValues.template.json", baseFileName),
		Tags:                 fmt.Sprintf("%s-tags.template.json", baseFileName),
		Products:             fmt.Sprintf("%s-products.template.json", baseFileName),
		GlobalServicePolicy:  fmt.Sprintf("%s-globalServicePolicy.template.json", baseFileName),
		Parameters:           fmt.Sprintf("%s-parameters.json", baseFileName),
		LinkedMaster:         fmt.Sprintf("%s-master.template.json", baseFileName),
	}
}

// ForKind returns the file name of a kind's template.
func (f FileNames) ForKind(kind models.Kind) string {
	switch kind {
	case models.KindAPI:
		return f.APIs
	case models.KindAPIVersionSet:
		return f.APIVersionSets
	case models.KindAuthorizationServer:
		return f.AuthorizationServers
	case models.KindBackend:
		return f.Backends
	case models.KindLogger:
		return f.Loggers
	case models.KindNamedValue:
		return f.NamedValues
	case models.KindTag:
		return f.Tags
	case models.KindProduct:
		return f.Products
	case models.KindGlobalPolicy:
		return f.GlobalServicePolicy
	}
	return ""
}

// APIFileName is the API template's file name: one file for every API, or a
// per-API file for single-API extraction.
func APIFileName(singleAPIName, baseFileName string) string {
	if singleAPIName == "" {
		return fmt.Sprintf("%s-apis.template.json", baseFileName)
	}
	return fmt.Sprintf("%s-%s-api.template.json", baseFileName, singleAPIName)
}

// ResourceName returns the templated name of a resource whose path under the
// service is segments, e.g. "[concat(parameters('ApimServiceName'), '/echo-api/get')]".
func ResourceName(segments ...string) string {
	return fmt.Sprintf("[concat(parameters('%s'), '/%s')]", ParamServiceName, escape(strings.Join(segments, "/")))
}

// ResourceID returns the resourceId() expression for a resource of armType.
func ResourceID(armType string, segments ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[resourceId('%s', parameters('%s')", armType, ParamServiceName)
	for _, s := range segments {
		fmt.Fprintf(&b, ", '%s'", escape(s))
	}
	b.WriteString(")]")
	return b.String()
}

// DeploymentName is the nested deployment name wrapping a kind's template.
func DeploymentName(kind models.Kind) string {
	return string(kind) + "Template"
}

// DeploymentID is the resourceId() expression of a nested deployment.
func DeploymentID(kind models.Kind) string {
	return fmt.Sprintf("[resourceId('%s', '%s')]", TypeDeployment, DeploymentName(kind))
}

// LinkedTemplateURI builds the templateLink uri of a nested deployment.
func LinkedTemplateURI(fileName string, withQueryString bool) string {
	if withQueryString {
		return fmt.Sprintf("[concat(parameters('%s'), '/%s', parameters('%s'))]", ParamLinkedBaseURL, fileName, ParamLinkedQuery)
	}
	return fmt.Sprintf("[concat(parameters('%s'), '/%s')]", ParamLinkedBaseURL, fileName)
}

// PolicyLink is the rawxml-link value pointing at an externalized policy file.
func PolicyLink(fileName string) string {
	return fmt.Sprintf("[concat(parameters('%s'), '/%s')]", ParamPolicyXMLBaseURL, fileName)
}

// Policy file names. Each kind has its own suffix, and operation policies
// sit in a directory per API, so ids containing "-" cannot collide.

func APIPolicyFileName(apiID string) string {
	return fmt.Sprintf("%s-apiPolicy.xml", apiID)
}

func OperationPolicyFileName(apiID, operationID string) string {
	return fmt.Sprintf("%s/%s-operationPolicy.xml", apiID, operationID)
}

func ProductPolicyFileName(productID string) string {
	return fmt.Sprintf("%s-productPolicy.xml", productID)
}

func GlobalPolicyFileName() string {
	return "globalServicePolicy.xml"
}

// ValidID reports whether id can be embedded in names without colliding with
// another id of the same kind.
func ValidID(id string) bool {
	return id != "" && !strings.Contains(id, "/")
}

// IDFromResourceID returns the last path segment of an ARM id such as
// "/subscriptions/.../service/x/apiVersionSets/vs1".
func IDFromResourceID(armID string) string {
	armID = strings.TrimSuffix(armID, "/")
	if i := strings.LastIndex(armID, "/"); i >= 0 {
		return armID[i+1:]
	}
	return armID
}

// escape doubles single quotes for ARM string literals.
func escape(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
