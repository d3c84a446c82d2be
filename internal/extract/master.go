package extract

import (
	"fmt"

	"github.com/rflorenc/apim-template-extractor/internal/models"
	"github.com/rflorenc/apim-template-extractor/internal/naming"
)

// parametersTemplate carries the values every template is deployed with.
func parametersTemplate(opts Options, fileName string) *models.Template {
	t := models.NewParametersTemplate(fileName)
	t.Parameters[naming.ParamServiceName] = models.TemplateParameter{Value: opts.DestinationService}
	if opts.LinkedTemplatesBaseURL != "" {
		t.Parameters[naming.ParamLinkedBaseURL] = models.TemplateParameter{Value: opts.LinkedTemplatesBaseURL}
	}
	if opts.LinkedTemplatesURLQueryString != "" {
		t.Parameters[naming.ParamLinkedQuery] = models.TemplateParameter{Value: opts.LinkedTemplatesURLQueryString}
	}
	if opts.PolicyXMLBaseURL != "" {
		t.Parameters[naming.ParamPolicyXMLBaseURL] = models.TemplateParameter{Value: opts.PolicyXMLBaseURL}
	}
	return t
}

// masterTemplate links every non-empty template through a nested
// deployment. A deployment depends on the deployment of every kind its
// resources require.
func masterTemplate(opts Options, templates []*models.Template, fileName string) (*models.Template, error) {
	params := []string{naming.ParamServiceName, naming.ParamLinkedBaseURL}
	withQuery := opts.LinkedTemplatesURLQueryString != ""
	if withQuery {
		params = append(params, naming.ParamLinkedQuery)
	}
	if opts.PolicyXMLBaseURL != "" {
		params = append(params, naming.ParamPolicyXMLBaseURL)
	}
	master := models.NewTemplate("", fileName, params...)

	deployed := make(map[models.Kind]bool)
	for _, t := range templates {
		if !t.Empty() {
			deployed[t.Kind] = true
		}
	}

	kindDeps := make(map[models.Kind]map[models.Kind]bool)
	for _, t := range templates {
		if t.Empty() {
			continue
		}
		for _, r := range t.Resources {
			for _, e := range r.Requires {
				if e.Kind == t.Kind {
					continue
				}
				if !deployed[e.Kind] {
					return nil, fmt.Errorf("assemble: %s requires %s, which has no template", t.Kind, e.Kind)
				}
				if kindDeps[t.Kind] == nil {
					kindDeps[t.Kind] = make(map[models.Kind]bool)
				}
				kindDeps[t.Kind][e.Kind] = true
			}
		}
	}

	for _, t := range templates {
		if t.Empty() {
			continue
		}
		nested := map[string]interface{}{
			naming.ParamServiceName: map[string]interface{}{
				"value": fmt.Sprintf("[parameters('%s')]", naming.ParamServiceName),
			},
		}
		if _, ok := t.Parameters[naming.ParamPolicyXMLBaseURL]; ok {
			nested[naming.ParamPolicyXMLBaseURL] = map[string]interface{}{
				"value": fmt.Sprintf("[parameters('%s')]", naming.ParamPolicyXMLBaseURL),
			}
		}
		d := &models.ResourceTemplate{
			Name:       naming.DeploymentName(t.Kind),
			Type:       naming.TypeDeployment,
			APIVersion: models.DeploymentsAPIVersion,
			Properties: models.Resource{
				"mode": "Incremental",
				"templateLink": map[string]interface{}{
					"uri":            naming.LinkedTemplateURI(t.FileName, withQuery),
					"contentVersion": models.ContentVersion,
				},
				"parameters": nested,
			},
			Kind:       t.Kind,
			ResourceID: naming.DeploymentID(t.Kind),
		}
		// output order keeps dependsOn stable across runs
		for _, k := range models.AllKinds {
			if kindDeps[t.Kind][k] {
				d.AddDependsOn(naming.DeploymentID(k))
				d.AddRequires(models.Edge{Kind: k, ResourceID: naming.DeploymentID(k)})
			}
		}
		master.Resources = append(master.Resources, d)
	}

	if err := checkAcyclic([]*models.Template{master}); err != nil {
		return nil, err
	}
	return master, nil
}
