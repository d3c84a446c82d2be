package models

import (
	"fmt"
	"strings"
)

// DefaultManagementEndpoint is the public Azure Resource Manager endpoint.
const DefaultManagementEndpoint = "https://management.azure.com"

// Service identifies the source API Management instance to extract from.
type Service struct {
	Endpoint       string `json:"endpoint"` // management endpoint, default DefaultManagementEndpoint
	SubscriptionID string `json:"subscription_id"`
	ResourceGroup  string `json:"resource_group"`
	Name           string `json:"name"`
	Token          string `json:"-"` // bearer token; never serialized
}

// BaseURL returns the ARM URL of the service resource itself.
func (s *Service) BaseURL() string {
	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = DefaultManagementEndpoint
	}
	return fmt.Sprintf("%s/subscriptions/%s/resourceGroups/%s/providers/Microsoft.ApiManagement/service/%s",
		strings.TrimSuffix(endpoint, "/"), s.SubscriptionID, s.ResourceGroup, s.Name)
}

// MaskedToken returns a display-safe version of the token.
func (s *Service) MaskedToken() string {
	if s.Token == "" {
		return ""
	}
	return "••••••••"
}

// String is used in log lines.
func (s *Service) String() string {
	return fmt.Sprintf("%s (resource group %s)", s.Name, s.ResourceGroup)
}
