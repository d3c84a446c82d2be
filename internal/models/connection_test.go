package models

import (
	"testing"
)

func TestBaseURL(t *testing.T) {
	tests := []struct {
		name   string
		svc    Service
		expect string
	}{
		{
			"default endpoint",
			Service{SubscriptionID: "sub1", ResourceGroup: "rg1", Name: "contoso"},
			"https://management.azure.com/subscriptions/sub1/resourceGroups/rg1/providers/Microsoft.ApiManagement/service/contoso",
		},
		{
			"custom endpoint trailing slash",
			Service{Endpoint: "http://127.0.0.1:8080/", SubscriptionID: "s", ResourceGroup: "g", Name: "n"},
			"http://127.0.0.1:8080/subscriptions/s/resourceGroups/g/providers/Microsoft.ApiManagement/service/n",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.svc.BaseURL()
			if got != tc.expect {
				t.Errorf("BaseURL() = %q, want %q", got, tc.expect)
			}
		})
	}
}

func TestMaskedToken(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		expect string
	}{
		{"non-empty", "eyJ0eXAi", "••••••••"},
		{"empty", "", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := &Service{Token: tc.token}
			got := s.MaskedToken()
			if got != tc.expect {
				t.Errorf("MaskedToken() = %q, want %q", got, tc.expect)
			}
		})
	}
}
