package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// MinAPIVersion is the oldest management API version whose payloads the
// readers understand.
const MinAPIVersion = "2018-01-01"

// ServiceInfo holds the parts of the service resource worth reporting before
// an extraction starts.
type ServiceInfo struct {
	Name              string `json:"name"`
	Location          string `json:"location"`
	SKU               string `json:"sku"`
	Capacity          int    `json:"capacity"`
	GatewayURL        string `json:"gatewayUrl"`
	ProvisioningState string `json:"provisioningState"`
}

// serviceResponse is the GET response of the service resource.
type serviceResponse struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	SKU      struct {
		Name     string `json:"name"`
		Capacity int    `json:"capacity"`
	} `json:"sku"`
	Properties struct {
		GatewayURL        string `json:"gatewayUrl"`
		ProvisioningState string `json:"provisioningState"`
	} `json:"properties"`
}

// ParseServiceResponse extracts ServiceInfo from the service resource body.
func ParseServiceResponse(body []byte) (*ServiceInfo, error) {
	var resp serviceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing service response: %w", err)
	}
	if resp.Name == "" {
		return nil, fmt.Errorf("service response missing name field")
	}
	return &ServiceInfo{
		Name:              resp.Name,
		Location:          resp.Location,
		SKU:               resp.SKU.Name,
		Capacity:          resp.SKU.Capacity,
		GatewayURL:        resp.Properties.GatewayURL,
		ProvisioningState: resp.Properties.ProvisioningState,
	}, nil
}

// Describe reads the service resource. It doubles as the connectivity check:
// a wrong name, subscription or token fails here before any collection is read.
func (s *Source) Describe(ctx context.Context) (*ServiceInfo, error) {
	body, err := s.client.Get(ctx, "", nil)
	if err != nil {
		return nil, err
	}
	info, err := ParseServiceResponse(body)
	if err != nil {
		// reachable, but not a payload we recognise
		s.logger.Warn("service description unreadable", "error", err)
		return &ServiceInfo{}, nil
	}
	s.logger.Info("source service", "name", info.Name, "location", info.Location, "sku", info.SKU, "state", info.ProvisioningState)
	return info, nil
}

// CompareVersions compares dotted or dated versions ("1.2.3", "2019-01-01").
// Returns -1 if a < b, 0 if a == b, 1 if a > b. Missing parts count as zero
// and a "-preview" style suffix is ignored.
func CompareVersions(a, b string) int {
	aParts := parseVersionParts(a)
	bParts := parseVersionParts(b)

	maxLen := len(aParts)
	if len(bParts) > maxLen {
		maxLen = len(bParts)
	}

	for i := 0; i < maxLen; i++ {
		var av, bv int
		if i < len(aParts) {
			av = aParts[i]
		}
		if i < len(bParts) {
			bv = bParts[i]
		}
		if av < bv {
			return -1
		}
		if av > bv {
			return 1
		}
	}
	return 0
}

// VersionAtLeast returns true if version >= min.
func VersionAtLeast(version, min string) bool {
	if version == "" || min == "" {
		return true
	}
	return CompareVersions(version, min) >= 0
}

func parseVersionParts(v string) []int {
	parts := strings.FieldsFunc(v, func(r rune) bool { return r == '.' || r == '-' })
	result := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			break
		}
		result = append(result, n)
	}
	return result
}
