package billing

import (
	"fmt"
	"strings"
)

// companyIDKeys are the metadata keys that have carried the company id in
// gateway payloads over time.
var companyIDKeys = []string{"companyId", "company_id", "companyID", "company"}

// CompanyIDFromMetadata reads the company id from string metadata, as
// Stripe sends it.
func CompanyIDFromMetadata(md map[string]string) string {
	for _, k := range companyIDKeys {
		if v := strings.TrimSpace(md[k]); v != "" {
			return v
		}
	}
	return ""
}

// CompanyIDFromAny reads the company id from decoded JSON metadata, where
// values may be numbers.
func CompanyIDFromAny(md map[string]interface{}) string {
	for _, k := range companyIDKeys {
		v, ok := md[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case float64:
			s = fmt.Sprintf("%.0f", t)
		default:
			s = fmt.Sprint(t)
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}
