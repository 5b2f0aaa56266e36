package collector

import (
	"strings"

	"EstateSentinel/internal/model"
)

// LocationSeparator joins location sub-fields.
const LocationSeparator = ", "

// ComposeLocation joins the non-empty parts, most specific first
// (street, ward, district/area, region). With no parts it returns model.UnknownLocation.
func ComposeLocation(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return model.UnknownLocation
	}
	return strings.Join(kept, LocationSeparator)
}
