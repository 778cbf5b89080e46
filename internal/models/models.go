package models

import (
	"errors"
	"fmt"
)

// EntityState is a synchronous snapshot of one host entity.
type EntityState struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastUpdated string         `json:"last_updated,omitempty"`
}

// SupportedFeatures reads the capability bitmask from the attribute bag.
func (s *EntityState) SupportedFeatures() int {
	if s == nil || s.Attributes == nil {
		return 0
	}
	switch v := s.Attributes["supported_features"].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}

// Display-unit attributes. A change in any of them invalidates cached
// forecast values and forces a resubscribe.
var UnitAttributes = []string{
	"temperature_unit",
	"pressure_unit",
	"wind_speed_unit",
	"precipitation_unit",
	"visibility_unit",
}

// Units extracts the current display-unit attribute values.
func (s *EntityState) Units() map[string]string {
	units := make(map[string]string, len(UnitAttributes))
	if s == nil {
		return units
	}
	for _, key := range UnitAttributes {
		if v, ok := s.Attributes[key].(string); ok {
			units[key] = v
		}
	}
	return units
}

// InvalidEntityError marks a subscribe rejection caused by an entity ID
// the host does not recognize. Treated as transient: host reloads churn
// entity IDs briefly.
type InvalidEntityError struct {
	EntityID string
}

func (e *InvalidEntityError) Error() string {
	return fmt.Sprintf("invalid entity id %q", e.EntityID)
}

// IsInvalidEntity reports whether err is an invalid-entity subscribe rejection.
func IsInvalidEntity(err error) bool {
	var target *InvalidEntityError
	return errors.As(err, &target)
}
