package dictionary

import "fmt"

type (
	// Structure is the dictionary layout as declared in configuration.
	Structure struct {
		ID *IDSpec `json:"id,omitempty" yaml:"id,omitempty"`
		// Key is a composite key declaration, never valid for a direct dictionary
		Key      []AttributeSpec `json:"key,omitempty" yaml:"key,omitempty"`
		RangeMin *AttributeSpec  `json:"range_min,omitempty" yaml:"range_min,omitempty"`
		RangeMax *AttributeSpec  `json:"range_max,omitempty" yaml:"range_max,omitempty"`

		Attributes []AttributeSpec `json:"attributes" yaml:"attributes"`
	}

	IDSpec struct {
		Name string `json:"name" yaml:"name"`
	}

	AttributeSpec struct {
		Name string `json:"name" yaml:"name"`
		// Type is a type string such as "UInt64", "Decimal64(4)" or "Nullable(String)"
		Type string `json:"type" yaml:"type"`
		// NullValue is the default returned for keys missing from the source
		NullValue    any  `json:"null_value,omitempty" yaml:"null_value,omitempty"`
		Hierarchical bool `json:"hierarchical,omitempty" yaml:"hierarchical,omitempty"`
		Injective    bool `json:"injective,omitempty" yaml:"injective,omitempty"`
	}

	Lifetime struct {
		Min uint64 `json:"min" yaml:"min"`
		Max uint64 `json:"max" yaml:"max"`
	}

	// Config is everything the registration layer hands over to build a dictionary.
	Config struct {
		Database  string
		Name      string
		Structure Structure
		Lifetime  *Lifetime
	}
)

const LayoutDirect = "direct"

// IDName is the name of the key column, "id" when not declared.
func (s Structure) IDName() string {
	if s.ID == nil || s.ID.Name == "" {
		return "id"
	}
	return s.ID.Name
}

// AttributeNames returns the declared attribute names in declaration order.
func (s Structure) AttributeNames() []string {
	names := make([]string, len(s.Attributes))
	for i, a := range s.Attributes {
		names[i] = a.Name
	}
	return names
}

// FullName is the qualified name used in errors and logs.
func (c Config) FullName() string {
	if c.Database == "" {
		return c.Name
	}
	return c.Database + "." + c.Name
}

// Validate enforces the configuration constraints of the direct layout: single integer
// key only, no range, no lifetime.
func (c Config) Validate() error {
	if len(c.Structure.Key) > 0 {
		return newError(c.FullName(), ErrConfiguration, nil, "'key' is not supported for dictionary of layout 'direct'")
	}
	if c.Structure.RangeMin != nil || c.Structure.RangeMax != nil {
		return newError(c.FullName(), ErrConfiguration, nil,
			"elements .structure.range_min and .structure.range_max should be defined only for a dictionary of layout 'range_hashed'")
	}
	if c.Lifetime != nil {
		return newError(c.FullName(), ErrConfiguration, nil, "'lifetime' parameter is redundant for the dictionary of layout 'direct'")
	}
	if len(c.Structure.Attributes) == 0 {
		return newError(c.FullName(), ErrConfiguration, nil, "dictionary has no attributes")
	}
	seen := make(map[string]struct{}, len(c.Structure.Attributes))
	for _, a := range c.Structure.Attributes {
		if a.Name == "" {
			return newError(c.FullName(), ErrConfiguration, nil, "attribute with empty name")
		}
		if a.Name == c.Structure.IDName() {
			return newError(c.FullName(), ErrConfiguration, nil, fmt.Sprintf("attribute '%s' clashes with the id column", a.Name))
		}
		if _, dup := seen[a.Name]; dup {
			return newError(c.FullName(), ErrConfiguration, nil, fmt.Sprintf("duplicate attribute '%s'", a.Name))
		}
		seen[a.Name] = struct{}{}
	}
	return nil
}
