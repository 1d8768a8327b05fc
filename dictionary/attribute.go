package dictionary

import "fmt"

// Attribute is a built, immutable attribute. Numeric null values are held by value; a
// String null value lives in the attribute's own arena.
type Attribute struct {
	Name         string
	Type         Type
	Nullable     bool
	Hierarchical bool
	Injective    bool

	nullValue any
	arena     *Arena
	nullRef   StringRef
}

// NullValue is the attribute's configured default in its native Go type.
func (a *Attribute) NullValue() any {
	if a.Type.Kind == KindString {
		return a.arena.String(a.nullRef)
	}
	return a.nullValue
}

// ArenaSize is the number of bytes owned by the attribute's arena, 0 for non-string kinds.
func (a *Attribute) ArenaSize() int {
	if a.arena == nil {
		return 0
	}
	return a.arena.Size()
}

func newAttribute(dictionary string, spec AttributeSpec) (Attribute, error) {
	t, nullable, err := ParseType(spec.Type)
	if err != nil {
		return Attribute{}, newError(dictionary, ErrConfiguration, err, fmt.Sprintf("attribute '%s'", spec.Name))
	}

	attr := Attribute{
		Name:         spec.Name,
		Type:         t,
		Nullable:     nullable,
		Hierarchical: spec.Hierarchical,
		Injective:    spec.Injective,
	}

	literal := spec.NullValue
	var value any
	if literal == nil {
		value = t.Zero()
	} else if value, err = t.Coerce(literal); err != nil {
		return Attribute{}, newError(dictionary, ErrConfiguration, err, fmt.Sprintf("bad null_value for attribute '%s'", spec.Name))
	}

	switch t.Kind {
	case KindString:
		attr.arena = &Arena{}
		attr.nullRef = attr.arena.Insert(value.(string))
	case KindUInt8, KindUInt16, KindUInt32, KindUInt64,
		KindInt8, KindInt16, KindInt32, KindInt64,
		KindFloat32, KindFloat64,
		KindDecimal32, KindDecimal64, KindDecimal128,
		KindUUID:
		attr.nullValue = value
	default:
		return Attribute{}, newError(dictionary, ErrConfiguration, nil, fmt.Sprintf("unsupported type %s for attribute '%s'", t, spec.Name))
	}

	return attr, nil
}

// buildAttributes builds every declared attribute, the name/index maps and locates the
// hierarchical attribute.
func (d *Dictionary) buildAttributes() error {
	specs := d.structure.Attributes
	d.attributes = make([]Attribute, 0, len(specs))
	d.indexByName = make(map[string]int, len(specs))
	d.nameByIndex = make([]string, 0, len(specs))

	for _, spec := range specs {
		if _, dup := d.indexByName[spec.Name]; dup {
			return newError(d.fullName, ErrConfiguration, nil, fmt.Sprintf("duplicate attribute '%s'", spec.Name))
		}
		attr, err := newAttribute(d.fullName, spec)
		if err != nil {
			return err
		}

		d.indexByName[spec.Name] = len(d.attributes)
		d.nameByIndex = append(d.nameByIndex, spec.Name)
		d.attributes = append(d.attributes, attr)

		if attr.Hierarchical {
			if d.hierarchicalIdx >= 0 {
				return newError(d.fullName, ErrConfiguration, nil, "only one hierarchical attribute is allowed")
			}
			if attr.Type.Kind != KindUInt64 {
				return constructionError(d.fullName, ErrTypeMismatch, "hierarchical attribute must be UInt64.")
			}
			d.hierarchicalIdx = len(d.attributes) - 1
		}
	}
	return nil
}

// GetAttribute looks an attribute up by name.
func (d *Dictionary) GetAttribute(name string) (*Attribute, error) {
	idx, ok := d.indexByName[name]
	if !ok {
		return nil, newError(d.fullName, ErrNotFound, nil, fmt.Sprintf("no such attribute '%s'", name))
	}
	return &d.attributes[idx], nil
}

// Attributes returns the built attributes in declaration order. The slice must not be modified.
func (d *Dictionary) Attributes() []Attribute {
	return d.attributes
}

func (d *Dictionary) hierarchical() *Attribute {
	if d.hierarchicalIdx < 0 {
		return nil
	}
	return &d.attributes[d.hierarchicalIdx]
}
