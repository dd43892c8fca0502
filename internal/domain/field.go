package domain

// FieldKind enumerates the value kinds a dynamic field can carry.
type FieldKind string

const (
	FieldKindString FieldKind = "string"
	FieldKindNumber FieldKind = "number"
	FieldKindBool   FieldKind = "bool"
)

// FieldValue is a typed dynamic-field value. Units carry a string-keyed
// bag of these for attributes that are not part of the fixed schema.
type FieldValue struct {
	Kind FieldKind `json:"kind"`
	Str  string    `json:"str,omitempty"`
	Num  float64   `json:"num,omitempty"`
	Bool bool      `json:"bool,omitempty"`
}

// StringValue builds a string-kind field value.
func StringValue(s string) FieldValue {
	return FieldValue{Kind: FieldKindString, Str: s}
}

// NumberValue builds a number-kind field value.
func NumberValue(n float64) FieldValue {
	return FieldValue{Kind: FieldKindNumber, Num: n}
}

// BoolValue builds a bool-kind field value.
func BoolValue(b bool) FieldValue {
	return FieldValue{Kind: FieldKindBool, Bool: b}
}

// Equal reports whether two field values match for filtering purposes.
// Values of different kinds never match.
func (v FieldValue) Equal(other FieldValue) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case FieldKindString:
		return v.Str == other.Str
	case FieldKindNumber:
		return v.Num == other.Num
	case FieldKindBool:
		return v.Bool == other.Bool
	}
	return false
}
