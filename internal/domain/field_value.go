package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// ErrNonFiniteNumber is returned for NaN and infinite numbers, which neither JSON nor the sheet can carry.
var ErrNonFiniteNumber = errors.New("field value is not a finite number")

// ValueKind tags which member of a FieldValue is set.
type ValueKind uint8

const (
	ValueText ValueKind = iota
	ValueNumber
	ValueFlag
)

// FieldValue is the value entered for one exercise field.
// It is stored flat: a string, a number or a boolean.
type FieldValue struct {
	Kind   ValueKind
	Text   string
	Number float64
	Flag   bool
}

func TextValue(s string) FieldValue { return FieldValue{Kind: ValueText, Text: s} }
func NumberValue(n float64) FieldValue { return FieldValue{Kind: ValueNumber, Number: n} }
func FlagValue(b bool) FieldValue { return FieldValue{Kind: ValueFlag, Flag: b} }

// IsFinite reports false only for a NaN or infinite number.
func (v FieldValue) IsFinite() bool {
	return v.Kind != ValueNumber || !(math.IsNaN(v.Number) || math.IsInf(v.Number, 0))
}

// String renders the value the way the prescription sheet shows it.
func (v FieldValue) String() string {
	switch v.Kind {
	case ValueNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case ValueFlag:
		return strconv.FormatBool(v.Flag)
	default:
		return v.Text
	}
}

// IsEmpty reports whether the value should be left off the sheet.
// An empty string, a false flag and the legacy "false" string all count as empty.
func (v FieldValue) IsEmpty() bool {
	switch v.Kind {
	case ValueFlag:
		return !v.Flag
	case ValueNumber:
		return false
	default:
		return v.Text == "" || v.Text == "false"
	}
}

// MarshalJSON writes the bare value.
func (v FieldValue) MarshalJSON() ([]byte, error) {
	if !v.IsFinite() {
		return nil, ErrNonFiniteNumber
	}
	switch v.Kind {
	case ValueNumber:
		return json.Marshal(v.Number)
	case ValueFlag:
		return json.Marshal(v.Flag)
	default:
		return json.Marshal(v.Text)
	}
}

// UnmarshalJSON accepts a JSON string, number or boolean.
func (v *FieldValue) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case string:
		*v = TextValue(x)
	case float64:
		*v = NumberValue(x)
	case bool:
		*v = FlagValue(x)
	case nil:
		*v = TextValue("")
	default:
		return fmt.Errorf("field value must be a string, number or boolean, got %s", string(data))
	}
	return nil
}

// MarshalBSONValue implements bson.ValueMarshaler.
func (v FieldValue) MarshalBSONValue() (bsontype.Type, []byte, error) {
	if !v.IsFinite() {
		return 0, nil, ErrNonFiniteNumber
	}
	switch v.Kind {
	case ValueNumber:
		return bson.MarshalValue(v.Number)
	case ValueFlag:
		return bson.MarshalValue(v.Flag)
	default:
		return bson.MarshalValue(v.Text)
	}
}

// UnmarshalBSONValue implements bson.ValueUnmarshaler.
// Integers written by other clients are read as numbers.
func (v *FieldValue) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.String:
		*v = TextValue(raw.StringValue())
	case bsontype.Double:
		n := raw.Double()
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return ErrNonFiniteNumber
		}
		*v = NumberValue(n)
	case bsontype.Int32:
		*v = NumberValue(float64(raw.Int32()))
	case bsontype.Int64:
		*v = NumberValue(float64(raw.Int64()))
	case bsontype.Boolean:
		*v = FlagValue(raw.Boolean())
	case bsontype.Null, bsontype.Undefined:
		*v = TextValue("")
	default:
		return fmt.Errorf("unsupported BSON type %s for field value", t)
	}
	return nil
}

// FieldValues maps a field key to the entered value.
type FieldValues map[string]FieldValue

// AllFinite reports whether every number in fv is finite.
func (fv FieldValues) AllFinite() bool {
	for _, v := range fv {
		if !v.IsFinite() {
			return false
		}
	}
	return true
}

// Clone returns a copy that shares no state with fv.
func (fv FieldValues) Clone() FieldValues {
	out := make(FieldValues, len(fv))
	for k, v := range fv {
		out[k] = v
	}
	return out
}

// Equal reports whether both mappings hold the same keys and values.
func (fv FieldValues) Equal(other FieldValues) bool {
	if len(fv) != len(other) {
		return false
	}
	for k, v := range fv {
		if o, ok := other[k]; !ok || o != v {
			return false
		}
	}
	return true
}
