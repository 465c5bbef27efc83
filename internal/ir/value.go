package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Value is a sealed interface representing response document values.
// Only Null, String, Int, Float, Bool, Array, and *Object implement this.
type Value interface {
	irValue() // Sealed - only these types implement it
}

// Null represents a JSON null value.
type Null struct{}

func (Null) irValue() {}

// String represents a string value.
type String string

func (String) irValue() {}

// Int represents an integer value.
type Int int64

func (Int) irValue() {}

// Float represents a fractional number.
type Float float64

func (Float) irValue() {}

// Bool represents a boolean value.
type Bool bool

func (Bool) irValue() {}

// Array represents an ordered list of values.
type Array []Value

func (Array) irValue() {}

// Pair is one key/value entry of an Object.
type Pair struct {
	Key   string
	Value Value
}

// Object is an insertion-ordered map of string keys to values.
// The zero value is ready to use.
type Object struct {
	pairs []Pair
	index map[string]int
}

func (*Object) irValue() {}

// NewObject creates an Object from pairs, in order. A repeated key keeps
// its first position and takes the last value.
func NewObject(pairs ...Pair) *Object {
	obj := &Object{}
	for _, p := range pairs {
		obj.Set(p.Key, p.Value)
	}
	return obj
}

// O is a shorthand for Pair for ergonomic construction.
// Example: NewObject(O("id", Int(1)), O("name", String("Arcade Fire")))
func O(key string, value Value) Pair {
	return Pair{Key: key, Value: value}
}

// Set stores value under key. New keys are appended; existing keys keep
// their position.
func (obj *Object) Set(key string, value Value) {
	if obj.index == nil {
		obj.index = make(map[string]int)
	}
	if i, ok := obj.index[key]; ok {
		obj.pairs[i].Value = value
		return
	}
	obj.index[key] = len(obj.pairs)
	obj.pairs = append(obj.pairs, Pair{Key: key, Value: value})
}

// Get returns the value stored under key.
func (obj *Object) Get(key string) (Value, bool) {
	if obj == nil || obj.index == nil {
		return nil, false
	}
	i, ok := obj.index[key]
	if !ok {
		return nil, false
	}
	return obj.pairs[i].Value, true
}

// Keys returns the keys in insertion order.
func (obj *Object) Keys() []string {
	if obj == nil {
		return nil
	}
	keys := make([]string, len(obj.pairs))
	for i, p := range obj.pairs {
		keys[i] = p.Key
	}
	return keys
}

// Pairs returns a copy of the entries in insertion order.
func (obj *Object) Pairs() []Pair {
	if obj == nil {
		return nil
	}
	return append([]Pair(nil), obj.pairs...)
}

// Len returns the number of entries.
func (obj *Object) Len() int {
	if obj == nil {
		return 0
	}
	return len(obj.pairs)
}

// MarshalJSON implements json.Marshaler, writing keys in insertion order.
func (obj *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if obj != nil {
		for i, p := range obj.pairs {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyBytes, err := json.Marshal(p.Key)
			if err != nil {
				return nil, fmt.Errorf("marshal key %q: %w", p.Key, err)
			}
			buf.Write(keyBytes)
			buf.WriteByte(':')

			valBytes, err := MarshalValue(p.Value)
			if err != nil {
				return nil, fmt.Errorf("marshal value for key %q: %w", p.Key, err)
			}
			buf.Write(valBytes)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON implements json.Marshaler for Array.
func (arr Array) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		elemBytes, err := MarshalValue(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(elemBytes)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// MarshalValue marshals a Value to JSON bytes.
// Uses type-switch dispatch to handle all Value types.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case nil, Null:
		return []byte("null"), nil
	case String:
		return json.Marshal(string(val))
	case Int:
		return strconv.AppendInt(nil, int64(val), 10), nil
	case Float:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("non-finite number %v", f)
		}
		return json.Marshal(f)
	case Bool:
		return json.Marshal(bool(val))
	case Array:
		return val.MarshalJSON()
	case *Object:
		return val.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}

// MarshalYAML implements yaml.Marshaler, preserving key order.
func (obj *Object) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	if obj == nil {
		return node, nil
	}
	for _, p := range obj.pairs {
		val, err := yamlNode(p.Value)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", p.Key, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: p.Key}, val)
	}
	return node, nil
}

// MarshalYAML implements yaml.Marshaler for Array.
func (arr Array) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.SequenceNode}
	for i, elem := range arr {
		val, err := yamlNode(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		node.Content = append(node.Content, val)
	}
	return node, nil
}

func yamlNode(v Value) (*yaml.Node, error) {
	switch val := v.(type) {
	case nil, Null:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	case String:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: string(val)}, nil
	case Int:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(int64(val), 10)}, nil
	case Float:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: strconv.FormatFloat(float64(val), 'g', -1, 64)}, nil
	case Bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(bool(val))}, nil
	case Array:
		n, err := val.MarshalYAML()
		if err != nil {
			return nil, err
		}
		return n.(*yaml.Node), nil
	case *Object:
		n, err := val.MarshalYAML()
		if err != nil {
			return nil, err
		}
		return n.(*yaml.Node), nil
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}

// FromScalar converts a scalar produced by a storage driver to a Value.
// Unsupported types are rendered with fmt.
func FromScalar(v any) Value {
	switch val := v.(type) {
	case nil:
		return Null{}
	case string:
		return String(val)
	case []byte:
		return String(val)
	case int64:
		return Int(val)
	case int32:
		return Int(val)
	case int:
		return Int(val)
	case float64:
		return Float(val)
	case float32:
		return Float(val)
	case bool:
		return Bool(val)
	case Value:
		return val
	default:
		return String(fmt.Sprint(val))
	}
}
