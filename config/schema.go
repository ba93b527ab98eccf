// Copyright 2025 achetronic
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"math"
	"reflect"
	"slices"
	"sort"

	"github.com/achetronic/lexguard/errors"
)

// FieldType is the value shape a Rule accepts.
type FieldType string

const (
	TypeString      FieldType = "string"
	TypeNumber      FieldType = "number"
	TypeInteger     FieldType = "integer"
	TypeBool        FieldType = "boolean"
	TypeStringArray FieldType = "string_array"
	TypeObject      FieldType = "object"
)

// Rule describes the accepted values of one configuration field.
type Rule struct {
	Type FieldType

	// Min and Max bound numeric fields. Exclusive* turn them into strict
	// bounds.
	Min          *float64
	Max          *float64
	ExclusiveMin bool
	ExclusiveMax bool

	// Enum restricts scalar fields to a fixed set. Numeric enums are
	// compared as float64.
	Enum []any

	// Items restricts the elements of a string array.
	Items []string

	// Fields describes an object with fixed keys; Additional describes
	// every value of an object with free keys.
	Fields     Schema
	Additional *Rule

	Required bool
}

// Schema maps field names to their rules.
type Schema map[string]Rule

// Bound returns a pointer to v, for Rule.Min and Rule.Max literals.
func Bound(v float64) *float64 {
	return &v
}

// Validate checks a complete value: every required field present, no
// unknown fields, every field within its rule. The first violation, in
// field-name order, is returned as a validation error.
func (s Schema) Validate(v Values) error {
	return s.validate("", v, true)
}

// ValidatePartial checks only the fields present in v.
func (s Schema) ValidatePartial(v Values) error {
	return s.validate("", v, false)
}

func (s Schema) validate(prefix string, v Values, complete bool) error {
	if v == nil {
		return errors.Validation("config", "validate", "value is required")
	}

	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		rule, ok := s[k]
		if !ok {
			return errors.Validation("config", "validate", "field %q is not allowed", prefix+k)
		}
		if err := rule.check(prefix+k, v[k], complete); err != nil {
			return err
		}
	}

	if complete {
		required := make([]string, 0)
		for k, rule := range s {
			if rule.Required {
				required = append(required, k)
			}
		}
		sort.Strings(required)
		for _, k := range required {
			if _, ok := v[k]; !ok {
				return errors.Validation("config", "validate", "field %q is required", prefix+k)
			}
		}
	}

	return nil
}

func (r Rule) check(field string, value any, complete bool) error {
	switch r.Type {
	case TypeString:
		s, ok := value.(string)
		if !ok {
			return typeError(field, r.Type, value)
		}
		if len(r.Enum) > 0 && !slices.Contains(r.Enum, any(s)) {
			return errors.Validation("config", "validate", "field %q: %q is not one of %v", field, s, r.Enum)
		}

	case TypeBool:
		if _, ok := value.(bool); !ok {
			return typeError(field, r.Type, value)
		}

	case TypeNumber, TypeInteger:
		n, ok := toFloat(value)
		if !ok {
			return typeError(field, r.Type, value)
		}
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return errors.Validation("config", "validate", "field %q must be a finite number", field)
		}
		if r.Type == TypeInteger && n != math.Trunc(n) {
			return errors.Validation("config", "validate", "field %q must be an integer, got %v", field, n)
		}
		if err := r.checkRange(field, n); err != nil {
			return err
		}
		if len(r.Enum) > 0 && !numericEnumContains(r.Enum, n) {
			return errors.Validation("config", "validate", "field %q: %v is not one of %v", field, n, r.Enum)
		}

	case TypeStringArray:
		items, ok := toStrings(value)
		if !ok {
			return typeError(field, r.Type, value)
		}
		if len(r.Items) > 0 {
			for _, item := range items {
				if !slices.Contains(r.Items, item) {
					return errors.Validation("config", "validate", "field %q: %q is not one of %v", field, item, r.Items)
				}
			}
		}

	case TypeObject:
		obj, ok := value.(map[string]any)
		if !ok {
			return typeError(field, r.Type, value)
		}
		if r.Fields != nil {
			return r.Fields.validate(field+".", obj, complete)
		}
		if r.Additional != nil {
			keys := make([]string, 0, len(obj))
			for k := range obj {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				if err := r.Additional.check(field+"."+k, obj[k], complete); err != nil {
					return err
				}
			}
		}

	default:
		return errors.Validation("config", "validate", "field %q has unknown rule type %q", field, r.Type)
	}

	return nil
}

func (r Rule) checkRange(field string, n float64) error {
	if r.Min != nil {
		if r.ExclusiveMin && n <= *r.Min {
			return errors.Validation("config", "validate", "field %q must be > %v, got %v", field, *r.Min, n)
		}
		if !r.ExclusiveMin && n < *r.Min {
			return errors.Validation("config", "validate", "field %q must be >= %v, got %v", field, *r.Min, n)
		}
	}
	if r.Max != nil {
		if r.ExclusiveMax && n >= *r.Max {
			return errors.Validation("config", "validate", "field %q must be < %v, got %v", field, *r.Max, n)
		}
		if !r.ExclusiveMax && n > *r.Max {
			return errors.Validation("config", "validate", "field %q must be <= %v, got %v", field, *r.Max, n)
		}
	}
	return nil
}

func typeError(field string, want FieldType, got any) error {
	return errors.Validation("config", "validate", "field %q must be %s, got %T", field, want, got)
}

func numericEnumContains(enum []any, n float64) bool {
	for _, e := range enum {
		if f, ok := toFloat(e); ok && f == n {
			return true
		}
	}
	return false
}

// toFloat accepts every Go numeric kind, which covers values built in code
// as well as values decoded from JSON (float64) or YAML (int).
func toFloat(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

func toStrings(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

// describe renders a rule for diagnostics and schema listings.
func (r Rule) describe() string {
	switch {
	case len(r.Enum) > 0:
		return fmt.Sprintf("%s enum %v", r.Type, r.Enum)
	case r.Min != nil || r.Max != nil:
		lo, hi := "-inf", "+inf"
		if r.Min != nil {
			lo = fmt.Sprint(*r.Min)
		}
		if r.Max != nil {
			hi = fmt.Sprint(*r.Max)
		}
		open, closeB := "[", "]"
		if r.ExclusiveMin {
			open = "("
		}
		if r.ExclusiveMax {
			closeB = ")"
		}
		return fmt.Sprintf("%s %s%s,%s%s", r.Type, open, lo, hi, closeB)
	default:
		return string(r.Type)
	}
}

// Describe returns a human readable summary of every field rule, keyed by
// field name.
func (s Schema) Describe() map[string]string {
	out := make(map[string]string, len(s))
	for k, r := range s {
		out[k] = r.describe()
	}
	return out
}
