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

// Values is the untyped value of a configuration namespace.
type Values = map[string]any

// Clone returns a deep copy of v. Maps and slices are copied recursively,
// everything else is copied by value.
func Clone(v Values) Values {
	if v == nil {
		return nil
	}
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = cloneValue(val)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return Clone(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case map[string][]string:
		out := make(map[string]any, len(t))
		for k, items := range t {
			out[k] = append([]string(nil), items...)
		}
		return out
	default:
		return v
	}
}

// Merge deep-merges patch over base and returns a new value. Nested maps are
// merged recursively; arrays and scalars in patch replace the base value
// wholesale. Neither argument is modified.
func Merge(base, patch Values) Values {
	out := Clone(base)
	if out == nil {
		out = Values{}
	}
	for k, pv := range patch {
		pm, patchIsMap := pv.(map[string]any)
		bm, baseIsMap := out[k].(map[string]any)
		if patchIsMap && baseIsMap {
			out[k] = Merge(bm, pm)
			continue
		}
		out[k] = cloneValue(pv)
	}
	return out
}
