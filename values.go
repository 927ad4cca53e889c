package greq

import (
	"fmt"
	"net/url"
	"sort"

	"github.com/spf13/cast"
)

// stringValue coerces string-like, numeric and boolean values into their
// string form. Slices, maps and structs are rejected.
func stringValue(v any) (string, error) {
	switch v.(type) {
	case []string, map[string]any, map[string]string:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", fmt.Errorf("unsupported value type %T", v)
	}
	return s, nil
}

// toValues converts the accepted map shapes for query and form data into url.Values.
// Keys of map[string]any entries that cannot be converted are reported individually.
func toValues(in any, what string) (url.Values, []error) {
	data := url.Values{}

	switch val := in.(type) {
	case url.Values:
		for k, vs := range val {
			for _, v := range vs {
				data.Add(k, v)
			}
		}
	case map[string]string:
		for k, v := range val {
			data.Add(k, v)
		}
	case map[string][]string:
		for k, vs := range val {
			for _, v := range vs {
				data.Add(k, v)
			}
		}
	case map[string][]byte:
		for k, v := range val {
			data.Add(k, string(v))
		}
	case map[string]any:
		var errs []error
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if vs, ok := val[k].([]string); ok {
				for _, v := range vs {
					data.Add(k, v)
				}
				continue
			}
			s, err := stringValue(val[k])
			if err != nil {
				errs = append(errs, validationError(fmt.Sprintf("%s field %s must be a string, string slice, numeric or boolean value", what, k)).
					WithCause(err).
					WithContext("field", k).
					Build())
				continue
			}
			data.Add(k, s)
		}
		return data, errs
	default:
		return nil, []error{validationError(fmt.Sprintf("%s must be a map[string]string, map[string][]string, map[string][]byte, map[string]any, or url.Values", what)).
			WithContext("type", fmt.Sprintf("%T", in)).
			Build()}
	}

	return data, nil
}
