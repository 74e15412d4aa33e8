// Package redact masks personally identifying values on admin read paths.
// Masking is response shaping only; stored rows keep the raw values.
package redact

import "encoding/json"

// Mask keeps the first and last two characters and hides the rest.
// Values too short to keep anything meaningful become "***".
func Mask(s string) string {
	if s == "" {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= 4 {
		return "***"
	}
	return string(runes[:2]) + "***" + string(runes[len(runes)-2:])
}

// piiFields is the set of JSON field names treated as personally identifying
var piiFields = map[string]struct{}{
	"email":      {},
	"phone":      {},
	"address":    {},
	"tax_number": {},
	"taxNumber":  {},
	"vkn":        {},
}

// IsPIIField reports whether a field name carries personally identifying data
func IsPIIField(name string) bool {
	_, ok := piiFields[name]
	return ok
}

// MapFields masks the PII fields of a flat string map in place and returns it
func MapFields(fields map[string]string) map[string]string {
	for k, v := range fields {
		if IsPIIField(k) {
			fields[k] = Mask(v)
		}
	}
	return fields
}

// JSON masks PII fields anywhere in an arbitrary JSON document. A document
// that fails to parse is replaced wholesale rather than returned raw.
func JSON(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return raw
	}

	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return json.RawMessage(`"***"`)
	}

	masked, err := json.Marshal(maskValue(doc))
	if err != nil {
		return json.RawMessage(`"***"`)
	}
	return masked
}

func maskValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		for k, inner := range val {
			if s, ok := inner.(string); ok && IsPIIField(k) {
				val[k] = Mask(s)
				continue
			}
			val[k] = maskValue(inner)
		}
		return val
	case []interface{}:
		for i, inner := range val {
			val[i] = maskValue(inner)
		}
		return val
	default:
		return v
	}
}
