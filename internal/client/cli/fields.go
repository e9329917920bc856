package cli

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/iudanet/outreach/internal/client/storage"
	"github.com/iudanet/outreach/internal/models"
)

// поля, которые выставляет сам движок
var managedFields = map[string]bool{
	"created_at": true,
	"updated_at": true,
}

// applyFields patches a JSON document with --set arguments.
// "key=value" sets a string, "key:=json" sets any JSON value (number, bool, null).
func applyFields(doc []byte, fields []string) ([]byte, error) {
	for _, f := range fields {
		key, value, raw, err := splitField(f)
		if err != nil {
			return nil, err
		}
		if managedFields[key] {
			return nil, fmt.Errorf("field %q is managed automatically", key)
		}

		if raw {
			if !gjson.Valid(value) {
				return nil, fmt.Errorf("field %q: invalid JSON value %q", key, value)
			}
			doc, err = sjson.SetRawBytes(doc, key, []byte(value))
		} else {
			doc, err = sjson.SetBytes(doc, key, value)
		}
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
	}
	return doc, nil
}

func splitField(f string) (key, value string, raw bool, err error) {
	i := strings.IndexByte(f, '=')
	if i <= 0 {
		return "", "", false, fmt.Errorf("expected key=value or key:=json, got %q", f)
	}
	key, value = f[:i], f[i+1:]
	if strings.HasSuffix(key, ":") {
		key, raw = strings.TrimSuffix(key, ":"), true
	}
	if key == "" || strings.ContainsAny(key, ".*?#|@") {
		return "", "", false, fmt.Errorf("invalid field name %q", key)
	}
	return key, value, raw, nil
}

// whereFilter combines field=value conditions with AND
func whereFilter(conds []string) (storage.Filter, error) {
	if len(conds) == 0 {
		return nil, nil
	}

	filters := make([]storage.Filter, 0, len(conds))
	for _, cond := range conds {
		field, value, ok := strings.Cut(cond, "=")
		if !ok || field == "" {
			return nil, fmt.Errorf("expected field=value, got %q", cond)
		}
		filters = append(filters, storage.FieldEquals(field, value))
	}

	return func(raw []byte) bool {
		for _, f := range filters {
			if !f(raw) {
				return false
			}
		}
		return true
	}, nil
}

// hasCreator reports whether records of t carry a creator_id reference
func hasCreator(t models.EntityType) bool {
	for _, rel := range models.Dependents(models.EntityVolunteer) {
		if rel.Child == t && rel.Field == "creator_id" {
			return true
		}
	}
	return false
}
