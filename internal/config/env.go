package config

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
)

// lookupFunc has the signature of os.LookupEnv
type lookupFunc func(key string) (string, bool)

// applyEnv overrides every field tagged with `env` whose variable is set.
// All malformed values are reported together.
func applyEnv(target interface{}, lookup lookupFunc) error {
	val := reflect.ValueOf(target)
	if val.Kind() != reflect.Ptr || val.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("config target must be a pointer to a struct, got %T", target)
	}

	var errs []error
	walkEnvFields(val.Elem(), func(field reflect.Value, key string) {
		raw, ok := lookup(key)
		if !ok {
			return
		}
		if err := setFromString(field, raw); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	})
	return errors.Join(errs...)
}

func walkEnvFields(v reflect.Value, visit func(field reflect.Value, key string)) {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		if field.Kind() == reflect.Struct {
			walkEnvFields(field, visit)
			continue
		}
		if key := t.Field(i).Tag.Get("env"); key != "" && field.CanSet() {
			visit(field, key)
		}
	}
}

func setFromString(field reflect.Value, raw string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Int, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid integer %q", raw)
		}
		field.SetInt(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid boolean %q", raw)
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("unsupported field type %s", field.Kind())
	}
	return nil
}
