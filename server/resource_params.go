package server

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// ExtractParams decodes URI template parameters into a struct. Fields
// bind by `uri` tag, falling back to the `json` tag name. Supported
// field types: string, integers, floats and bool.
//
//	type NoteParams struct {
//	    ID int `uri:"id"`
//	}
//
//	srv.Resource("notes/{id}").Handler(func(ctx context.Context, uri string, params map[string]string) (*server.ResourceContent, error) {
//	    p, err := server.ExtractParams[NoteParams](params)
//	    ...
//	})
func ExtractParams[T any](params map[string]string) (T, error) {
	var out T
	rv := reflect.ValueOf(&out).Elem()
	rt := rv.Type()

	if rt.Kind() != reflect.Struct {
		return out, fmt.Errorf("ExtractParams: T must be a struct type, got %s", rt.Kind())
	}

	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)

		name := paramName(field)
		if name == "" {
			continue
		}
		value, ok := params[name]
		if !ok {
			continue
		}
		if err := assignParam(rv.Field(i), value); err != nil {
			return out, fmt.Errorf("ExtractParams: field %s: %w", field.Name, err)
		}
	}

	return out, nil
}

// paramName resolves the parameter key a struct field binds to.
func paramName(field reflect.StructField) string {
	if tag := field.Tag.Get("uri"); tag != "" {
		return tag
	}
	tag := field.Tag.Get("json")
	if tag == "" {
		return ""
	}
	name, _, _ := strings.Cut(tag, ",")
	return name
}

func assignParam(field reflect.Value, value string) error {
	if !field.CanSet() {
		return fmt.Errorf("cannot set field")
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid int: %w", err)
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid uint: %w", err)
		}
		field.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid float: %w", err)
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid bool: %w", err)
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("unsupported type: %s", field.Kind())
	}

	return nil
}
