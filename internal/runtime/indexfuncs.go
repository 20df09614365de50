package runtime

import (
	"context"
	"fmt"

	"github.com/risor-io/risor/object"

	"github.com/jward/ifacemap/internal/index"
	"github.com/jward/ifacemap/internal/store"
)

// Index bridge functions. Scripts receive plain maps and lists rather than
// proxied Go structs so field names stay stable and snake_case.

func makeGetInterfaceFn(idx IndexReader) *object.Builtin {
	return object.NewBuiltin("get_interface", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("get_interface", 1, len(args))
		}
		name, err := toString(args[0])
		if err != nil {
			return object.Errorf("get_interface: %v", err)
		}
		iface, ok := idx.Current().Interface(name)
		if !ok {
			return object.Nil
		}
		return object.NewMap(map[string]object.Object{
			"name":     object.NewString(iface.Name),
			"methods":  stringsToList(iface.Methods),
			"location": locationToMap(iface.Location),
		})
	})
}

func makeGetDeclarationsFn(idx IndexReader) *object.Builtin {
	return object.NewBuiltin("get_declarations", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("get_declarations", 1, len(args))
		}
		name, err := toString(args[0])
		if err != nil {
			return object.Errorf("get_declarations: %v", err)
		}

		results := []object.Object{}
		for _, d := range idx.Current().Declarations(name) {
			results = append(results, object.NewMap(map[string]object.Object{
				"name":          object.NewString(d.Name),
				"receiver_type": object.NewString(d.ReceiverType),
				"is_recursive":  object.NewBool(d.IsRecursive),
				"location":      locationToMap(d.Location),
			}))
		}
		return object.NewList(results)
	})
}

func makeGetImplementationsFn(idx IndexReader) *object.Builtin {
	return object.NewBuiltin("get_implementations", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("get_implementations", 1, len(args))
		}
		name, err := toString(args[0])
		if err != nil {
			return object.Errorf("get_implementations: %v", err)
		}
		sum, ok := idx.Current().Implementation(name)
		if !ok {
			return object.Nil
		}

		impls := make([]object.Object, 0, len(sum.Implementations))
		for _, rec := range sum.Implementations {
			impls = append(impls, object.NewMap(map[string]object.Object{
				"type": object.NewString(rec.ConcreteType),
				"file": object.NewString(rec.DeclaringFile),
			}))
		}
		return object.NewMap(map[string]object.Object{
			"interface":       object.NewString(sum.InterfaceName),
			"count":           object.NewInt(int64(sum.Count)),
			"implementations": object.NewList(impls),
		})
	})
}

func makeInterfacesRequiringFn(idx IndexReader) *object.Builtin {
	return object.NewBuiltin("interfaces_requiring", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("interfaces_requiring", 1, len(args))
		}
		method, err := toString(args[0])
		if err != nil {
			return object.Errorf("interfaces_requiring: %v", err)
		}
		return stringsToList(idx.Current().InterfacesRequiring(method))
	})
}

func makeMethodsOfFn(idx IndexReader) *object.Builtin {
	return object.NewBuiltin("methods_of", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("methods_of", 1, len(args))
		}
		name, err := toString(args[0])
		if err != nil {
			return object.Errorf("methods_of: %v", err)
		}
		return stringsToList(idx.Current().MethodsOf(name))
	})
}

func makeInterfaceNamesFn(idx IndexReader) *object.Builtin {
	return object.NewBuiltin("interface_names", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("interface_names", 0, len(args))
		}
		return stringsToList(idx.Current().InterfaceNames())
	})
}

// makeDBQueryFn creates "db_query", which runs a read-only statement
// against the snapshot database.
//
// db_query(sql, args...) → [{column: value}]
func makeDBQueryFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("db_query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 {
			return object.Errorf("db_query: expected at least 1 argument, got 0")
		}
		query, err := toString(args[0])
		if err != nil {
			return object.Errorf("db_query: sql: %v", err)
		}
		params := make([]any, 0, len(args)-1)
		for _, arg := range args[1:] {
			params = append(params, arg.Interface())
		}

		rows, err := s.QueryRows(ctx, query, params...)
		if err != nil {
			return object.Errorf("db_query: %v", err)
		}
		out := make([]object.Object, 0, len(rows))
		for _, row := range rows {
			m := make(map[string]object.Object, len(row))
			for col, v := range row {
				m[col] = sqlValueToObject(v)
			}
			out = append(out, object.NewMap(m))
		}
		return object.NewList(out)
	})
}

// --- conversion helpers ---

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}

func stringsToList(ss []string) object.Object {
	items := make([]object.Object, 0, len(ss))
	for _, s := range ss {
		items = append(items, object.NewString(s))
	}
	return object.NewList(items)
}

func locationToMap(l index.Location) object.Object {
	return object.NewMap(map[string]object.Object{
		"file":       object.NewString(l.File),
		"start":      object.NewInt(int64(l.Start)),
		"end":        object.NewInt(int64(l.End)),
		"start_line": object.NewInt(int64(l.StartLine)),
		"start_col":  object.NewInt(int64(l.StartCol)),
		"end_line":   object.NewInt(int64(l.EndLine)),
		"end_col":    object.NewInt(int64(l.EndCol)),
	})
}

// sqlValueToObject maps the driver's column types onto Risor values. Blobs
// become strings; anything unexpected is formatted.
func sqlValueToObject(v any) object.Object {
	switch v := v.(type) {
	case nil:
		return object.Nil
	case int64:
		return object.NewInt(v)
	case float64:
		return object.NewFloat(v)
	case bool:
		return object.NewBool(v)
	case string:
		return object.NewString(v)
	case []byte:
		return object.NewString(string(v))
	}
	return object.NewString(fmt.Sprint(v))
}
