package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/risor-io/risor/object"

	"github.com/jward/shobo/internal/history"
	"github.com/jward/shobo/internal/store"
)

// Store query host functions. Risor scripts cannot construct Go structs, so
// filters arrive as Risor maps with primitive values and are converted to a
// history.Filter on the Go side:
//
//	{"purchased": bool, "added": bool, "removed": bool,
//	 "above": number, "below": number, "product_name": string}
//
// "removed": true clears "added". Missing keys keep their zero value.

func makeQueryFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) > 1 {
			return object.NewArgsError("query", 1, len(args))
		}
		var f history.Filter
		if len(args) == 1 {
			var err error
			if f, err = filterFromObject(args[0]); err != nil {
				return object.Errorf("query: %v", err)
			}
		}
		counts, err := s.Query(f, nil)
		if err != nil {
			return object.Errorf("query: %v", err)
		}
		return countsToMap(counts)
	})
}

func makeQueryUserFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("query_user", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 || len(args) > 2 {
			return object.NewArgsError("query_user", 2, len(args))
		}
		id, err := toString(args[0])
		if err != nil {
			return object.Errorf("query_user: %v", err)
		}
		var f history.Filter
		if len(args) == 2 {
			if f, err = filterFromObject(args[1]); err != nil {
				return object.Errorf("query_user: %v", err)
			}
		}
		counts, err := s.Query(f, &id)
		if err != nil {
			return object.Errorf("query_user: %v", err)
		}
		return countsToMap(counts)
	})
}

// makeUserByIDFn returns user_by_id(id): a user map, or nil when no user
// has that id.
func makeUserByIDFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("user_by_id", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("user_by_id", 1, len(args))
		}
		id, err := toString(args[0])
		if err != nil {
			return object.Errorf("user_by_id: %v", err)
		}
		u, err := s.UserByID(id)
		var nf *store.NotFoundError
		if errors.As(err, &nf) {
			return object.Nil
		}
		if err != nil {
			return object.Errorf("user_by_id: %v", err)
		}
		return userToMap(u)
	})
}

func makeUserByNameFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("user_by_name", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("user_by_name", 1, len(args))
		}
		name, err := toString(args[0])
		if err != nil {
			return object.Errorf("user_by_name: %v", err)
		}
		users := s.UserByName(name)
		items := make([]object.Object, len(users))
		for i, u := range users {
			items[i] = object.NewString(u.ID)
		}
		return object.NewList(items)
	})
}

func makeUserIDsFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("user_ids", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("user_ids", 0, len(args))
		}
		items := make([]object.Object, 0, s.Len())
		for u := range s.Users() {
			items = append(items, object.NewString(u.ID))
		}
		return object.NewList(items)
	})
}

// --- Conversion helpers ---

func countsToMap(counts map[string]int) *object.Map {
	m := make(map[string]object.Object, len(counts))
	for name, n := range counts {
		m[name] = object.NewInt(int64(n))
	}
	return object.NewMap(m)
}

func userToMap(u *store.User) *object.Map {
	ops := make([]object.Object, 0, u.History.Len())
	for op := range u.History.All() {
		var reversed object.Object = object.Nil
		if op.ReversedID != nil {
			reversed = object.NewString(*op.ReversedID)
		}
		ops = append(ops, object.NewMap(map[string]object.Object{
			"id":           object.NewString(op.ID),
			"product_name": object.NewString(op.ProductName),
			"price":        object.NewFloat(op.Price),
			"added":        object.NewBool(op.Kind == history.Added),
			"purchased":    object.NewBool(op.Purchased),
			"reversed_id":  reversed,
		}))
	}
	return object.NewMap(map[string]object.Object{
		"id":         object.NewString(u.ID),
		"first_name": object.NewString(u.FirstName),
		"last_name":  object.NewString(u.LastName),
		"name":       object.NewString(u.Name()),
		"history":    object.NewList(ops),
	})
}

var filterKeys = map[string]bool{
	"purchased":    true,
	"added":        true,
	"removed":      true,
	"above":        true,
	"below":        true,
	"product_name": true,
}

func filterFromObject(obj object.Object) (history.Filter, error) {
	m, err := extractMap(obj)
	if err != nil {
		return history.Filter{}, err
	}
	for k := range m {
		if !filterKeys[k] {
			return history.Filter{}, fmt.Errorf("unknown filter key %q", k)
		}
	}

	var f history.Filter
	flags := map[string]bool{}
	for _, key := range []string{"purchased", "added", "removed"} {
		b, err := getBool(m, key)
		if err != nil {
			return history.Filter{}, fmt.Errorf("%s: %w", key, err)
		}
		flags[key] = b
	}
	f.Purchased = flags["purchased"]
	f.Added = flags["added"] && !flags["removed"]
	if v, ok, err := getOptionalFloat(m, "above"); err != nil {
		return history.Filter{}, fmt.Errorf("above: %w", err)
	} else if ok {
		f.PriceAbove = &v
	}
	if v, ok, err := getOptionalFloat(m, "below"); err != nil {
		return history.Filter{}, fmt.Errorf("below: %w", err)
	} else if ok {
		f.PriceBelow = &v
	}
	if v, ok := m["product_name"]; ok && v != object.Nil {
		name, err := toString(v)
		if err != nil {
			return history.Filter{}, fmt.Errorf("product_name: %w", err)
		}
		f.ProductName = &name
	}
	return f, nil
}

func extractMap(obj object.Object) (map[string]object.Object, error) {
	m, ok := obj.(*object.Map)
	if !ok {
		return nil, fmt.Errorf("expected map, got %s", obj.Type())
	}
	return m.Value(), nil
}

func getBool(m map[string]object.Object, key string) (bool, error) {
	v, ok := m[key]
	if !ok || v == object.Nil {
		return false, nil
	}
	b, ok := v.(*object.Bool)
	if !ok {
		return false, fmt.Errorf("expected bool, got %s", v.Type())
	}
	return b.Value(), nil
}

func getOptionalFloat(m map[string]object.Object, key string) (float64, bool, error) {
	v, ok := m[key]
	if !ok || v == object.Nil {
		return 0, false, nil
	}
	switch n := v.(type) {
	case *object.Float:
		return n.Value(), true, nil
	case *object.Int:
		return float64(n.Value()), true, nil
	default:
		return 0, false, fmt.Errorf("expected number, got %s", v.Type())
	}
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}
