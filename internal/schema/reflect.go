package schema

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// TagName is the struct tag consulted by reflection registration.
//
//	type Person struct {
//		ID            *int64    `db:"id"`
//		Name          string    `db:",unique"`
//		Birthday      time.Time
//		FavoriteColor *string
//		Avatar        []byte    `db:"avatar,type=BLOB"`
//		Scratch       string    `db:"-"`
//	}
//
// The first tag element is the column name (empty keeps the default). The
// remaining elements are constraints (unique, pk, autoincrement, notnull),
// "optional", or "type=<STORAGE>". A tag of "-" excludes the field.
const TagName = "db"

// Tabler lets a record type choose its table name.
type Tabler interface {
	TableName() string
}

type registration struct {
	once sync.Once
	reg  *Registry
	err  error
}

var registrations sync.Map // reflect.Type -> *registration

// For returns the registry for record type T, building it on first use.
//
// Concurrent first calls for the same type build the registry exactly once;
// every caller observes the same *Registry (or the same error).
func For[T any]() (*Registry, error) {
	return Register(reflect.TypeOf((*T)(nil)).Elem())
}

// MustFor is like For but panics on a registration error. It suits package
// level variables where a malformed record type is a programming error.
func MustFor[T any]() *Registry {
	r, err := For[T]()
	if err != nil {
		panic(err)
	}
	return r
}

// Register is the reflect.Type form of For.
func Register(t reflect.Type) (*Registry, error) {
	if t == nil {
		return nil, &RegistrationError{Model: "<nil>", Message: "nil type"}
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	entry, _ := registrations.LoadOrStore(t, &registration{})
	r := entry.(*registration)
	r.once.Do(func() {
		var m Model
		m, r.err = Describe(t)
		if r.err == nil {
			r.reg, r.err = Build(m)
		}
	})
	return r.reg, r.err
}

// Describe derives a Model description from a struct type without building
// or memoizing a registry.
func Describe(t reflect.Type) (Model, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return Model{}, &RegistrationError{Model: t.String(), Message: "record type must be a struct"}
	}

	m := Model{
		Name:  t.Name(),
		Table: tableName(t),
	}

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}

		f, skip, err := describeField(sf)
		if err != nil {
			return Model{}, &RegistrationError{Model: t.Name(), Field: sf.Name, Message: err.Error()}
		}
		if skip {
			continue
		}
		f.index = sf.Index
		m.Fields = append(m.Fields, f)
	}

	return m, nil
}

func describeField(sf reflect.StructField) (Field, bool, error) {
	tag, hasTag := sf.Tag.Lookup(TagName)
	if hasTag && tag == "-" {
		return Field{}, true, nil
	}

	f := Field{
		ID:   FieldID(sf.Name),
		Type: sf.Type,
	}

	parts := strings.Split(tag, ",")
	f.Column = strings.TrimSpace(parts[0])

	for _, opt := range parts[1:] {
		opt = strings.TrimSpace(opt)
		switch {
		case opt == "":
		case opt == "optional":
			f.Optional = true
		case strings.HasPrefix(opt, "type="):
			st, err := ParseStorageType(strings.TrimPrefix(opt, "type="))
			if err != nil {
				return Field{}, false, err
			}
			f.StorageType = st
		default:
			k, err := ParseConstraint(opt)
			if err != nil {
				return Field{}, false, fmt.Errorf("tag %q: %w", tag, err)
			}
			f.Constraints = append(f.Constraints, k)
		}
	}

	return f, false, nil
}

func tableName(t reflect.Type) string {
	if tabler, ok := reflect.New(t).Interface().(Tabler); ok {
		return tabler.TableName()
	}
	return strings.ToLower(t.Name())
}
