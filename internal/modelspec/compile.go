// Package modelspec reads record type declarations from CUE.
//
// A model is declared under the top-level "model" struct. Fields are
// declared in column order with their CUE type; optional CUE fields are
// nullable columns. A @db attribute carries everything CUE types cannot say:
//
//	model: Person: {
//		table: "people"
//		field: {
//			id:        int
//			name:      string @db(unique)
//			nickname?: string
//			avatar:    bytes @db(column=avatar_png)
//			birthday:  string @db(time)
//			token:     string @db(uuid, type=TEXT)
//			tags: [...string]
//		}
//	}
//
// Attribute keys are column=<name>, type=<STORAGE>, the constraints unique,
// pk, autoincrement and notnull, and the semantic types time and uuid.
package modelspec

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/google/uuid"

	"github.com/nakajima/serverdata/internal/schema"
)

// AttrName is the CUE attribute read for column options.
const AttrName = "db"

var (
	int64Type = reflect.TypeOf((*int64)(nil)).Elem()
	floatType = reflect.TypeOf((*float64)(nil)).Elem()
	textType  = reflect.TypeOf((*string)(nil)).Elem()
	bytesType = reflect.TypeOf((*[]byte)(nil)).Elem()
	boolType  = reflect.TypeOf((*bool)(nil)).Elem()
	listType  = reflect.TypeOf((*[]any)(nil)).Elem()
	mapType   = reflect.TypeOf((*map[string]any)(nil)).Elem()
	timeType  = reflect.TypeOf((*time.Time)(nil)).Elem()
	uuidType  = reflect.TypeOf((*uuid.UUID)(nil)).Elem()
)

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}

// CompileSource compiles CUE source text and returns every model it
// declares, in declaration order.
func CompileSource(filename, src string) ([]schema.Model, error) {
	v := cuecontext.New().CompileString(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileModels(v)
}

// CompileModels compiles every field of the "model" struct of v.
func CompileModels(v cue.Value) ([]schema.Model, error) {
	modelsVal := v.LookupPath(cue.ParsePath("model"))
	if !modelsVal.Exists() {
		return nil, nil
	}

	iter, err := modelsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var models []schema.Model
	for iter.Next() {
		m, err := CompileModel(iter.Value())
		if err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return models, nil
}

// CompileModel parses one model struct. The model name is the struct's
// label:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`model: Person: { field: { name: string } }`)
//	m, err := CompileModel(v.LookupPath(cue.ParsePath("model.Person")))
func CompileModel(v cue.Value) (schema.Model, error) {
	if err := v.Err(); err != nil {
		return schema.Model{}, formatCUEError(err)
	}

	var m schema.Model
	if labels := v.Path().Selectors(); len(labels) > 0 {
		m.Name = labels[len(labels)-1].String()
	}

	m.Table = strings.ToLower(m.Name)
	if tableVal := v.LookupPath(cue.ParsePath("table")); tableVal.Exists() {
		table, err := tableVal.String()
		if err != nil {
			return schema.Model{}, formatCUEError(err)
		}
		m.Table = table
	}

	fieldVal := v.LookupPath(cue.ParsePath("field"))
	if !fieldVal.Exists() {
		return schema.Model{}, &CompileError{
			Field:   "field",
			Message: "at least one field is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := fieldVal.Fields(cue.Optional(true))
	if err != nil {
		return schema.Model{}, formatCUEError(err)
	}
	for iter.Next() {
		f, err := compileField(iter.Label(), iter.Value(), iter.IsOptional())
		if err != nil {
			return schema.Model{}, err
		}
		m.Fields = append(m.Fields, f)
	}

	if len(m.Fields) == 0 {
		return schema.Model{}, &CompileError{
			Field:   "field",
			Message: "at least one field is required",
			Pos:     fieldVal.Pos(),
		}
	}
	return m, nil
}

func compileField(name string, v cue.Value, optional bool) (schema.Field, error) {
	f := schema.Field{
		ID:       schema.FieldID(name),
		Optional: optional,
	}

	typ, err := extractType(name, v)
	if err != nil {
		return schema.Field{}, err
	}
	f.Type = typ

	attr := v.Attribute(AttrName)
	if attr.Err() != nil {
		return f, nil
	}

	for i := 0; i < attr.NumArgs(); i++ {
		key, val := attr.Arg(i)
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)

		switch key {
		case "":
		case "column":
			f.Column = val
		case "type":
			st, err := schema.ParseStorageType(val)
			if err != nil {
				return schema.Field{}, attrError(name, v, err.Error())
			}
			f.StorageType = st
		case "time":
			f.Type = timeType
		case "uuid":
			f.Type = uuidType
		case "optional":
			f.Optional = true
		default:
			k, err := schema.ParseConstraint(key)
			if err != nil {
				return schema.Field{}, attrError(name, v, err.Error())
			}
			f.Constraints = append(f.Constraints, k)
		}
	}
	return f, nil
}

func attrError(name string, v cue.Value, msg string) error {
	return &CompileError{Field: "field." + name, Message: "@" + AttrName + ": " + msg, Pos: v.Pos()}
}

// extractType converts a CUE type to the field's Go type.
func extractType(name string, v cue.Value) (reflect.Type, error) {
	kind := v.IncompleteKind() &^ cue.NullKind
	switch kind {
	case cue.IntKind:
		return int64Type, nil
	case cue.FloatKind, cue.NumberKind:
		return floatType, nil
	case cue.StringKind:
		return textType, nil
	case cue.BytesKind:
		return bytesType, nil
	case cue.BoolKind:
		return boolType, nil
	case cue.ListKind:
		return listType, nil
	case cue.StructKind:
		return mapType, nil
	default:
		return nil, &CompileError{
			Field:   "field." + name,
			Message: fmt.Sprintf("unsupported type kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}
