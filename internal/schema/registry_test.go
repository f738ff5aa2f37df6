package schema

import (
	"encoding/json"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testModel struct {
	ID            *int64 `db:"id,pk"`
	Name          string `db:",unique"`
	Birthday      time.Time
	FavoriteColor *string
	Scratch       string `db:"-"`
	hidden        int
}

func (testModel) TableName() string { return "test_models" }

type gadget struct {
	ID       *int64
	Token    uuid.UUID
	Payload  map[string]any
	Tags     []string
	Weight   float32
	Avatar   []byte
	Flag     bool
	Count    uint16
	Nickname string `db:"nick,optional"`
	Legacy   string `db:"legacy,type=BLOB"`
}

func TestFor_DerivesColumns(t *testing.T) {
	reg, err := For[testModel]()
	require.NoError(t, err)

	assert.Equal(t, "test_models", reg.Table())
	assert.Equal(t, "testModel", reg.Model())
	require.Equal(t, 4, reg.Len(), "transient and unexported fields are not persisted")

	id := reg.Lookup("ID")
	assert.Equal(t, "id", id.Name)
	assert.Equal(t, BigInt, id.StorageType)
	assert.True(t, id.IsOptional)
	assert.Equal(t, []Constraint{PrimaryKey}, id.Constraints)
	assert.Equal(t, []Constraint{PrimaryKey, PrimaryKeyAutoIncrement}, id.EffectiveConstraints())

	name := reg.Lookup("Name")
	assert.Equal(t, "name", name.Name)
	assert.Equal(t, Text, name.StorageType)
	assert.False(t, name.IsOptional)
	assert.Equal(t, []Constraint{Unique}, name.Constraints)
	assert.Equal(t, []Constraint{Unique, NotNull}, name.EffectiveConstraints())

	birthday := reg.Lookup("Birthday")
	assert.Equal(t, DateTime, birthday.StorageType)
	assert.Equal(t, reflect.TypeOf(time.Time{}), birthday.GoType)

	color := reg.Lookup("FavoriteColor")
	assert.Equal(t, "favoriteColor", color.Name)
	assert.True(t, color.IsOptional)
	assert.Empty(t, color.EffectiveConstraints())
	assert.Equal(t, reflect.TypeOf(""), color.GoType)

	pk, ok := reg.PrimaryKey()
	require.True(t, ok)
	assert.Equal(t, FieldID("ID"), pk.Field)
}

func TestFor_Memoized(t *testing.T) {
	first, err := For[testModel]()
	require.NoError(t, err)
	second, err := For[*testModel]()
	require.NoError(t, err)

	assert.Same(t, first, second)
}

func TestFor_ConcurrentFirstUse(t *testing.T) {
	type concurrentModel struct {
		ID   *int64
		Name string
	}

	const workers = 32
	results := make([]*Registry, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = MustFor[concurrentModel]()
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}

func TestRegistry_Totality(t *testing.T) {
	reg, err := For[gadget]()
	require.NoError(t, err)

	seen := map[string]bool{}
	for i := 0; i < reflect.TypeOf((*gadget)(nil)).Elem().NumField(); i++ {
		id := FieldID(reflect.TypeOf((*gadget)(nil)).Elem().Field(i).Name)
		col := reg.Lookup(id)
		assert.False(t, seen[col.Name], "column %s must be unique", col.Name)
		seen[col.Name] = true

		back, ok := reg.ByColumn(col.Name)
		require.True(t, ok)
		assert.Equal(t, id, back.Field)
	}
	assert.Len(t, seen, reg.Len())
}

func TestRegistry_ReturnsCopies(t *testing.T) {
	reg := MustFor[testModel]()

	name := reg.Lookup("Name")
	name.Constraints[0] = PrimaryKey
	name.Index[0] = 99

	cols := reg.Columns()
	cols[1].Constraints[0] = NotNull

	found, ok := reg.Find("Name")
	require.True(t, ok)
	found.Constraints[0] = Unique
	found.Index = append(found.Index[:0], 42)

	byName, ok := reg.ByColumn("name")
	require.True(t, ok)
	byName.Constraints[0] = PrimaryKey

	pk, ok := reg.PrimaryKey()
	require.True(t, ok)
	pk.Constraints[0] = Unique

	assert.Equal(t, []Constraint{Unique}, reg.Lookup("Name").Constraints)
	assert.Equal(t, []int{1}, reg.Lookup("Name").Index)
	assert.Equal(t, []Constraint{PrimaryKey}, reg.Lookup("ID").Constraints)
}

func TestRegistry_LookupMissPanics(t *testing.T) {
	reg := MustFor[testModel]()

	assert.PanicsWithValue(t, &LookupError{Model: "testModel", Field: "Nope"}, func() {
		reg.Lookup("Nope")
	})

	_, ok := reg.Find("Nope")
	assert.False(t, ok)
}

func TestRegistry_Resolve(t *testing.T) {
	reg := MustFor[testModel]()

	col, ok := reg.Resolve("FavoriteColor")
	require.True(t, ok)
	assert.Equal(t, "favoriteColor", col.Name)

	col, ok = reg.Resolve("favoriteColor")
	require.True(t, ok)
	assert.Equal(t, FieldID("FavoriteColor"), col.Field)

	_, ok = reg.Resolve("missing")
	assert.False(t, ok)
}

func TestInferStorageType_Priority(t *testing.T) {
	type blobbed struct{ A int }
	type duration time.Duration

	testCases := []struct {
		name string
		typ  reflect.Type
		want StorageType
	}{
		{"int", reflect.TypeOf((*int)(nil)).Elem(), BigInt},
		{"int8", reflect.TypeOf((*int8)(nil)).Elem(), BigInt},
		{"int64 pointer", reflect.TypeOf((**int64)(nil)).Elem(), BigInt},
		{"uint64", reflect.TypeOf((*uint64)(nil)).Elem(), BigInt},
		{"bool", reflect.TypeOf((*bool)(nil)).Elem(), BigInt},
		{"named duration", reflect.TypeOf((*duration)(nil)).Elem(), BigInt},
		{"float32", reflect.TypeOf((*float32)(nil)).Elem(), Real},
		{"float64", reflect.TypeOf((*float64)(nil)).Elem(), Real},
		{"string", reflect.TypeOf((*string)(nil)).Elem(), Text},
		{"string pointer", reflect.TypeOf((**string)(nil)).Elem(), Text},
		{"bytes", reflect.TypeOf((*[]byte)(nil)).Elem(), Blob},
		{"json raw message", reflect.TypeOf((*json.RawMessage)(nil)).Elem(), Blob},
		{"time", reflect.TypeOf((*time.Time)(nil)).Elem(), DateTime},
		{"time pointer", reflect.TypeOf((**time.Time)(nil)).Elem(), DateTime},
		{"struct", reflect.TypeOf((*blobbed)(nil)).Elem(), Blob},
		{"map", reflect.TypeOf((*map[string]int)(nil)).Elem(), Blob},
		{"string slice", reflect.TypeOf((*[]string)(nil)).Elem(), Blob},
		{"uuid array", reflect.TypeOf((*uuid.UUID)(nil)).Elem(), Blob},
		{"interface", reflect.TypeOf((*any)(nil)).Elem(), Blob},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := InferStorageType(tc.typ)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestInferStorageType_Unrepresentable(t *testing.T) {
	for _, typ := range []reflect.Type{
		reflect.TypeOf((*chan int)(nil)).Elem(),
		reflect.TypeOf((*func())(nil)).Elem(),
		reflect.TypeOf((*complex128)(nil)).Elem(),
	} {
		_, err := InferStorageType(typ)
		assert.Error(t, err, typ.String())
	}
}

func TestIsGenericEncoded(t *testing.T) {
	assert.True(t, IsGenericEncoded(reflect.TypeOf((*map[string]any)(nil)).Elem()))
	assert.True(t, IsGenericEncoded(reflect.TypeOf((*[]string)(nil)).Elem()))
	assert.False(t, IsGenericEncoded(reflect.TypeOf((*[]byte)(nil)).Elem()))
	assert.False(t, IsGenericEncoded(reflect.TypeOf((*time.Time)(nil)).Elem()))
	assert.False(t, IsGenericEncoded(reflect.TypeOf((*string)(nil)).Elem()))
}

func TestFor_ExplicitOverrideWins(t *testing.T) {
	reg := MustFor[gadget]()

	legacy := reg.Lookup("Legacy")
	assert.Equal(t, Blob, legacy.StorageType)
	assert.Equal(t, Blob, legacy.Declared)

	nick := reg.Lookup("Nickname")
	assert.Equal(t, "nick", nick.Name)
	assert.True(t, nick.IsOptional)

	payload := reg.Lookup("Payload")
	assert.Equal(t, Blob, payload.StorageType)
	assert.Empty(t, payload.Declared)
}

func TestBuild_RegistrationErrors(t *testing.T) {
	strType := reflect.TypeOf((*string)(nil)).Elem()

	testCases := []struct {
		name  string
		model Model
		msg   string
	}{
		{
			name:  "missing table",
			model: Model{Name: "x", Fields: []Field{{ID: "a", Type: strType}}},
			msg:   "table name is required",
		},
		{
			name:  "no fields",
			model: Model{Name: "x", Table: "x"},
			msg:   "at least one persisted field",
		},
		{
			name: "duplicate column",
			model: Model{Table: "x", Fields: []Field{
				{ID: "a", Column: "same", Type: strType},
				{ID: "b", Column: "same", Type: strType},
			}},
			msg: `column name "same" already used`,
		},
		{
			name: "duplicate field",
			model: Model{Table: "x", Fields: []Field{
				{ID: "a", Type: strType},
				{ID: "a", Column: "other", Type: strType},
			}},
			msg: "duplicate field identifier",
		},
		{
			name: "unrepresentable",
			model: Model{Table: "x", Fields: []Field{
				{ID: "ch", Type: reflect.TypeOf((*chan int)(nil)).Elem()},
			}},
			msg: "cannot represent",
		},
		{
			name: "two primary keys",
			model: Model{Table: "x", Fields: []Field{
				{ID: "id", Type: reflect.TypeOf((*int64)(nil)).Elem()},
				{ID: "code", Type: strType, Constraints: []Constraint{PrimaryKey}},
			}},
			msg: "multiple primary key columns",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Build(tc.model)
			require.Error(t, err)
			assert.True(t, IsRegistrationError(err))
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestBuild_OverrideAllowsUnrepresentable(t *testing.T) {
	reg, err := Build(Model{Table: "x", Fields: []Field{
		{ID: "ch", Type: reflect.TypeOf((*complex64)(nil)).Elem(), StorageType: Text},
	}})
	require.NoError(t, err)
	assert.Equal(t, Text, reg.Lookup("ch").StorageType)
}

func TestBuild_NormalizesIdentifiers(t *testing.T) {
	decomposed := "cafe\u0301"
	reg, err := Build(Model{Table: " menu ", Fields: []Field{
		{ID: FieldID(decomposed), Type: reflect.TypeOf((*string)(nil)).Elem()},
	}})
	require.NoError(t, err)

	assert.Equal(t, "menu", reg.Table())
	col, ok := reg.Find("caf\u00e9")
	require.True(t, ok)
	assert.Equal(t, "caf\u00e9", col.Name)
}

func TestBuild_IsIdempotent(t *testing.T) {
	m, err := Describe(reflect.TypeOf((*testModel)(nil)).Elem())
	require.NoError(t, err)

	a, err := Build(m)
	require.NoError(t, err)
	b, err := Build(m)
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.True(t, a.Equivalent(b))
	assert.True(t, a.Equivalent(MustFor[testModel]()))
}

func TestFor_RejectsBadTags(t *testing.T) {
	type badTag struct {
		Name string `db:",sparkly"`
	}
	type badType struct {
		Name string `db:",type=VARCHAR2"`
	}
	type notAStruct int

	_, err := For[badTag]()
	assert.ErrorContains(t, err, "unknown constraint")

	_, err = For[badType]()
	assert.ErrorContains(t, err, "unknown storage type")

	_, err = For[notAStruct]()
	assert.ErrorContains(t, err, "must be a struct")

	assert.Panics(t, func() { MustFor[badTag]() })
}

func TestColumnName(t *testing.T) {
	testCases := map[string]string{
		"FavoriteColor": "favoriteColor",
		"ID":            "id",
		"URLPath":       "urlPath",
		"name":          "name",
		"X":             "x",
		"":              "",
	}
	for in, want := range testCases {
		assert.Equal(t, want, ColumnName(in), in)
	}
}

func TestParseHelpers(t *testing.T) {
	st, err := ParseStorageType("integer")
	require.NoError(t, err)
	assert.Equal(t, BigInt, st)

	k, err := ParseConstraint("NotNull")
	require.NoError(t, err)
	assert.Equal(t, NotNull, k)
}
