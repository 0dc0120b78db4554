package cryo

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Level int

const (
	Beginner Level = iota
	Intermediate
	Advanced
)

var levelNames = [...]string{"beginner", "intermediate", "advanced"}

func (l Level) String() string {
	if l < 0 || int(l) >= len(levelNames) {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levelNames[l]
}

func (Level) EnumValues() []Enum {
	return []Enum{Beginner, Intermediate, Advanced}
}

type Syllabus struct {
	Topics []string          `json:"topics" yaml:"topics"`
	Hours  map[string]int    `json:"hours" yaml:"hours"`
	Notes  map[string]string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

type converterHolder struct {
	Level    Level
	Syllabus *Syllabus
	Fee      decimal.Decimal
	Ref      uuid.UUID
	Seq      ulid.ULID
	At       time.Time
}

var holderType = reflect.TypeOf(converterHolder{})

func TestBoolConverter(t *testing.T) {
	testCases := []struct {
		conv      BoolConverter
		stored    any
		expect    bool
		expectErr bool
	}{
		{stored: true, expect: true},
		{stored: int64(1), expect: true},
		{stored: int64(0), expect: false},
		{stored: float64(1), expect: true},
		{stored: []byte("true"), expect: true},
		{stored: "false", expect: false},
		{stored: "maybe", expectErr: true},
		{stored: struct{}{}, expectErr: true},
	}
	for i, tc := range testCases {
		t.Run(fmt.Sprintf("[%d]", i+1), func(t *testing.T) {
			v, err := tc.conv.FromStorage(tc.stored, nil)
			if tc.expectErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.expect, v)
			}
		})
	}

	v, err := BoolConverter{AsInt: true}.ToStorage(true, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
	v, err = BoolConverter{AsInt: true}.ToStorage(false, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)
	v, err = BoolConverter{}.ToStorage(true, nil)
	require.NoError(t, err)
	assert.Equal(t, true, v)
	_, err = BoolConverter{}.ToStorage("true", nil)
	assert.Error(t, err)
}

func TestDecimalConverter(t *testing.T) {
	c := leafColumn(t, holderType, "Fee", DecimalConverter{})
	h := &converterHolder{Fee: decimal.RequireFromString("12.50")}
	v, err := c.Value(h)
	require.NoError(t, err)
	assert.Equal(t, "12.5", v)

	for _, stored := range []any{"3.25", []byte("3.25"), `"3.25"`, float64(3.25), float32(3.25)} {
		require.NoError(t, c.SetValue(h, stored))
		assert.True(t, decimal.RequireFromString("3.25").Equal(h.Fee), "%v", stored)
	}
	require.NoError(t, c.SetValue(h, int64(4)))
	assert.True(t, decimal.NewFromInt(4).Equal(h.Fee))

	assert.Error(t, c.SetValue(h, "abc"))
	assert.Error(t, c.SetValue(h, true))
	_, err = DecimalConverter{}.ToStorage(1.5, c)
	assert.Error(t, err)
}

func TestJSONConverter(t *testing.T) {
	c := leafColumn(t, holderType, "Syllabus", JSONConverter{})
	h := &converterHolder{Syllabus: &Syllabus{Topics: []string{"go"}, Hours: map[string]int{"go": 3}}}
	v, err := c.Value(h)
	require.NoError(t, err)
	assert.JSONEq(t, `{"topics":["go"],"hours":{"go":3}}`, v.(string))

	h2 := &converterHolder{}
	require.NoError(t, c.SetValue(h2, []byte(v.(string))))
	assert.Equal(t, h.Syllabus, h2.Syllabus)

	assert.Error(t, c.SetValue(h2, `{"topics":`))
	assert.Error(t, c.SetValue(h2, int64(1)))
}

func TestYAMLConverter(t *testing.T) {
	c := leafColumn(t, holderType, "Syllabus", YAMLConverter{})
	h := &converterHolder{Syllabus: &Syllabus{Topics: []string{"go", "sql"}, Hours: map[string]int{"sql": 2}}}
	v, err := c.Value(h)
	require.NoError(t, err)
	assert.Contains(t, v.(string), "topics:")

	h2 := &converterHolder{}
	require.NoError(t, c.SetValue(h2, v))
	assert.Equal(t, h.Syllabus, h2.Syllabus)
	assert.Error(t, c.SetValue(h2, "topics: [unclosed"))
}

func TestUUIDConverter(t *testing.T) {
	c := leafColumn(t, holderType, "Ref", UUIDConverter{})
	id := uuid.New()
	h := &converterHolder{Ref: id}
	v, err := c.Value(h)
	require.NoError(t, err)
	assert.Equal(t, id.String(), v)

	for _, stored := range []any{id.String(), []byte(id.String()), id[:], id} {
		h2 := &converterHolder{}
		require.NoError(t, c.SetValue(h2, stored))
		assert.Equal(t, id, h2.Ref)
	}
	assert.Error(t, c.SetValue(h, "not-a-uuid"))
	assert.Error(t, c.SetValue(h, int64(1)))
}

func TestULIDConverter(t *testing.T) {
	c := leafColumn(t, holderType, "Seq", ULIDConverter{})
	id := ulid.Make()
	h := &converterHolder{Seq: id}
	v, err := c.Value(h)
	require.NoError(t, err)
	assert.Equal(t, id.String(), v)

	for _, stored := range []any{id.String(), []byte(id.String()), id.Bytes(), id} {
		h2 := &converterHolder{}
		require.NoError(t, c.SetValue(h2, stored))
		assert.Equal(t, id, h2.Seq)
	}
	assert.Error(t, c.SetValue(h, "nope"))
}

func TestTimeConverter(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)

	c := leafColumn(t, holderType, "At", TimeConverter{})
	h := &converterHolder{At: at}
	v, err := c.Value(h)
	require.NoError(t, err)
	assert.Equal(t, at, v)
	for _, stored := range []any{at, at.Unix(), at.Format(time.RFC3339Nano), []byte(at.Format(time.RFC3339Nano))} {
		h2 := &converterHolder{}
		require.NoError(t, c.SetValue(h2, stored))
		assert.True(t, at.Equal(h2.At), "%v", stored)
	}

	layout := "2006-01-02 15:04:05"
	c = leafColumn(t, holderType, "At", TimeConverter{Layout: layout, Location: time.UTC})
	v, err = c.Value(&converterHolder{At: at})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01 10:30:00", v)
	h2 := &converterHolder{}
	require.NoError(t, c.SetValue(h2, "2024-03-01 10:30:00"))
	assert.True(t, at.Equal(h2.At))
	assert.Error(t, c.SetValue(h2, "yesterday"))
	assert.Error(t, c.SetValue(h2, true))
}

func TestEnumConverter(t *testing.T) {
	c := leafColumn(t, holderType, "Level", EnumConverter{})
	h := &converterHolder{Level: Advanced}
	v, err := c.Value(h)
	require.NoError(t, err)
	assert.Equal(t, "advanced", v)
	require.NoError(t, c.SetValue(h, "intermediate"))
	assert.Equal(t, Intermediate, h.Level)
	require.NoError(t, c.SetValue(h, []byte("beginner")))
	assert.Equal(t, Beginner, h.Level)
	err = c.SetValue(h, "expert")
	assert.True(t, IsInvalidValue(err))
	assert.Error(t, c.SetValue(h, int64(1)))

	c = leafColumn(t, holderType, "Level", EnumConverter{Ordinal: true})
	v, err = c.Value(&converterHolder{Level: Intermediate})
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
	require.NoError(t, c.SetValue(h, int64(2)))
	assert.Equal(t, Advanced, h.Level)
	require.NoError(t, c.SetValue(h, "0"))
	assert.Equal(t, Beginner, h.Level)
	err = c.SetValue(h, int64(3))
	assert.True(t, IsInvalidValue(err))
	_, err = c.Value(&converterHolder{Level: Level(9)})
	assert.True(t, IsInvalidValue(err))

	assert.Equal(t, KindEnum, TypeOf(reflect.TypeOf(Beginner)).Kind())
}
