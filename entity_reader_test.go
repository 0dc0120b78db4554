package cryo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var studentColumns = []string{"id", "name", "year", "street", "door_code"}

type upperNamePostProcessor struct{}

var _ EntityPostProcessor[Student] = upperNamePostProcessor{}

func (upperNamePostProcessor) PostProcess(ctx context.Context, sqli SqlInterface, entity *Student) error {
	entity.Name = strings.ToUpper(entity.Name)
	return nil
}

type failingPostProcessor struct{}

func (failingPostProcessor) PostProcess(ctx context.Context, sqli SqlInterface, entity *Student) error {
	return errors.New("fooey")
}

func newStudentReader(t *testing.T, options ...any) EntityReader[Student] {
	r, err := NewEntityReader[Student](newStudentMapper(t), append([]any{Query("SELECT * FROM students")}, options...)...)
	require.NoError(t, err)
	return r
}

func TestNewEntityReader(t *testing.T) {
	r, err := NewEntityReader[Student](newStudentMapper(t), Query("SELECT * FROM students"), upperNamePostProcessor{}, &testErrorTranslator{}, nil)
	require.NoError(t, err)
	raw := r.(*entityReader[Student])
	assert.Equal(t, Query("SELECT * FROM students"), *raw.defaultQuery)
	assert.Len(t, raw.postProcessors, 1)
	assert.IsType(t, &testErrorTranslator{}, raw.errorTranslator)

	_, err = NewEntityReader[Student](nil)
	assert.Error(t, err)
	_, err = NewEntityReader[Student](newStudentMapper(t), Query("a"), Query("b"))
	assert.Error(t, err)
	_, err = NewEntityReader[Student](newStudentMapper(t), true)
	require.Error(t, err)
	assert.Equal(t, "unknown option type: bool", err.Error())
	assert.Contains(t, fmt.Sprintf("%+v", err), "entity_reader.go")
	assert.Panics(t, func() {
		MustNewEntityReader[Student](nil)
	})
}

func TestEntityReader_Rows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery("").WillReturnRows(sqlmock.NewRows(studentColumns).
		AddRow(int64(1), "Ann", int64(2), "High St", "A1").
		AddRow(int64(2), "Bob", int64(3), "Low Rd", []byte("B2")))

	r := newStudentReader(t)
	rows, err := r.Rows(context.Background(), db, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, &Student{ID: int64Ptr(1), Name: "Ann", Year: 2, Address: &Address{Street: "High St", Door: &DoorID{Value: "A1"}}}, rows[0])
	assert.Equal(t, "B2", rows[1].Address.Door.Value)
	assert.Equal(t, int16(3), rows[1].Year)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntityReader_Rows_IgnoresUnknownColumns(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery("").WillReturnRows(sqlmock.NewRows([]string{"id", "door_code", "row_version"}).
		AddRow(int64(1), "A1", int64(42)))

	rows, err := newStudentReader(t).Rows(context.Background(), db, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), *rows[0].ID)
	assert.Equal(t, "A1", rows[0].Address.Door.Value)
}

func TestEntityReader_Rows_QueryOptions(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery("SELECT * FROM pupils WHERE year = ?").WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows(studentColumns).
			AddRow(int64(1), "Ann", int64(2), nil, nil).
			AddRow(int64(2), "Bob", int64(2), nil, nil).
			AddRow(int64(3), "Cat", int64(2), nil, nil))

	r := newStudentReader(t)
	rows, err := r.Rows(context.Background(), db, []any{int64(2)},
		Query("SELECT * FROM pupils"), AddClause("WHERE year = ?"),
		upperNamePostProcessor{}, MaxRows(2))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ANN", rows[0].Name)
	assert.Equal(t, "BOB", rows[1].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntityReader_Rows_Errors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	r, err := NewEntityReader[Student](newStudentMapper(t))
	require.NoError(t, err)
	_, err = r.Rows(context.Background(), db, nil)
	require.Error(t, err)
	assert.Equal(t, "no default query", err.Error())
	_, err = r.Rows(context.Background(), db, nil, AddClause("WHERE 1"))
	require.Error(t, err)
	assert.Equal(t, "add clause must have a query set", err.Error())
	_, err = r.Rows(context.Background(), db, nil, Query("SELECT 1"), 1.5)
	require.Error(t, err)
	assert.Equal(t, "unknown option type: float64", err.Error())

	mock.ExpectQuery("").WillReturnError(errors.New("connection lost"))
	translated := errors.New("translated")
	_, err = r.Rows(context.Background(), db, nil, Query("SELECT 1"), ErrorTranslatorFunc(func(err error) error {
		return translated
	}))
	assert.Equal(t, translated, err)

	mock.ExpectQuery("").WillReturnRows(sqlmock.NewRows(studentColumns).AddRow(int64(1), 1.5, int64(2), nil, nil))
	_, err = r.Rows(context.Background(), db, nil, Query("SELECT 1"))
	require.Error(t, err)
	assert.True(t, IsTypeMismatch(err))

	mock.ExpectQuery("").WillReturnRows(sqlmock.NewRows(studentColumns).AddRow(int64(1), "Ann", int64(2), nil, nil))
	_, err = r.Rows(context.Background(), db, nil, Query("SELECT 1"), failingPostProcessor{})
	require.Error(t, err)
	assert.Equal(t, "fooey", err.Error())

	mock.ExpectQuery("").WillReturnRows(sqlmock.NewRows(studentColumns).
		AddRow(int64(1), "Ann", int64(2), nil, nil).
		RowError(0, errors.New("row failure")))
	_, err = r.Rows(context.Background(), db, nil, Query("SELECT 1"))
	require.Error(t, err)
	assert.Equal(t, "row failure", err.Error())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntityReader_Iterate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery("").WillReturnRows(sqlmock.NewRows(studentColumns).
		AddRow(int64(1), "Ann", int64(2), nil, nil).
		AddRow(int64(2), "Bob", int64(2), nil, nil).
		AddRow(int64(3), "Cat", int64(2), nil, nil))

	names := make([]string, 0)
	err = newStudentReader(t).Iterate(context.Background(), db, nil, func(entity *Student) (bool, error) {
		names = append(names, entity.Name)
		return entity.Name != "Bob", nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Ann", "Bob"}, names)

	mock.ExpectQuery("").WillReturnRows(sqlmock.NewRows(studentColumns).
		AddRow(int64(1), "Ann", int64(2), nil, nil))
	err = newStudentReader(t).Iterate(context.Background(), db, nil, func(entity *Student) (bool, error) {
		return true, errors.New("handler failure")
	})
	require.Error(t, err)
	assert.Equal(t, "handler failure", err.Error())

	mock.ExpectQuery("").WillReturnError(errors.New("connection lost"))
	err = newStudentReader(t).Iterate(context.Background(), db, nil, func(entity *Student) (bool, error) {
		return true, nil
	})
	require.Error(t, err)
	assert.Equal(t, "connection lost", err.Error())
}

func TestEntityReader_Iterator(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery("").WillReturnRows(sqlmock.NewRows(studentColumns).
		AddRow(int64(1), "Ann", int64(2), nil, nil).
		AddRow(int64(2), "Bob", int64(2), nil, nil).
		AddRow(int64(3), "Cat", int64(2), nil, nil))

	names := make([]string, 0)
	for entity, err := range newStudentReader(t).Iterator(context.Background(), db, nil, &testLimiter{limit: 2}) {
		require.NoError(t, err)
		names = append(names, entity.Name)
	}
	assert.Equal(t, []string{"Ann", "Bob"}, names)

	mock.ExpectQuery("").WillReturnRows(sqlmock.NewRows(studentColumns).
		AddRow(int64(1), 1.5, int64(2), nil, nil))
	count := 0
	for entity, err := range newStudentReader(t).Iterator(context.Background(), db, nil) {
		count++
		assert.Nil(t, entity)
		assert.True(t, IsTypeMismatch(err))
	}
	assert.Equal(t, 1, count)
}

func TestEntityReader_FirstRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery("").WillReturnRows(sqlmock.NewRows(studentColumns).
		AddRow(int64(1), "Ann", int64(2), nil, nil).
		AddRow(int64(2), "Bob", int64(2), nil, nil))

	r := newStudentReader(t)
	s, err := r.FirstRow(context.Background(), db, nil)
	require.NoError(t, err)
	assert.Equal(t, "Ann", s.Name)

	mock.ExpectQuery("").WillReturnRows(sqlmock.NewRows(studentColumns))
	s, err = r.FirstRow(context.Background(), db, nil)
	require.NoError(t, err)
	assert.Nil(t, s)

	_, err = r.FirstRow(context.Background(), db, nil, "bad option")
	assert.Error(t, err)
}

func TestEntityReader_ExactlyOneRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery("").WillReturnRows(sqlmock.NewRows(studentColumns).
		AddRow(int64(1), "Ann", int64(2), nil, "A1"))

	r := newStudentReader(t)
	s, err := r.ExactlyOneRow(context.Background(), db, nil, upperNamePostProcessor{})
	require.NoError(t, err)
	assert.Equal(t, "ANN", s.Name)
	assert.Equal(t, "A1", s.Address.Door.Value)

	mock.ExpectQuery("").WillReturnRows(sqlmock.NewRows(studentColumns))
	_, err = r.ExactlyOneRow(context.Background(), db, nil)
	assert.Equal(t, sql.ErrNoRows, err)

	mock.ExpectQuery("").WillReturnRows(sqlmock.NewRows(studentColumns))
	_, err = r.ExactlyOneRow(context.Background(), db, nil, &testErrorTranslator{})
	require.Error(t, err)
	assert.Equal(t, "no rows found!!!", err.Error())
}

func TestThawRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery("").WillReturnRows(sqlmock.NewRows(studentColumns).
		AddRow(int64(1), "Ann", int64(2), "High St", "A1").
		AddRow(int64(2), "Bob", int64(3), "Low Rd", "B2"))

	rows, err := db.Query("SELECT * FROM students")
	require.NoError(t, err)
	defer rows.Close()
	students, err := ThawRows[Student](newStudentMapper(t), rows)
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, "Low Rd", students[1].Address.Street)
}
