package cryo

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

type DoorID struct {
	Value string
}

type Address struct {
	Street string
	Door   *DoorID
}

type Student struct {
	ID      *int64
	Name    string
	Year    int16
	Address *Address
}

type studentTree struct {
	root, id, name, year, address, street, door, doorValue *Property
}

// newStudentTree builds:
//
//	ID                   -> id (primary key, generated)
//	Name                 -> name (natural key)
//	Year                 -> year
//	Address.Street       -> street
//	Address.Door.Value   -> door_code
//
// with a creation timestamp marker declared on Address
func newStudentTree(t *testing.T) *studentTree {
	st := &studentTree{}
	var err error
	st.root, err = NewEntityProperty(reflect.TypeOf(Student{}))
	require.NoError(t, err)
	st.id, err = NewProperty(st.root, "ID", Mark(Id), Mark(GeneratedValue))
	require.NoError(t, err)
	require.NoError(t, st.id.CreateColumn("id", nil))
	st.name, err = NewProperty(st.root, "Name", Mark(NaturalId))
	require.NoError(t, err)
	require.NoError(t, st.name.CreateColumn("name", nil))
	st.year, err = NewProperty(st.root, "Year")
	require.NoError(t, err)
	require.NoError(t, st.year.CreateColumn("year", nil))
	st.address, err = NewProperty(st.root, "Address", Mark(Embeddable), Mark(CreationTimestamp))
	require.NoError(t, err)
	st.street, err = NewProperty(st.address, "Street")
	require.NoError(t, err)
	require.NoError(t, st.street.CreateColumn("street", nil))
	st.door, err = NewProperty(st.address, "Door", Mark(Embeddable))
	require.NoError(t, err)
	st.doorValue, err = NewProperty(st.door, "Value")
	require.NoError(t, err)
	require.NoError(t, st.doorValue.CreateColumn("door_code", nil))
	require.NoError(t, st.door.SetChildren(st.doorValue))
	require.NoError(t, st.address.SetChildren(st.street, st.door))
	require.NoError(t, st.root.SetChildren(st.id, st.name, st.year, st.address))
	return st
}

func newStudentMapper(t *testing.T) EntityMapper[Student] {
	m, err := NewEntityMapper[Student](newStudentTree(t).root)
	require.NoError(t, err)
	return m
}

func int64Ptr(i int64) *int64 {
	return &i
}

type EnrollmentKey struct {
	StudentID int64
	CourseID  string
}

type Enrollment struct {
	Key   EnrollmentKey
	Grade string
}

// newEnrollmentMapper has a composite primary key (student_id, course_id) declared on the Key embeddable
func newEnrollmentMapper(t *testing.T) EntityMapper[Enrollment] {
	root, err := NewEntityProperty(reflect.TypeOf(Enrollment{}))
	require.NoError(t, err)
	key, err := NewProperty(root, "Key", Mark(Embeddable), Mark(Id))
	require.NoError(t, err)
	sid, err := NewProperty(key, "StudentID")
	require.NoError(t, err)
	require.NoError(t, sid.CreateColumn("student_id", nil))
	cid, err := NewProperty(key, "CourseID")
	require.NoError(t, err)
	require.NoError(t, cid.CreateColumn("course_id", nil))
	require.NoError(t, key.SetChildren(sid, cid))
	grade, err := NewProperty(root, "Grade")
	require.NoError(t, err)
	require.NoError(t, grade.CreateColumn("grade", nil))
	require.NoError(t, root.SetChildren(key, grade))
	m, err := NewEntityMapper[Enrollment](root)
	require.NoError(t, err)
	return m
}

// leafColumn builds a single column tree over the named field of rt
func leafColumn(t *testing.T, rt reflect.Type, field string, converter AttributeConverter) *Column {
	root, err := NewEntityProperty(rt)
	require.NoError(t, err)
	p, err := NewProperty(root, field)
	require.NoError(t, err)
	require.NoError(t, p.CreateColumn(field, converter))
	require.NoError(t, root.SetChildren(p))
	return p.Column()
}
