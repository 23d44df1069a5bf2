package store

// generated with gopkg.in/reform.v1

import (
	"fmt"
	"strings"

	"gopkg.in/reform.v1"
	"gopkg.in/reform.v1/parse"
)

type recordTableType struct {
	s parse.StructInfo
	z []interface{}
}

// Schema returns a schema name in SQL database ("").
func (v *recordTableType) Schema() string {
	return v.s.SQLSchema
}

// Name returns a view or table name in SQL database ("records").
func (v *recordTableType) Name() string {
	return v.s.SQLName
}

// Columns returns a new slice of column names for that view or table in SQL database.
func (v *recordTableType) Columns() []string {
	return []string{"address", "data", "created_at", "updated_at"}
}

// NewStruct makes a new struct for that view or table.
func (v *recordTableType) NewStruct() reform.Struct {
	return new(Record)
}

// NewRecord makes a new record for that table.
func (v *recordTableType) NewRecord() reform.Record {
	return new(Record)
}

// PKColumnIndex returns an index of primary key column for that table in SQL database.
func (v *recordTableType) PKColumnIndex() uint {
	return uint(v.s.PKFieldIndex)
}

// RecordTable represents records view or table in SQL database.
var RecordTable = &recordTableType{
	s: parse.StructInfo{Type: "Record", SQLSchema: "", SQLName: "records", Fields: []parse.FieldInfo{{Name: "Address", Type: "string", Column: "address"}, {Name: "Data", Type: "[]uint8", Column: "data"}, {Name: "CreatedAt", Type: "time.Time", Column: "created_at"}, {Name: "UpdatedAt", Type: "time.Time", Column: "updated_at"}}, PKFieldIndex: 0},
	z: new(Record).Values(),
}

// String returns a string representation of this struct or record.
func (s Record) String() string {
	res := make([]string, 4)
	res[0] = "Address: " + reform.Inspect(s.Address, true)
	res[1] = "Data: " + reform.Inspect(s.Data, true)
	res[2] = "CreatedAt: " + reform.Inspect(s.CreatedAt, true)
	res[3] = "UpdatedAt: " + reform.Inspect(s.UpdatedAt, true)
	return strings.Join(res, ", ")
}

// Values returns a slice of struct or record field values.
// Returned interface{} values are never untyped nils.
func (s *Record) Values() []interface{} {
	return []interface{}{
		s.Address,
		s.Data,
		s.CreatedAt,
		s.UpdatedAt,
	}
}

// Pointers returns a slice of pointers to struct or record fields.
// Returned interface{} values are never untyped nils.
func (s *Record) Pointers() []interface{} {
	return []interface{}{
		&s.Address,
		&s.Data,
		&s.CreatedAt,
		&s.UpdatedAt,
	}
}

// View returns View object for that struct.
func (s *Record) View() reform.View {
	return RecordTable
}

// Table returns Table object for that record.
func (s *Record) Table() reform.Table {
	return RecordTable
}

// PKValue returns a value of primary key for that record.
// Returned interface{} value is never untyped nil.
func (s *Record) PKValue() interface{} {
	return s.Address
}

// PKPointer returns a pointer to primary key field for that record.
// Returned interface{} value is never untyped nil.
func (s *Record) PKPointer() interface{} {
	return &s.Address
}

// HasPK returns true if record has non-zero primary key set, false otherwise.
func (s *Record) HasPK() bool {
	return s.Address != RecordTable.z[RecordTable.s.PKFieldIndex]
}

// SetPK sets record primary key.
func (s *Record) SetPK(pk interface{}) {
	if str, ok := pk.(string); ok {
		s.Address = str
	} else {
		s.Address = pk.(string)
	}
}

// check interfaces
var (
	_ reform.View   = RecordTable
	_ reform.Struct = new(Record)
	_ reform.Table  = RecordTable
	_ reform.Record = new(Record)
	_ fmt.Stringer  = new(Record)
)

func init() {
	parse.AssertUpToDate(&RecordTable.s, new(Record))
}
