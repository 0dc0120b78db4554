package cryo

// Query is the sql statement used by EntityReader (or EntityReader.Rows etc.)
//
// the statement is used as given - it must select the columns the entity is mapped to (other columns are ignored)
type Query string

// AddClause is a sql clause that can be appended to the Query when using EntityReader.Rows, EntityReader.FirstRow etc.
type AddClause string
