package types

type TableRow struct {
	Cells []interface{}
}

// Table is the plain output form of a resource. Cells of a row line up with
// Columns.
type Table struct {
	Rows    []TableRow
	Columns []TableColumnDefinition
}

func NewTable(columns ...TableColumnDefinition) Table {
	return Table{Columns: columns}
}

func (t *Table) AddRow(cells ...interface{}) {
	t.Rows = append(t.Rows, TableRow{Cells: cells})
}

// Taken from kubectl
type TableColumnDefinition struct {
	// name is a human readable name for the column.
	Name string `json:"name"`
	// type is an OpenAPI type definition for this column: string, integer,
	// number or boolean.
	Type string `json:"type"`
	// description is a human readable description of this column.
	Description string `json:"description"`
}

func Column(name string, columnType string, description string) TableColumnDefinition {
	return TableColumnDefinition{Name: name, Type: columnType, Description: description}
}

// Formatter returns the fmt verb for values of the column.
func (t *TableColumnDefinition) Formatter() string {
	switch t.Type {
	case "integer":
		return "%d"
	case "number":
		return "%f"
	case "boolean":
		return "%t"
	}
	return "%v"
}
