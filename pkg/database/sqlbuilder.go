package database

import "github.com/huandu/go-sqlbuilder"

// Flavor picks the go-sqlbuilder placeholder style for a database/sql driver name.
func Flavor(driverName string) sqlbuilder.Flavor {
	switch driverName {
	case "sqlite3", "sqlite":
		return sqlbuilder.SQLite
	case "mysql":
		return sqlbuilder.MySQL
	default:
		return sqlbuilder.PostgreSQL
	}
}

// Builders creates query builders in one flavor.
type Builders struct {
	flavor sqlbuilder.Flavor
}

func NewBuilders(exec Executor) Builders {
	return Builders{flavor: Flavor(exec.DriverName())}
}

func (b Builders) Flavor() sqlbuilder.Flavor {
	return b.flavor
}

func (b Builders) Select(cols ...string) *sqlbuilder.SelectBuilder {
	return b.flavor.NewSelectBuilder().Select(cols...)
}

func (b Builders) Insert(table string) *sqlbuilder.InsertBuilder {
	return b.flavor.NewInsertBuilder().InsertInto(table)
}

func (b Builders) Update(table string) *sqlbuilder.UpdateBuilder {
	return b.flavor.NewUpdateBuilder().Update(table)
}

func (b Builders) Delete(table string) *sqlbuilder.DeleteBuilder {
	return b.flavor.NewDeleteBuilder().DeleteFrom(table)
}
