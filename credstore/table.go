package credstore

import (
	"context"
	"database/sql"
)

type (
	tableDef struct {
		name    string
		columns []columnDef
		unique  []uniqueDef
	}

	uniqueDef struct {
		name    string
		columns []string
	}

	columnDef struct {
		name     string
		datatype string
		notNull  bool
	}
)

// loadTableDef reads the layout of a table, sql.ErrNoRows means there is no
// such table.
func loadTableDef(ctx context.Context, db *sql.DB, name string) (*tableDef, error) {
	td := tableDef{
		name: name,
	}

	rows, err := db.QueryContext(ctx, `select name, type, "notnull" from pragma_table_info(?) order by cid`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var col columnDef
		err = rows.Scan(&col.name, &col.datatype, &col.notNull)
		if err != nil {
			return nil, err
		}
		td.columns = append(td.columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(td.columns) == 0 {
		return nil, sql.ErrNoRows
	}
	uniqueIdx, err := listUniqueIndexes(ctx, db, name)
	if err != nil {
		return nil, err
	}
	for _, v := range uniqueIdx {
		udef, err := loadUniqueDef(ctx, db, v)
		if err != nil {
			return nil, err
		}
		td.unique = append(td.unique, udef)
	}
	return &td, nil
}

func (t *tableDef) hasColumn(name string) bool {
	for _, c := range t.columns {
		if c.name == name {
			return true
		}
	}
	return false
}

func (t *tableDef) uniqueColumns() []string {
	var out []string
	for _, u := range t.unique {
		if len(u.columns) == 1 {
			out = append(out, u.columns[0])
		}
	}
	return out
}

func loadUniqueDef(ctx context.Context, db *sql.DB, name string) (uniqueDef, error) {
	rows, err := db.QueryContext(ctx, `select name from pragma_index_info(?) order by seqno`, name)
	if err != nil {
		return uniqueDef{}, err
	}
	defer rows.Close()
	ud := uniqueDef{
		name: name,
	}
	for rows.Next() {
		var name string
		err = rows.Scan(&name)
		if err != nil {
			return uniqueDef{}, err
		}
		ud.columns = append(ud.columns, name)
	}
	return ud, rows.Err()
}

func listUniqueIndexes(ctx context.Context, db *sql.DB, name string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `select name from pragma_index_list(?) where [unique] = 1 order by name`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ret []string
	for rows.Next() {
		var name string
		err = rows.Scan(&name)
		if err != nil {
			return nil, err
		}
		ret = append(ret, name)
	}
	return ret, rows.Err()
}
