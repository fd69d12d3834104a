package datapush

import (
	"database/sql"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/hkagei/jetblue-route-planning/src/models"
	_ "modernc.org/sqlite"
)

// 表名
const (
	TableRoutePerformance = "route_performance"
	TableRouteSummary     = "route_summary"
	TableFleetSummary     = "fleet_summary"
	TableRunLog           = "run_log"
)

// Store SQLite中的可查询视图. 每次保存整表替换三张结果表, run_log只追加.
type Store struct {
	db *sql.DB
}

// OpenStore path 为 ":memory:" 时使用内存数据库
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// 内存库每个连接是独立的数据库
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable wal: %w", err)
		}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Transaction executes fn within a transaction
func (s *Store) Transaction(fn func(*sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) migrate() error {
	stmts := []string{
		createTable(TableRoutePerformance, models.RouteMonthRecord{}),
		createTable(TableRouteSummary, models.RouteSummary{}),
		createTable(TableFleetSummary, models.FleetSummary{}),
		`CREATE TABLE IF NOT EXISTS ` + TableRunLog + ` (
			run_id        TEXT PRIMARY KEY,
			started_at    TEXT NOT NULL,
			source        TEXT,
			row_count     INTEGER NOT NULL,
			routes        INTEGER NOT NULL,
			unmapped_rows INTEGER NOT NULL,
			elapsed_ms    INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_route_performance_route_month ON ` + TableRoutePerformance + ` (route, month)`,
	}
	return s.Transaction(func(tx *sql.Tx) error {
		for _, stmt := range stmts {
			if _, err := tx.Exec(stmt); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}
		return nil
	})
}

// Save 在一个事务中替换结果表并追加运行记录
func (s *Store) Save(b *Bundle) error {
	return s.Transaction(func(tx *sql.Tx) error {
		if err := replaceRows(tx, TableRoutePerformance, b.Monthly); err != nil {
			return err
		}
		if err := replaceRows(tx, TableRouteSummary, b.Summary); err != nil {
			return err
		}
		if err := replaceRows(tx, TableFleetSummary, b.Fleet); err != nil {
			return err
		}

		var unmapped int
		var elapsed time.Duration
		if b.Result != nil {
			unmapped, elapsed = b.Result.UnmappedRows, b.Result.Elapsed
		}
		_, err := tx.Exec(
			`INSERT INTO `+TableRunLog+` (run_id, started_at, source, row_count, routes, unmapped_rows, elapsed_ms)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			b.RunID, b.StartedAt.UTC().Format(time.RFC3339), b.Source,
			len(b.Monthly), len(b.Summary), unmapped, elapsed.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("insert run log: %w", err)
		}
		return nil
	})
}

func replaceRows[T any](tx *sql.Tx, table string, rows []T) error {
	if _, err := tx.Exec("DELETE FROM " + table); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}

	var zero T
	cols := dbColumns(reflect.TypeOf(zero))
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}
	stmt, err := tx.Prepare(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(names, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")))
	if err != nil {
		return fmt.Errorf("prepare insert %s: %w", table, err)
	}
	defer stmt.Close()

	for i := range rows {
		v := reflect.ValueOf(rows[i])
		args := make([]interface{}, len(cols))
		for j, c := range cols {
			args[j] = v.Field(c.index).Interface()
		}
		if _, err := stmt.Exec(args...); err != nil {
			return fmt.Errorf("insert %s row %d: %w", table, i, err)
		}
	}
	return nil
}

type dbColumn struct {
	name  string
	index int
	sqlT  string
}

// dbColumns 按db标签列出字段, 指针字段可为NULL
func dbColumns(t reflect.Type) []dbColumn {
	var cols []dbColumn
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		ft := f.Type
		nullable := ft.Kind() == reflect.Ptr
		if nullable {
			ft = ft.Elem()
		}
		var sqlT string
		switch ft.Kind() {
		case reflect.Int, reflect.Int64, reflect.Int32:
			sqlT = "INTEGER"
		case reflect.Float64, reflect.Float32:
			sqlT = "REAL"
		default:
			sqlT = "TEXT"
		}
		if !nullable {
			sqlT += " NOT NULL"
		}
		cols = append(cols, dbColumn{name: tag, index: i, sqlT: sqlT})
	}
	return cols
}

func createTable(table string, model interface{}) string {
	cols := dbColumns(reflect.TypeOf(model))
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = c.name + " " + c.sqlT
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", table, strings.Join(defs, ",\n\t"))
}

// QueryResult 查询结果, NULL为nil
type QueryResult struct {
	Columns []string        `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
}

// Query name为命名查询时执行对应SQL, 否则按原样执行
func (s *Store) Query(nameOrSQL string, args ...interface{}) (*QueryResult, error) {
	query := nameOrSQL
	if q, ok := NamedQueries[nameOrSQL]; ok {
		query = q
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	res := &QueryResult{Columns: cols}
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		res.Rows = append(res.Rows, vals)
	}
	return res, rows.Err()
}

// QueryNames 已注册的命名查询, 按名称排序
func QueryNames() []string {
	names := make([]string, 0, len(NamedQueries))
	for n := range NamedQueries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
