package client

// database/sql drivers, registered as "mysql", "pgx" and "sqlite3"
import (
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)
