package migrations

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	chstore "mempool-flow/internal/storage/clickhouse"
)

// RunClickhouseMigrations creates the DSN's database when missing, applies the
// embedded schema and returns a connection to that database.
func RunClickhouseMigrations(ctx context.Context, dsn string) (*chstore.Conn, error) {
	dbName, err := databaseFromDSN(dsn)
	if err != nil {
		return nil, err
	}

	admin, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse admin: %w", err)
	}
	err = admin.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", dbName))
	admin.Close()
	if err != nil {
		return nil, fmt.Errorf("create database %s: %w", dbName, err)
	}

	conn, err := chstore.NewConnWithDatabase(ctx, dsn, dbName)
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse db: %w", err)
	}
	if err := ApplyClickhouse(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// ApplyClickhouse runs the embedded schema against an open connection.
// The native protocol rejects multi-statement Exec, so files are split on ';'.
func ApplyClickhouse(ctx context.Context, conn *chstore.Conn) error {
	names, contents, err := sqlFiles(ClickhouseFS, "clickhouse")
	if err != nil {
		return err
	}
	for _, name := range names {
		stmts, err := splitStatements(contents[name])
		if err != nil {
			return fmt.Errorf("split migration %s: %w", name, err)
		}
		for _, stmt := range stmts {
			if err := conn.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration %s: %w", name, err)
			}
		}
	}
	return nil
}

var errSemicolonInString = errors.New("semicolon inside string literal")

// splitStatements drops '--' comment lines and splits on ';'.
// Semicolons inside quoted literals are rejected rather than parsed.
func splitStatements(input string) ([]string, error) {
	inString := false
	for i := 0; i < len(input); i++ {
		switch input[i] {
		case '\'':
			if i+1 < len(input) && input[i+1] == '\'' {
				i++
				continue
			}
			inString = !inString
		case ';':
			if inString {
				return nil, errSemicolonInString
			}
		}
	}

	var kept []string
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		kept = append(kept, line)
	}

	var stmts []string
	for _, part := range strings.Split(strings.Join(kept, "\n"), ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts, nil
}

func databaseFromDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	db := strings.TrimPrefix(u.Path, "/")
	if db == "" {
		return "", errors.New("clickhouse dsn missing database")
	}
	return db, nil
}
