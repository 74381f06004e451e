package db

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dsr-backend/internal/shared/telemetry"
)

type nopDriver struct{}

func (d nopDriver) Open(name string) (driver.Conn, error) {
	return nopConn{}, nil
}

type nopConn struct{}

func (nopConn) Prepare(query string) (driver.Stmt, error) { return nopStmt{}, nil }
func (nopConn) Close() error                              { return nil }
func (nopConn) Begin() (driver.Tx, error)                 { return nopTx{}, nil }
func (nopConn) Ping(ctx context.Context) error            { return nil }

type nopStmt struct{}

func (nopStmt) Close() error                                   { return nil }
func (nopStmt) NumInput() int                                  { return -1 }
func (nopStmt) Exec(args []driver.Value) (driver.Result, error) { return nopResult{}, nil }
func (nopStmt) Query(args []driver.Value) (driver.Rows, error)  { return nopRows{}, nil }

type nopTx struct{}

func (nopTx) Commit() error   { return nil }
func (nopTx) Rollback() error { return nil }

type nopResult struct{}

func (nopResult) LastInsertId() (int64, error) { return 0, nil }
func (nopResult) RowsAffected() (int64, error) { return 0, nil }

type nopRows struct{}

func (nopRows) Columns() []string              { return []string{} }
func (nopRows) Close() error                   { return nil }
func (nopRows) Next(dest []driver.Value) error { return driver.ErrBadConn }

var registerTestDriverOnce sync.Once

func ensureTestDriverRegistered() {
	registerTestDriverOnce.Do(func() {
		sql.Register("dbtest", nopDriver{})
	})
}

func withTestDriver(t *testing.T) func() {
	t.Helper()
	ensureTestDriverRegistered()
	prev := openDB
	openDB = func(name, dsn string) (*sql.DB, error) {
		return sql.Open("dbtest", dsn)
	}
	return func() {
		openDB = prev
	}
}

func resetShared() {
	sharedMu.Lock()
	shared = nil
	sharedMu.Unlock()
}

func TestGetSingletonReturnsSamePointer(t *testing.T) {
	restore := withTestDriver(t)
	defer restore()

	resetShared()

	db1, err := GetSingleton(context.Background(), "ignored", LambdaOptions(Options{}))
	if err != nil {
		t.Fatalf("GetSingleton first: %v", err)
	}
	db2, err := GetSingleton(context.Background(), "ignored", LambdaOptions(Options{}))
	if err != nil {
		t.Fatalf("GetSingleton second: %v", err)
	}
	if db1 != db2 {
		t.Fatalf("expected singleton pointers to match")
	}
}

func TestConnectAppliesOptions(t *testing.T) {
	restore := withTestDriver(t)
	defer restore()

	opts := Options{
		MaxOpenConns:    7,
		MaxIdleConns:    3,
		ConnMaxLifetime: 20 * time.Minute,
		ConnMaxIdleTime: 45 * time.Second,
		PingTimeout:     time.Second,
	}
	db, err := Connect(context.Background(), "ignored", opts)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer db.Close()

	if stats := db.Stats(); stats.MaxOpenConnections != 7 {
		t.Fatalf("expected MaxOpenConnections=7, got %d", stats.MaxOpenConnections)
	}
}

func TestConnectRejectsEmptyURL(t *testing.T) {
	if _, err := Connect(context.Background(), "  ", Options{}); err == nil {
		t.Fatalf("expected error for empty DATABASE_URL")
	}
}

func TestLambdaOptionsCapsPool(t *testing.T) {
	opts := LambdaOptions(Options{MaxOpenConns: 25, MaxIdleConns: 10})
	if opts.MaxOpenConns != 2 || opts.MaxIdleConns != 1 {
		t.Fatalf("unexpected lambda pool: %+v", opts)
	}
	if m := MigrateOptions(Options{MaxOpenConns: 25}); m.MaxOpenConns != 1 {
		t.Fatalf("expected single connection for migrations, got %d", m.MaxOpenConns)
	}
}

func TestGetSingletonRetriesAfterFailure(t *testing.T) {
	var calls int32
	prev := openDB
	openDB = func(name, dsn string) (*sql.DB, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, driver.ErrBadConn
		}
		ensureTestDriverRegistered()
		return sql.Open("dbtest", dsn)
	}
	defer func() {
		openDB = prev
	}()
	ensureTestDriverRegistered()

	resetShared()

	_, err := GetSingleton(context.Background(), "ignored", LambdaOptions(Options{}))
	if err == nil {
		t.Fatalf("expected first call to fail")
	}
	db2, err := GetSingleton(context.Background(), "ignored", LambdaOptions(Options{}))
	if err != nil {
		t.Fatalf("expected second call to succeed: %v", err)
	}
	if db2 == nil {
		t.Fatalf("expected db after retry")
	}
}

func TestConnectLogsPoolStats(t *testing.T) {
	restore := withTestDriver(t)
	defer restore()
	var buf bytes.Buffer
	telemetry.SetOutput(&buf)
	t.Cleanup(func() { telemetry.SetOutput(os.Stdout) })

	db, err := Connect(context.Background(), "ignored", MigrateOptions(Options{}))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer db.Close()

	if !strings.Contains(buf.String(), `"msg":"db.init"`) || !strings.Contains(buf.String(), `"max_open":1`) {
		t.Fatalf("expected db.init pool stats, got %s", buf.String())
	}
}

func TestMigrationsWithoutDatabase(t *testing.T) {
	if err := RunMigrations(context.Background(), nil); err != nil {
		t.Fatalf("RunMigrations(nil) should be a no-op, got %v", err)
	}
	if err := MigrationStatus(context.Background(), nil); err == nil {
		t.Fatalf("MigrationStatus(nil) should fail")
	}
}

func TestGooseLoggerWritesStructuredLines(t *testing.T) {
	var buf bytes.Buffer
	telemetry.SetOutput(&buf)
	t.Cleanup(func() { telemetry.SetOutput(os.Stdout) })

	gooseLogger{}.Printf("OK   %s (%s)\n", "00001_init.sql", "12ms")

	if !strings.Contains(buf.String(), `"detail":"OK   00001_init.sql (12ms)"`) {
		t.Fatalf("unexpected log line: %s", buf.String())
	}
}
