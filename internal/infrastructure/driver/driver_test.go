package driver

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestGetDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  *DBConfig
		want string
	}{
		{"mysql with protocol", &DBConfig{Driver: DriverMySQL, User: "root", Password: "pw", Protocol: "tcp", Host: "127.0.0.1", Port: 3306, Schema: "samba", Query: "parseTime=true"},
			"root:pw@tcp(127.0.0.1:3306)/samba?parseTime=true"},
		{"postgres", &DBConfig{Driver: DriverPostgres, User: "pg", Password: "pw", Host: "db", Port: 5432, Schema: "samba"},
			"pg:pw@db:5432/samba"},
		{"sqlite", &DBConfig{Driver: DriverSQLite, Host: "catalog.db", Query: "_pragma=foreign_keys(1)"},
			"catalog.db?_pragma=foreign_keys(1)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := getDSN(tt.cfg); got != tt.want {
				t.Errorf("getDSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestQuestionMarkAdapter(t *testing.T) {
	got := questionMarkAdapter(`SELECT "id"
	FROM lessons WHERE level = $1 AND created_by = $2`)
	want := "SELECT `id` FROM lessons WHERE level = ? AND created_by = ?"
	if got != want {
		t.Errorf("questionMarkAdapter() = %q, want %q", got, want)
	}
}

func TestGetDBConnectionUnsupported(t *testing.T) {
	if _, err := GetDBConnection(&DBConfig{Driver: "oracle"}); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	conn, err := GetDBConnection(&DBConfig{Driver: DriverSQLite, Host: "file:driver_roundtrip?mode=memory&cache=shared"})
	if err != nil {
		t.Fatalf("GetDBConnection: %v", err)
	}
	t.Cleanup(func() { conn.Close(ctx) })

	if err := conn.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if _, err := conn.ExecContext(ctx, `CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT)`); err != nil {
		t.Fatalf("create: %v", err)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	if _, err := tx.BeginTx(ctx, nil); err != ErrNestedTx {
		t.Errorf("nested BeginTx err = %v, want ErrNestedTx", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO kv(k, v) VALUES($1, $2)`, "a", "1"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	rows, err := conn.QueryContext(ctx, `SELECT v FROM kv WHERE k = $1`, "a")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rows.Close()
	if !rows.Next() {
		t.Fatal("expected one row")
	}
	var v string
	if err := rows.Scan(&v); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if v != "1" {
		t.Errorf("v = %q, want 1", v)
	}
}

func TestRedisClient(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := NewRedisClientAddr(mr.Addr(), "")
	t.Cleanup(func() { rdb.Close() })

	if _, err := rdb.Get(ctx, "missing"); err != ErrKeyNotFound {
		t.Errorf("Get missing err = %v, want ErrKeyNotFound", err)
	}
	if err := rdb.SetEX(ctx, "name", "ana", time.Minute); err != nil {
		t.Fatalf("SetEX: %v", err)
	}
	if v, err := rdb.Get(ctx, "name"); err != nil || v != "ana" {
		t.Errorf("Get = %q, %v", v, err)
	}

	for i := 0; i < 2; i++ {
		if err := rdb.SAdd(ctx, "set", "x"); err != nil {
			t.Fatalf("SAdd: %v", err)
		}
	}
	members, err := rdb.SMembers(ctx, "set")
	if err != nil || len(members) != 1 {
		t.Errorf("SMembers = %v, %v", members, err)
	}
	if err := rdb.SRem(ctx, "set", "absent"); err != nil {
		t.Errorf("SRem absent: %v", err)
	}
	if ok, _ := rdb.SIsMember(ctx, "set", "x"); !ok {
		t.Error("SIsMember = false, want true")
	}
}
