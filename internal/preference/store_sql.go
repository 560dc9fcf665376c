package preference

import (
	"context"

	"github.com/pot-code/samba-client/internal/infrastructure/driver"
)

// SQLStore Store implementation backed by a device-local SQL database (sqlite)
type SQLStore struct {
	Conn      driver.ITransactionalDB
	Namespace string
}

var _ Store = &SQLStore{}

// NewSQLStore create the store and its tables, namespace scopes keys to one application
func NewSQLStore(ctx context.Context, Conn driver.ITransactionalDB, Namespace string) (*SQLStore, error) {
	store := &SQLStore{Conn: Conn, Namespace: Namespace}
	if err := store.migrate(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (ss *SQLStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS pref_set_member (
			ns     VARCHAR(64)  NOT NULL,
			name   VARCHAR(128) NOT NULL,
			member VARCHAR(128) NOT NULL,
			PRIMARY KEY (ns, name, member)
		)`,
		`CREATE TABLE IF NOT EXISTS pref_scalar (
			ns    VARCHAR(64)  NOT NULL,
			name  VARCHAR(128) NOT NULL,
			value TEXT         NOT NULL,
			PRIMARY KEY (ns, name)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := ss.Conn.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (ss *SQLStore) AddToSet(ctx context.Context, set, member string) error {
	if err := checkKeys(set, member); err != nil {
		return err
	}
	_, err := ss.Conn.ExecContext(ctx, `INSERT INTO pref_set_member(ns, name, member)
	VALUES($1, $2, $3)
	ON CONFLICT DO NOTHING`, ss.Namespace, set, member)
	return err
}

func (ss *SQLStore) RemoveFromSet(ctx context.Context, set, member string) error {
	if err := checkKeys(set, member); err != nil {
		return err
	}
	_, err := ss.Conn.ExecContext(ctx, `DELETE FROM pref_set_member
	WHERE ns = $1 AND name = $2 AND member = $3`, ss.Namespace, set, member)
	return err
}

func (ss *SQLStore) Contains(ctx context.Context, set, member string) (bool, error) {
	if err := checkKeys(set, member); err != nil {
		return false, err
	}
	rows, err := ss.Conn.QueryContext(ctx, `SELECT 1 FROM pref_set_member
	WHERE ns = $1 AND name = $2 AND member = $3`, ss.Namespace, set, member)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	found := rows.Next()
	return found, rows.Err()
}

func (ss *SQLStore) GetAll(ctx context.Context, set string) (Set, error) {
	if err := checkKeys(set); err != nil {
		return nil, err
	}
	rows, err := ss.Conn.QueryContext(ctx, `SELECT member FROM pref_set_member
	WHERE ns = $1 AND name = $2`, ss.Namespace, set)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := NewSet()
	for rows.Next() {
		var member string
		if err := rows.Scan(&member); err != nil {
			return nil, err
		}
		result[member] = struct{}{}
	}
	return result, rows.Err()
}

func (ss *SQLStore) SetScalar(ctx context.Context, name, value string) error {
	if err := checkKeys(name); err != nil {
		return err
	}
	_, err := ss.Conn.ExecContext(ctx, `INSERT INTO pref_scalar(ns, name, value)
	VALUES($1, $2, $3)
	ON CONFLICT(ns, name) DO UPDATE SET value = excluded.value`, ss.Namespace, name, value)
	return err
}

func (ss *SQLStore) GetScalar(ctx context.Context, name string) (string, bool, error) {
	if err := checkKeys(name); err != nil {
		return "", false, err
	}
	rows, err := ss.Conn.QueryContext(ctx, `SELECT value FROM pref_scalar
	WHERE ns = $1 AND name = $2`, ss.Namespace, name)
	if err != nil {
		return "", false, err
	}
	defer rows.Close()

	if !rows.Next() {
		return "", false, rows.Err()
	}
	var value string
	if err := rows.Scan(&value); err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (ss *SQLStore) DeleteScalar(ctx context.Context, name string) error {
	if err := checkKeys(name); err != nil {
		return err
	}
	_, err := ss.Conn.ExecContext(ctx, `DELETE FROM pref_scalar
	WHERE ns = $1 AND name = $2`, ss.Namespace, name)
	return err
}

func (ss *SQLStore) Ping(ctx context.Context) error {
	return ss.Conn.Ping(ctx)
}

func (ss *SQLStore) Close(ctx context.Context) error {
	return ss.Conn.Close(ctx)
}
