package user

import (
	"context"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgconn"
	"github.com/pot-code/samba-client/internal/infrastructure/driver"
	"github.com/pot-code/samba-client/internal/infrastructure/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type UserSQL struct {
	Conn          driver.ITransactionalDB
	UUIDGenerator uuid.Generator
}

var _ UserRepository = &UserSQL{}

func NewUserRepository(Conn driver.ITransactionalDB, UUIDGenerator uuid.Generator) *UserSQL {
	return &UserSQL{Conn, UUIDGenerator}
}

// Migrate create the users table
func Migrate(ctx context.Context, conn driver.ITransactionalDB) error {
	_, err := conn.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS users (
		id            VARCHAR(32)  NOT NULL PRIMARY KEY,
		email         VARCHAR(128) NOT NULL UNIQUE,
		password      VARCHAR(128) NOT NULL,
		name          VARCHAR(64)  NOT NULL,
		age           VARCHAR(8)   NOT NULL DEFAULT '',
		role          VARCHAR(32)  NOT NULL DEFAULT '',
		image_uri     VARCHAR(512) NOT NULL DEFAULT '',
		phone         VARCHAR(32)  NOT NULL DEFAULT '',
		gender        VARCHAR(16)  NOT NULL DEFAULT '',
		health_done   BOOLEAN      NOT NULL DEFAULT FALSE,
		settings_done BOOLEAN      NOT NULL DEFAULT FALSE,
		login_retry   INTEGER      NOT NULL DEFAULT 0,
		last_login    BIGINT       NOT NULL DEFAULT 0
	)`)
	return err
}

const selectUser = `SELECT id, email, password, name, age, role, image_uri, phone, gender,
	health_done, settings_done, login_retry, last_login FROM users `

func (repo *UserSQL) findOne(ctx context.Context, where string, arg interface{}) (*UserModel, error) {
	row, err := repo.Conn.QueryContext(ctx, selectUser+where, arg)
	if err != nil {
		return nil, err
	}
	defer row.Close()

	if row.Next() {
		user := new(UserModel)
		if err := row.Scan(&user.ID, &user.Email, &user.Password, &user.Name, &user.Age,
			&user.Role, &user.ImageURI, &user.Phone, &user.Gender, &user.HealthDone, &user.SettingsDone,
			&user.LoginRetry, &user.LastLogin); err != nil {
			return nil, err
		}
		return user, nil
	}
	return nil, row.Err()
}

// FindByEmail returns nil when no account uses email
func (repo *UserSQL) FindByEmail(ctx context.Context, email string) (*UserModel, error) {
	return repo.findOne(ctx, `WHERE email = $1`, email)
}

// FindByID returns nil when the id is unknown
func (repo *UserSQL) FindByID(ctx context.Context, id string) (*UserModel, error) {
	return repo.findOne(ctx, `WHERE id = $1`, id)
}

func (repo *UserSQL) SaveUser(ctx context.Context, post *UserModel) error {
	// generate id
	if id, err := repo.UUIDGenerator.Generate(); err == nil {
		post.ID = id
	} else {
		return err
	}

	_, err := repo.Conn.ExecContext(ctx, `INSERT INTO users(id, email, password, name, age, role, image_uri,
		phone, gender, health_done, settings_done, login_retry, last_login)
	VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`, post.ID, post.Email, post.Password, post.Name, post.Age,
		post.Role, post.ImageURI, post.Phone, post.Gender, post.HealthDone, post.SettingsDone, post.LoginRetry, post.LastLogin)
	if isDuplicateKey(err) {
		return ErrDuplicatedUser
	}
	return err
}

func (repo *UserSQL) UpdateLogin(ctx context.Context, post *UserModel) error {
	_, err := repo.Conn.ExecContext(ctx, `UPDATE users
	SET login_retry = $1,
			last_login = $2
	WHERE id = $3`, post.LoginRetry, post.LastLogin, post.ID)
	return err
}

func (repo *UserSQL) UpdateProfile(ctx context.Context, post *UserModel) error {
	_, err := repo.Conn.ExecContext(ctx, `UPDATE users
	SET name = $1,
			age = $2,
			email = $3,
			role = $4,
			image_uri = $5,
			phone = $6,
			gender = $7,
			health_done = $8,
			settings_done = $9
	WHERE id = $10`, post.Name, post.Age, post.Email, post.Role, post.ImageURI,
		post.Phone, post.Gender, post.HealthDone, post.SettingsDone, post.ID)
	if isDuplicateKey(err) {
		return ErrDuplicatedUser
	}
	return err
}

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}
