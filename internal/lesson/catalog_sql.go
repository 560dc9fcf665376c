package lesson

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pot-code/samba-client/internal/infrastructure/driver"
	"github.com/pot-code/samba-client/internal/infrastructure/uuid"
)

// document field to column, also the whitelist of queryable fields
var fieldColumns = map[string]string{
	FieldLevel:           "level",
	FieldTitle:           "title",
	FieldSubtitle:        "subtitle",
	FieldDescription:     "description",
	FieldVideoPath:       "video_path",
	FieldTime:            "scheduled_time",
	FieldLikes:           "likes",
	FieldMaxParticipants: "max_participants",
	FieldIconID:          "icon_id",
	FieldIsPast:          "is_past",
	FieldCreatedBy:       "created_by",
}

// Migrate create the catalog tables
func Migrate(ctx context.Context, conn driver.ITransactionalDB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS lessons (
			id               VARCHAR(32)   NOT NULL PRIMARY KEY,
			level            VARCHAR(16)   NOT NULL,
			title            VARCHAR(128)  NOT NULL,
			subtitle         VARCHAR(128)  NOT NULL DEFAULT '',
			description      VARCHAR(2048) NOT NULL DEFAULT '',
			video_path       VARCHAR(512)  NOT NULL DEFAULT '',
			scheduled_time   VARCHAR(64)   NOT NULL DEFAULT '',
			likes            INTEGER       NOT NULL DEFAULT 0,
			max_participants INTEGER       NOT NULL DEFAULT 0,
			icon_id          VARCHAR(64)   NOT NULL DEFAULT '',
			is_past          BOOLEAN       NOT NULL DEFAULT FALSE,
			created_by       VARCHAR(32)   NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS user_favorites (
			uid       VARCHAR(32) NOT NULL,
			lesson_id VARCHAR(32) NOT NULL,
			PRIMARY KEY (uid, lesson_id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// SQLCatalog CatalogSource over a SQL database
type SQLCatalog struct {
	Conn          driver.ITransactionalDB
	UUIDGenerator uuid.Generator
}

var _ CatalogSource = &SQLCatalog{}

func NewSQLCatalog(Conn driver.ITransactionalDB, UUIDGenerator uuid.Generator) *SQLCatalog {
	return &SQLCatalog{Conn, UUIDGenerator}
}

func remoteErr(err error) error {
	return fmt.Errorf("%w: %v", ErrRemote, err)
}

func checkFields(fields Fields) error {
	for name := range fields {
		if _, ok := fieldColumns[name]; !ok {
			return fmt.Errorf("%w: %s", ErrUnsupportedField, name)
		}
	}
	return nil
}

// column value typed for the driver
func columnValue(fields Fields, name string) interface{} {
	switch name {
	case FieldLikes, FieldMaxParticipants:
		return fields.Int(name)
	case FieldIsPast:
		return fields.Bool(name)
	}
	return fields.String(name)
}

func (repo *SQLCatalog) Query(ctx context.Context, field string, value interface{}) ([]Document, error) {
	column, ok := fieldColumns[field]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedField, field)
	}
	rows, err := repo.Conn.QueryContext(ctx, `SELECT id, level, title, subtitle, description, video_path,
	scheduled_time, likes, max_participants, icon_id, is_past, created_by
	FROM lessons WHERE `+column+` = $1`, value)
	if err != nil {
		return nil, remoteErr(err)
	}
	defer rows.Close()

	var result []Document
	for rows.Next() {
		var (
			id, level, title, subtitle, description, videoPath string
			scheduledTime, iconID, createdBy                   string
			likes, maxParticipants                             int
			isPast                                             bool
		)
		if err := rows.Scan(&id, &level, &title, &subtitle, &description, &videoPath,
			&scheduledTime, &likes, &maxParticipants, &iconID, &isPast, &createdBy); err != nil {
			return nil, remoteErr(err)
		}
		result = append(result, Document{ID: id, Fields: Fields{
			FieldLevel:           level,
			FieldTitle:           title,
			FieldSubtitle:        subtitle,
			FieldDescription:     description,
			FieldVideoPath:       videoPath,
			FieldTime:            scheduledTime,
			FieldLikes:           likes,
			FieldMaxParticipants: maxParticipants,
			FieldIconID:          iconID,
			FieldIsPast:          isPast,
			FieldCreatedBy:       createdBy,
		}})
	}
	if err := rows.Err(); err != nil {
		return nil, remoteErr(err)
	}
	return result, nil
}

// Add store a new document and return its generated id
func (repo *SQLCatalog) Add(ctx context.Context, fields Fields) (string, error) {
	if err := checkFields(fields); err != nil {
		return "", err
	}
	id, err := repo.UUIDGenerator.Generate()
	if err != nil {
		return "", err
	}
	item := FromDocument(Document{ID: id, Fields: fields})
	_, err = repo.Conn.ExecContext(ctx, `INSERT INTO lessons(id, level, title, subtitle, description, video_path,
	scheduled_time, likes, max_participants, icon_id, is_past, created_by)
	VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		item.ID, string(item.Category), item.Title, item.Subtitle, item.Description, item.MediaPath,
		item.ScheduledTime, item.Registered, item.Capacity, item.IconID, item.IsPast, item.CreatorID)
	if err != nil {
		return "", remoteErr(err)
	}
	return id, nil
}

// Update set the given fields only
func (repo *SQLCatalog) Update(ctx context.Context, id string, fields Fields) error {
	if err := checkFields(fields); err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	sets := make([]string, 0, len(names))
	args := make([]interface{}, 0, len(names)+1)
	for i, name := range names {
		sets = append(sets, fmt.Sprintf("%s = $%d", fieldColumns[name], i+1))
		args = append(args, columnValue(fields, name))
	}
	args = append(args, id)
	res, err := repo.Conn.ExecContext(ctx, `UPDATE lessons SET `+strings.Join(sets, ", ")+
		fmt.Sprintf(` WHERE id = $%d`, len(args)), args...)
	if err != nil {
		return remoteErr(err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	// mysql reports 0 affected rows for a no-op update
	exists, err := repo.exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return ErrDocumentNotFound
	}
	return nil
}

func (repo *SQLCatalog) exists(ctx context.Context, id string) (bool, error) {
	rows, err := repo.Conn.QueryContext(ctx, `SELECT 1 FROM lessons WHERE id = $1`, id)
	if err != nil {
		return false, remoteErr(err)
	}
	defer rows.Close()
	found := rows.Next()
	return found, rows.Err()
}

func (repo *SQLCatalog) Delete(ctx context.Context, id string) error {
	res, err := repo.Conn.ExecContext(ctx, `DELETE FROM lessons WHERE id = $1`, id)
	if err != nil {
		return remoteErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return remoteErr(err)
	}
	if n == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// SQLFavoriteMirror FavoriteMirror over the user_favorites table
type SQLFavoriteMirror struct {
	Conn driver.ITransactionalDB
}

var _ FavoriteMirror = &SQLFavoriteMirror{}

func NewSQLFavoriteMirror(Conn driver.ITransactionalDB) *SQLFavoriteMirror {
	return &SQLFavoriteMirror{Conn}
}

// SetFavorite make the marker row match favorite
func (repo *SQLFavoriteMirror) SetFavorite(ctx context.Context, uid, itemID string, favorite bool) (err error) {
	tx, err := repo.Conn.BeginTx(ctx, nil)
	if err != nil {
		return remoteErr(err)
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM user_favorites WHERE uid = $1 AND lesson_id = $2`, uid, itemID); err != nil {
		return remoteErr(err)
	}
	if favorite {
		if _, err = tx.ExecContext(ctx, `INSERT INTO user_favorites(uid, lesson_id) VALUES($1, $2)`, uid, itemID); err != nil {
			return remoteErr(err)
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return remoteErr(err)
	}
	return nil
}

// Favorites lesson ids marked by uid
func (repo *SQLFavoriteMirror) Favorites(ctx context.Context, uid string) ([]string, error) {
	rows, err := repo.Conn.QueryContext(ctx, `SELECT lesson_id FROM user_favorites WHERE uid = $1 ORDER BY lesson_id`, uid)
	if err != nil {
		return nil, remoteErr(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, remoteErr(err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
