package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crudapi/internal/logging"
	"crudapi/internal/mutate"
	"crudapi/internal/schema"
)

const testSchema = `
entities:
  - name: Post
    table: posts
    fields:
      - name: id
        primary: true
      - name: title
      - name: slug
        unique: true
    relations:
      - name: category
        entity: Category
        cardinality: singular
        foreign_key: category_id
      - name: tags
        entity: Tag
        cardinality: list
        foreign_key: post_id
  - name: Category
    table: categories
    fields:
      - name: title
  - name: Tag
    table: tags
    fields:
      - name: label
        unique: true
`

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	registry, err := schema.Parse([]byte(testSchema), nil)
	require.NoError(t, err)

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := logging.NewLogger(logging.Config{Level: "error", Format: "text"})
	return New(registry, db, logger, nil), mock
}

func postRow(id, title, slug string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "title", "slug"}).AddRow(id, title, slug)
}

const selectPostSQL = "SELECT `id`, `title`, `slug` FROM `posts` WHERE `id` = ?"

func TestCreateSimple(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `posts` (`id`,`title`) VALUES (?,?)").
		WithArgs(sqlmock.AnyArg(), "hello").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(selectPostSQL).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(postRow("p1", "hello", ""))

	record, err := svc.Create(context.Background(), "Post", map[string]any{"title": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", record["title"])
	assert.Equal(t, "p1", record["id"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithListConnect(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `posts` (`id`,`title`) VALUES (?,?)").
		WithArgs(sqlmock.AnyArg(), "hello").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `tags` SET `post_id` = ? WHERE `id` = ?").
		WithArgs(sqlmock.AnyArg(), "t1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(selectPostSQL).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(postRow("p1", "hello", ""))

	_, err := svc.Create(context.Background(), "Post", map[string]any{
		"title": "hello",
		"tags":  []any{map[string]any{"id": "t1"}},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithNestedSingularCreate(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectBegin()
	// The related category is created first so the post can store its id.
	mock.ExpectExec("INSERT INTO `categories` (`id`,`title`) VALUES (?,?)").
		WithArgs(sqlmock.AnyArg(), "Books").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `posts` (`category_id`,`id`,`title`) VALUES (?,?,?)").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "hello").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(selectPostSQL).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(postRow("p1", "hello", ""))

	_, err := svc.Create(context.Background(), "Post", map[string]any{
		"title":    "hello",
		"category": map[string]any{"title": "Books"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithNestedListCreate(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `posts` (`id`,`title`) VALUES (?,?)").
		WithArgs(sqlmock.AnyArg(), "hello").
		WillReturnResult(sqlmock.NewResult(0, 1))
	// Child row carries the parent's foreign key.
	mock.ExpectExec("INSERT INTO `tags` (`id`,`label`,`post_id`) VALUES (?,?,?)").
		WithArgs(sqlmock.AnyArg(), "golang", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(selectPostSQL).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(postRow("p1", "hello", ""))

	_, err := svc.Create(context.Background(), "Post", map[string]any{
		"title": "hello",
		"tags":  []any{map[string]any{"label": "golang", "apiAction": "create"}},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateWithDeleteMany(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery(selectPostSQL).
		WithArgs("p1").
		WillReturnRows(postRow("p1", "old", ""))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `posts` SET `title` = ? WHERE `id` = ?").
		WithArgs("new", "p1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM `tags` WHERE `id` IN (?,?)").
		WithArgs("t1", "t2").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()
	mock.ExpectQuery(selectPostSQL).
		WithArgs("p1").
		WillReturnRows(postRow("p1", "new", ""))

	record, err := svc.Update(context.Background(), "Post", "p1", map[string]any{
		"title": "new",
		"tags": []any{
			map[string]any{"id": "t1", "apiAction": "delete"},
			map[string]any{"id": "t2", "apiAction": "delete"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "new", record["title"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSingularDisconnect(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery(selectPostSQL).
		WithArgs("p1").
		WillReturnRows(postRow("p1", "hello", ""))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `posts` SET `category_id` = ? WHERE `id` = ?").
		WithArgs(nil, "p1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(selectPostSQL).
		WithArgs("p1").
		WillReturnRows(postRow("p1", "hello", ""))

	_, err := svc.Update(context.Background(), "Post", "p1", map[string]any{
		"category": map[string]any{"apiAction": "disconnect"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateConnectByUniqueField(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery(selectPostSQL).
		WithArgs("p1").
		WillReturnRows(postRow("p1", "hello", ""))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT `id` FROM `tags` WHERE `label` = ?").
		WithArgs("golang").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("t7"))
	mock.ExpectExec("UPDATE `tags` SET `post_id` = ? WHERE `label` = ?").
		WithArgs("p1", "golang").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(selectPostSQL).
		WithArgs("p1").
		WillReturnRows(postRow("p1", "hello", ""))

	_, err := svc.Update(context.Background(), "Post", "p1", map[string]any{
		"tags": []any{map[string]any{"label": "golang", "apiAction": "connect"}},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetNotFound(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery(selectPostSQL).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "slug"}))

	_, err := svc.Get(context.Background(), "Post", "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestList(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery("SELECT `id`, `title`, `slug` FROM `posts` ORDER BY `id` ASC LIMIT 2").
		WillReturnRows(postRow("p1", "a", "").AddRow("p2", "b", ""))

	records, err := svc.List(context.Background(), "Post", 2, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "p2", records[1]["id"])
}

func TestDeleteNotFound(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectExec("DELETE FROM `posts` WHERE `id` = ?").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := svc.Delete(context.Background(), "Post", "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateUnknownEntity(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Create(context.Background(), "Widget", map[string]any{})
	require.ErrorIs(t, err, ErrUnknownEntity)
}

func TestCreateUnknownField(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.Create(context.Background(), "Post", map[string]any{"bogus": 1})
	require.ErrorIs(t, err, ErrUnknownField)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRejectsInvalidAction(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Create(context.Background(), "Post", map[string]any{
		"tags": []any{map[string]any{"apiAction": "bogus"}},
	})
	require.ErrorIs(t, err, mutate.ErrInvalidAction)
}

func TestCreateRollsBackOnChildFailure(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `posts` (`id`,`title`) VALUES (?,?)").
		WithArgs(sqlmock.AnyArg(), "hello").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `tags` SET `post_id` = ? WHERE `id` = ?").
		WithArgs(sqlmock.AnyArg(), "t1").
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	_, err := svc.Create(context.Background(), "Post", map[string]any{
		"title": "hello",
		"tags":  []any{map[string]any{"id": "t1"}},
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
