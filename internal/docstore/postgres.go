package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"follicle-match/internal/common/errors"

	"github.com/lib/pq"
)

// Schema creates the single JSONB table backing every collection.
const Schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_collection_idx ON documents (collection);
`

const (
	getSQL    = `SELECT data FROM documents WHERE collection = $1 AND id = $2`
	lockSQL   = `SELECT data FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE`
	deleteSQL = `DELETE FROM documents WHERE collection = $1 AND id = $2`
	upsertSQL = `INSERT INTO documents (collection, id, data, updated_at) VALUES ($1, $2, $3, now())
ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`
)

var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// PostgresStore keeps each document as a JSONB row keyed by collection path
// and id.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// Migrate creates the documents table when missing.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, Schema); err != nil {
		return errors.NewQueryExecutionFailedError("migrate", err)
	}
	return nil
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *PostgresStore) Get(ctx context.Context, collection, id string) (Doc, error) {
	var raw []byte
	err := p.db.QueryRowContext(ctx, getSQL, collection, id).Scan(&raw)
	if stderrors.Is(err, sql.ErrNoRows) {
		return Doc{}, ErrNotFound
	}
	if err != nil {
		return Doc{}, errors.NewQueryExecutionFailedError("get "+collection, err)
	}

	data, err := unmarshalData(raw)
	if err != nil {
		return Doc{}, err
	}
	return Doc{ID: id, Data: data}, nil
}

func (p *PostgresStore) Query(ctx context.Context, q Query) ([]Doc, error) {
	where, args, err := buildWhere(q)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT id, data FROM documents WHERE ")
	sb.WriteString(where)
	if q.OrderBy != "" {
		if !fieldName.MatchString(q.OrderBy) {
			return nil, fmt.Errorf("docstore: invalid order field %q", q.OrderBy)
		}
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		fmt.Fprintf(&sb, " ORDER BY data->>'%s' %s, id ASC", q.OrderBy, dir)
	} else {
		sb.WriteString(" ORDER BY id ASC")
	}
	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", q.Limit)
	}

	rows, err := p.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("query "+q.Collection, err)
	}
	defer rows.Close()

	var docs []Doc
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, errors.NewQueryExecutionFailedError("scan "+q.Collection, err)
		}
		data, err := unmarshalData(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, Doc{ID: id, Data: data})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("query "+q.Collection, err)
	}
	return docs, nil
}

func (p *PostgresStore) Count(ctx context.Context, q Query) (int, error) {
	where, args, err := buildWhere(q)
	if err != nil {
		return 0, err
	}

	var n int
	if err := p.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents WHERE "+where, args...).Scan(&n); err != nil {
		return 0, errors.NewQueryExecutionFailedError("count "+q.Collection, err)
	}
	return n, nil
}

func (p *PostgresStore) Set(ctx context.Context, collection, id string, data interface{}) error {
	return p.RunBatch(ctx, func(b Batch) error {
		b.Set(collection, id, data)
		return nil
	})
}

func (p *PostgresStore) Merge(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	return p.RunBatch(ctx, func(b Batch) error {
		b.Merge(collection, id, fields)
		return nil
	})
}

func (p *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	if _, err := p.db.ExecContext(ctx, deleteSQL, collection, id); err != nil {
		return errors.NewQueryExecutionFailedError("delete "+collection, err)
	}
	return nil
}

// RunBatch applies the recorded writes in one transaction. Merges lock the
// target row before reading it.
func (p *PostgresStore) RunBatch(ctx context.Context, fn func(Batch) error) (err error) {
	b := &batch{}
	if err := fn(b); err != nil {
		return err
	}
	if b.err != nil {
		return b.err
	}
	if len(b.writes) == 0 {
		return nil
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewDatabaseConnectionFailedError(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := p.now()
	for _, w := range b.writes {
		if err = p.apply(ctx, tx, w, now); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.NewQueryExecutionFailedError("commit", err)
	}
	return nil
}

func (p *PostgresStore) apply(ctx context.Context, tx *sql.Tx, w write, now time.Time) error {
	switch w.kind {
	case opDelete:
		if _, err := tx.ExecContext(ctx, deleteSQL, w.collection, w.id); err != nil {
			return errors.NewQueryExecutionFailedError("delete "+w.collection, err)
		}
		return nil

	case opMerge:
		var raw []byte
		err := tx.QueryRowContext(ctx, lockSQL, w.collection, w.id).Scan(&raw)
		doc := map[string]interface{}{}
		switch {
		case stderrors.Is(err, sql.ErrNoRows):
		case err != nil:
			return errors.NewQueryExecutionFailedError("lock "+w.collection, err)
		default:
			if doc, err = unmarshalData(raw); err != nil {
				return err
			}
		}
		applyMerge(doc, w.fields, now)
		return upsert(ctx, tx, w.collection, w.id, doc)

	default:
		return upsert(ctx, tx, w.collection, w.id, w.data)
	}
}

func upsert(ctx context.Context, tx *sql.Tx, collection, id string, data map[string]interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("docstore: marshal %s/%s: %w", collection, id, err)
	}
	if _, err := tx.ExecContext(ctx, upsertSQL, collection, id, raw); err != nil {
		return errors.NewQueryExecutionFailedError("upsert "+collection, err)
	}
	return nil
}

func unmarshalData(raw []byte) (map[string]interface{}, error) {
	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("docstore: corrupt document: %w", err)
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	return data, nil
}

// buildWhere renders the collection predicate and filters. Numeric
// comparisons cast the extracted text; strings, including timestamps in
// TimeLayout, compare as text.
func buildWhere(q Query) (string, []interface{}, error) {
	clauses := []string{"collection = $1"}
	args := []interface{}{q.Collection}

	for _, f := range q.Filters {
		if !fieldName.MatchString(f.Field) {
			return "", nil, fmt.Errorf("docstore: invalid filter field %q", f.Field)
		}
		value, err := filterValue(f.Value)
		if err != nil {
			return "", nil, err
		}
		col := fmt.Sprintf("data->>'%s'", f.Field)

		if value == nil {
			if f.Op != OpEq {
				return "", nil, fmt.Errorf("docstore: nil value only supports ==")
			}
			clauses = append(clauses, col+" IS NULL")
			continue
		}

		if f.Op == OpIn {
			list, ok := value.([]interface{})
			if !ok {
				return "", nil, fmt.Errorf("docstore: in filter on %s needs a list", f.Field)
			}
			strs := make([]string, len(list))
			for i, v := range list {
				strs[i] = fmt.Sprint(v)
			}
			args = append(args, pq.Array(strs))
			clauses = append(clauses, fmt.Sprintf("%s = ANY($%d)", col, len(args)))
			continue
		}

		sqlOp, err := sqlOperator(f.Op)
		if err != nil {
			return "", nil, err
		}
		switch v := value.(type) {
		case float64:
			args = append(args, v)
			clauses = append(clauses, fmt.Sprintf("(%s)::double precision %s $%d", col, sqlOp, len(args)))
		case bool:
			args = append(args, fmt.Sprint(v))
			clauses = append(clauses, fmt.Sprintf("%s %s $%d", col, sqlOp, len(args)))
		case string:
			args = append(args, v)
			clauses = append(clauses, fmt.Sprintf("%s %s $%d", col, sqlOp, len(args)))
		default:
			return "", nil, fmt.Errorf("docstore: unsupported filter value %T on %s", value, f.Field)
		}
	}
	return strings.Join(clauses, " AND "), args, nil
}

func sqlOperator(op Op) (string, error) {
	switch op {
	case OpEq:
		return "=", nil
	case OpGt:
		return ">", nil
	case OpGte:
		return ">=", nil
	case OpLt:
		return "<", nil
	case OpLte:
		return "<=", nil
	}
	return "", fmt.Errorf("docstore: unsupported operator %q", op)
}
