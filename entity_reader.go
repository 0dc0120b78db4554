package cryo

import (
	"context"
	"database/sql"
	"iter"

	"github.com/cockroachdb/errors"
)

// EntityPostProcessor is an interface that can be passed as an option to NewEntityReader (or
// any of the row reading methods - EntityReader.Rows, EntityReader.Iterate, EntityReader.FirstRow, EntityReader.ExactlyOneRow, etc.)
//
// Multiple EntityPostProcessor can be used, each one is called sequentially after a row is thawed
type EntityPostProcessor[T any] interface {
	// PostProcess executes the EntityPostProcessor
	PostProcess(ctx context.Context, sqli SqlInterface, entity *T) error
}

// EntityReader reads entities from the result of a query - each row is thawed by an EntityMapper
type EntityReader[T any] interface {
	// Rows reads all rows and thaws them into a slice of `*T`
	//
	// options can be any of Query, AddClause, EntityPostProcessor[T], ErrorTranslator or Limiter
	Rows(ctx context.Context, sqli SqlInterface, args []any, options ...any) ([]*T, error)
	// Iterate iterates over the rows and calls the supplied handler with each entity
	//
	// iteration stops at the end of rows - or an error is encountered - or the supplied handler returns false for `cont` (continue)
	//
	// options can be any of Query, AddClause, EntityPostProcessor[T], ErrorTranslator or Limiter
	Iterate(ctx context.Context, sqli SqlInterface, args []any, handler func(entity *T) (cont bool, err error), options ...any) error
	// Iterator returns an iterator that can be ranged over
	//
	// an error ends the iteration and is yielded with a nil entity
	//
	// options can be any of Query, AddClause, EntityPostProcessor[T], ErrorTranslator or Limiter
	Iterator(ctx context.Context, sqli SqlInterface, args []any, options ...any) iter.Seq2[*T, error]
	// FirstRow reads just the first row and thaws it into a `*T`
	//
	// if there are no rows, returns nil
	//
	// options can be any of Query, AddClause, EntityPostProcessor[T], ErrorTranslator or Limiter (ignored)
	FirstRow(ctx context.Context, sqli SqlInterface, args []any, options ...any) (*T, error)
	// ExactlyOneRow reads exactly one row and thaws it into a `*T`
	//
	// if there are no rows, returns error sql.ErrNoRows
	//
	// options can be any of Query, AddClause, EntityPostProcessor[T], ErrorTranslator or Limiter (ignored)
	ExactlyOneRow(ctx context.Context, sqli SqlInterface, args []any, options ...any) (*T, error)
}

type entityReader[T any] struct {
	mapper          EntityMapper[T]
	defaultQuery    *Query
	postProcessors  []EntityPostProcessor[T]
	errorTranslator ErrorTranslator
}

// NewEntityReader creates a new reader of entities from query results
//
// options can be any of Query, EntityPostProcessor[T] or ErrorTranslator
func NewEntityReader[T any](mapper EntityMapper[T], options ...any) (EntityReader[T], error) {
	if mapper == nil {
		return nil, errors.New("entity reader requires a mapper")
	}
	r := &entityReader[T]{
		mapper:          mapper,
		errorTranslator: defaultErrorTranslator,
	}
	seenQuery := false
	for _, o := range options {
		if o != nil {
			switch option := o.(type) {
			case Query:
				if seenQuery {
					return nil, errors.New("cannot use multiple default queries")
				}
				seenQuery = true
				q := option
				r.defaultQuery = &q
			case EntityPostProcessor[T]:
				r.postProcessors = append(r.postProcessors, option)
			case ErrorTranslator:
				r.errorTranslator = option
			default:
				return nil, errors.Newf("unknown option type: %T", o)
			}
		}
	}
	return r, nil
}

// MustNewEntityReader is the same as NewEntityReader except that it panics on error
func MustNewEntityReader[T any](mapper EntityMapper[T], options ...any) EntityReader[T] {
	r, err := NewEntityReader[T](mapper, options...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *entityReader[T]) Rows(ctx context.Context, sqli SqlInterface, args []any, options ...any) (result []*T, err error) {
	query, postProcessors, limiter, errTranslator, err := r.rowMapOptions(options)
	if err == nil {
		var rows *sql.Rows
		if rows, err = sqli.QueryContext(ctx, query, args...); err == nil {
			defer func() {
				_ = rows.Close()
			}()
			var rr *rowReader
			if rr, err = newRowReader(rows); err == nil {
				result = make([]*T, 0)
				rowCount := 0
				for err == nil && rows.Next() {
					rowCount++
					if limiter.LimitReached(rowCount) {
						break
					}
					var item *T
					if item, err = r.thawRow(ctx, sqli, rows, rr, postProcessors); err == nil {
						result = append(result, item)
					}
				}
				if err == nil {
					err = rows.Err()
				}
			}
		}
	}
	if err != nil {
		return nil, translateError(err, errTranslator)
	}
	log().Debugw("read entities", "entity", r.mapper.EntityType().String(), "rows", len(result))
	return result, nil
}

func (r *entityReader[T]) Iterate(ctx context.Context, sqli SqlInterface, args []any, handler func(entity *T) (cont bool, err error), options ...any) (err error) {
	for item, ierr := range r.Iterator(ctx, sqli, args, options...) {
		if ierr != nil {
			return ierr
		}
		var cont bool
		if cont, err = handler(item); err != nil || !cont {
			return err
		}
	}
	return nil
}

func (r *entityReader[T]) Iterator(ctx context.Context, sqli SqlInterface, args []any, options ...any) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		query, postProcessors, limiter, errTranslator, err := r.rowMapOptions(options)
		if err != nil {
			yield(nil, translateError(err, errTranslator))
			return
		}
		rows, err := sqli.QueryContext(ctx, query, args...)
		if err != nil {
			yield(nil, translateError(err, errTranslator))
			return
		}
		defer func() {
			_ = rows.Close()
		}()
		rr, err := newRowReader(rows)
		if err != nil {
			yield(nil, translateError(err, errTranslator))
			return
		}
		rowCount := 0
		for rows.Next() {
			rowCount++
			if limiter.LimitReached(rowCount) {
				return
			}
			item, err := r.thawRow(ctx, sqli, rows, rr, postProcessors)
			if err != nil {
				yield(nil, translateError(err, errTranslator))
				return
			}
			if !yield(item, nil) {
				return
			}
		}
		if err = rows.Err(); err != nil {
			yield(nil, translateError(err, errTranslator))
		}
	}
}

func (r *entityReader[T]) FirstRow(ctx context.Context, sqli SqlInterface, args []any, options ...any) (result *T, err error) {
	query, postProcessors, _, errTranslator, err := r.rowMapOptions(options)
	if err == nil {
		var rows *sql.Rows
		if rows, err = sqli.QueryContext(ctx, query, args...); err == nil {
			defer func() {
				_ = rows.Close()
			}()
			var rr *rowReader
			if rr, err = newRowReader(rows); err == nil && rows.Next() {
				result, err = r.thawRow(ctx, sqli, rows, rr, postProcessors)
			}
		}
	}
	if err != nil {
		return nil, translateError(err, errTranslator)
	}
	return result, nil
}

func (r *entityReader[T]) ExactlyOneRow(ctx context.Context, sqli SqlInterface, args []any, options ...any) (result *T, err error) {
	query, postProcessors, _, errTranslator, err := r.rowMapOptions(options)
	if err == nil {
		var rows *sql.Rows
		if rows, err = sqli.QueryContext(ctx, query, args...); err == nil {
			defer func() {
				_ = rows.Close()
			}()
			var rr *rowReader
			if rr, err = newRowReader(rows); err == nil {
				if rows.Next() {
					result, err = r.thawRow(ctx, sqli, rows, rr, postProcessors)
				} else {
					err = sql.ErrNoRows
				}
			}
		}
	}
	if err != nil {
		return nil, translateError(err, errTranslator)
	}
	return result, nil
}

func (r *entityReader[T]) thawRow(ctx context.Context, sqli SqlInterface, rows *sql.Rows, rr *rowReader, postProcessors []EntityPostProcessor[T]) (*T, error) {
	values, err := rr.read(rows)
	if err != nil {
		return nil, err
	}
	item, err := r.mapper.Thaw(values)
	if err != nil {
		return nil, err
	}
	for _, pp := range postProcessors {
		if err = pp.PostProcess(ctx, sqli, item); err != nil {
			return nil, err
		}
	}
	return item, nil
}

func (r *entityReader[T]) rowMapOptions(options []any) (query string, postProcessors []EntityPostProcessor[T], limiter Limiter, errorTranslator ErrorTranslator, err error) {
	querySet := false
	postProcessors = append(postProcessors, r.postProcessors...)
	limiter = defaultLimiter
	errorTranslator = r.errorTranslator
	if r.defaultQuery != nil {
		querySet = true
		query = string(*r.defaultQuery)
	}
	for _, o := range options {
		if o != nil {
			switch option := o.(type) {
			case Query:
				querySet = true
				query = string(option)
			case AddClause:
				if !querySet {
					err = errors.New("add clause must have a query set")
					return
				}
				query += " " + string(option)
			case EntityPostProcessor[T]:
				postProcessors = append(postProcessors, option)
			case Limiter:
				limiter = option
			case ErrorTranslator:
				errorTranslator = option
			default:
				err = errors.Newf("unknown option type: %T", o)
				return
			}
		}
	}
	if !querySet {
		err = errors.New("no default query")
	}
	return query, postProcessors, limiter, errorTranslator, err
}

// ThawRows thaws every row of an already executed query - the rows are not closed
func ThawRows[T any](mapper EntityMapper[T], rows *sql.Rows) ([]*T, error) {
	rr, err := newRowReader(rows)
	if err != nil {
		return nil, err
	}
	result := make([]*T, 0)
	for rows.Next() {
		values, err := rr.read(rows)
		if err != nil {
			return nil, err
		}
		item, err := mapper.Thaw(values)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}
