package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ErrorDump is a flattened view of an error chain for structured logs.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Chain      []string `json:"chain,omitempty"`
	Postgres   *PGError `json:"postgres,omitempty"`
}

// PGError carries the driver fields shared by pgx and lib/pq.
type PGError struct {
	Code       string `json:"code"`
	Class      string `json:"class,omitempty"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Column     string `json:"column,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Message    string `json:"message,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{TopMessage: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	d.Postgres = postgresError(err)
	return d
}

// Fields renders the dump as logger fields. Postgres fields are only present
// when the chain contains a driver error.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{
		"error":       d.TopMessage,
		"error_code":  d.Code,
		"error_chain": d.Chain,
	}
	if pg := d.Postgres; pg != nil {
		fields["pg_code"] = pg.Code
		fields["pg_class"] = pg.Class
		fields["pg_constraint"] = pg.Constraint
		fields["pg_table"] = pg.Table
		fields["pg_column"] = pg.Column
		fields["pg_detail"] = pg.Detail
		fields["pg_message"] = pg.Message
	}
	return fields
}

func postgresError(err error) *PGError {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return &PGError{
			Code:       pgxErr.Code,
			Class:      pgClass(pgxErr.Code),
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		return &PGError{
			Code:       code,
			Class:      pgClass(code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}
	}
	return nil
}

func pgClass(code string) string {
	switch {
	case pgerrcode.IsIntegrityConstraintViolation(code):
		return "integrity_constraint_violation"
	case pgerrcode.IsTransactionRollback(code):
		return "transaction_rollback"
	case pgerrcode.IsConnectionException(code):
		return "connection_exception"
	case pgerrcode.IsDataException(code):
		return "data_exception"
	case pgerrcode.IsInsufficientResources(code):
		return "insufficient_resources"
	default:
		return ""
	}
}
