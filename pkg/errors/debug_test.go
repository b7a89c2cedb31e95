package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestDumpExtractsPgxDiagnostics(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "orders_payment_intent_id_key", TableName: "orders"}
	err := Wrap(CodeConflict, fmt.Errorf("insert order: %w", pgErr), "order already exists")

	d := Dump(err)
	if d.Code != CodeConflict {
		t.Fatalf("unexpected code %s", d.Code)
	}
	if d.PG == nil || d.PG.Code != "23505" || d.PG.Constraint != "orders_payment_intent_id_key" {
		t.Fatalf("postgres info not extracted: %+v", d.PG)
	}
	if len(d.Chain) != 3 {
		t.Fatalf("expected three links in the chain, got %d", len(d.Chain))
	}
	if d.Fields()["pg_table"] != "orders" {
		t.Fatalf("pg fields missing from log fields")
	}
}

func TestDumpExtractsLibPqDiagnostics(t *testing.T) {
	d := Dump(&pq.Error{Code: "40001", Message: "could not serialize access"})
	if d.PG == nil || d.PG.Code != "40001" || d.PG.Message != "could not serialize access" {
		t.Fatalf("lib/pq info not extracted: %+v", d.PG)
	}
}

func TestDumpPlainError(t *testing.T) {
	d := Dump(stdErrors.New("boom"))
	if d.PG != nil {
		t.Fatalf("plain errors carry no postgres info")
	}
	if _, ok := d.Fields()["pg_code"]; ok {
		t.Fatalf("pg fields should be omitted")
	}
	if Dump(nil).TopMessage != "" {
		t.Fatalf("nil error should dump empty")
	}
}
