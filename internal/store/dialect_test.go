package store

import (
	"errors"
	"fmt"
	"testing"
)

func TestParamBuilders(t *testing.T) {
	pg := (&PostgresDialect{}).NewParamBuilder()
	if ph := pg.Add("a"); ph != "$1" {
		t.Errorf("pg first placeholder = %s", ph)
	}
	if ph := pg.Add("b"); ph != "$2" {
		t.Errorf("pg second placeholder = %s", ph)
	}
	if len(pg.Params()) != 2 || pg.Count() != 2 {
		t.Errorf("pg params = %v count = %d", pg.Params(), pg.Count())
	}

	lite := (&SQLiteDialect{}).NewParamBuilder()
	if ph := lite.Add("a"); ph != "?1" {
		t.Errorf("sqlite first placeholder = %s", ph)
	}
	if ph := lite.Add("b"); ph != "?2" {
		t.Errorf("sqlite second placeholder = %s", ph)
	}
}

func TestSQLiteArrayRoundTrip(t *testing.T) {
	d := &SQLiteDialect{}
	stored := d.ArrayParam([]string{"admin", "user"})
	s, ok := stored.(string)
	if !ok {
		t.Fatalf("sqlite arrays must be stored as JSON strings, got %T", stored)
	}
	roles, err := d.ScanArray(s)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(roles) != 2 || roles[0] != "admin" || roles[1] != "user" {
		t.Errorf("round trip = %v", roles)
	}
}

func TestSQLiteScanArrayEmpty(t *testing.T) {
	d := &SQLiteDialect{}
	for _, src := range []any{nil, "", "[]"} {
		roles, err := d.ScanArray(src)
		if err != nil {
			t.Errorf("%v: %v", src, err)
		}
		if len(roles) != 0 {
			t.Errorf("%v: expected empty, got %v", src, roles)
		}
	}
}

func TestPostgresScanArrayLiterals(t *testing.T) {
	d := &PostgresDialect{}
	cases := []struct {
		src  any
		want []string
	}{
		{"{admin,user}", []string{"admin", "user"}},
		{`{"admin","user"}`, []string{"admin", "user"}},
		{"{}", []string{}},
		{[]string{"admin"}, []string{"admin"}},
		{[]any{"admin", "user"}, []string{"admin", "user"}},
		{nil, []string{}},
	}
	for _, tc := range cases {
		got, err := d.ScanArray(tc.src)
		if err != nil {
			t.Errorf("%v: %v", tc.src, err)
			continue
		}
		if len(got) != len(tc.want) {
			t.Errorf("%v: got %v, want %v", tc.src, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("%v: got %v, want %v", tc.src, got, tc.want)
				break
			}
		}
	}
}

func TestFilterCountExpr(t *testing.T) {
	pg := (&PostgresDialect{}).FilterCountExpr("status = 'success'")
	if pg != "COUNT(*) FILTER (WHERE status = 'success')" {
		t.Errorf("pg expr = %s", pg)
	}
	lite := (&SQLiteDialect{}).FilterCountExpr("status = 'success'")
	if lite != "SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END)" {
		t.Errorf("sqlite expr = %s", lite)
	}
}

func TestMapErrorUniqueViolation(t *testing.T) {
	lite := &SQLiteDialect{}
	err := lite.MapError(errors.New("constraint failed: UNIQUE constraint failed: payments.provider_session_id"))
	if !errors.Is(err, ErrUniqueViolation) {
		t.Errorf("sqlite unique violation not mapped: %v", err)
	}

	other := lite.MapError(fmt.Errorf("disk I/O error"))
	if errors.Is(other, ErrUniqueViolation) {
		t.Error("unrelated error mapped to unique violation")
	}
}

func TestNormalizeBooleans(t *testing.T) {
	rows := []map[string]any{
		{"active": int64(1), "unlimited": int64(0), "name": "x"},
	}
	NormalizeBooleans(rows, []string{"active", "unlimited"})
	if rows[0]["active"] != true || rows[0]["unlimited"] != false {
		t.Errorf("booleans not normalized: %v", rows[0])
	}
	if rows[0]["name"] != "x" {
		t.Errorf("untracked column touched: %v", rows[0]["name"])
	}
}
