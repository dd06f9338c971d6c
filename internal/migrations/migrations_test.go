package migrations

import (
	"strings"
	"testing"
)

func TestList_OrderedAndComplete(t *testing.T) {
	ms, err := List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ms) == 0 || ms[0].Version != "0001_init" {
		t.Fatalf("expected 0001_init first, got %+v", ms)
	}
	for _, table := range []string{"campaigns", "contacts", "call_logs", "credit_accounts", "credit_ledger", "audit_events"} {
		if !strings.Contains(ms[0].SQL, "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Fatalf("schema missing table %s", table)
		}
	}
	if !strings.Contains(ms[0].SQL, "CHECK (balance >= 0)") {
		t.Fatalf("credit balance must be constrained non-negative")
	}
}
