package migrate

import (
	"strings"
	"testing"
)

func TestSplitStatements(t *testing.T) {
	script := `
create table users (id text primary key);
create or replace function touch() returns trigger as $$
begin
  new.updated_at := now();
  return new;
end;
$$ language plpgsql;
insert into users (id) values ('u1');
`
	stmts := splitStatements(script)
	if len(stmts) != 3 {
		t.Fatalf("expected 3 statements, got %d: %q", len(stmts), stmts)
	}
	if got := stmts[1]; !strings.Contains(got, "language plpgsql") || !strings.Contains(got, "return new") {
		t.Fatalf("function body split apart: %q", got)
	}
}
