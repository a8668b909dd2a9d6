package db

import "testing"

func TestSQLVerb(t *testing.T) {
	cases := map[string]string{
		"\n\t\tselect id FROM bookings": "SELECT",
		"INSERT INTO outbox_events":     "INSERT",
		"   ":                           "QUERY",
	}
	for sql, want := range cases {
		if got := sqlVerb(sql); got != want {
			t.Fatalf("sqlVerb(%q) = %q, want %q", sql, got, want)
		}
	}
}
