package fuzz_test

import (
	"testing"

	"github.com/brunokim/resolve/fuzz"
)

func TestFuzz(t *testing.T) {
	tests := []struct {
		data string
		want int
	}{
		{"clauses: [{f: [a]}]\nqueries: [[{f: [X]}]]", 1},
		{"clauses: [{head: loop, body: [loop]}]\nqueries: [[loop]]", 1},
		{"queries: [[{undefined: []}], [{is: [X, {'/': [1, 0]}]}]]", 1},
		{"clauses: [1]", 0},
		{"{", 0},
	}
	for _, test := range tests {
		if got := fuzz.Fuzz([]byte(test.data)); got != test.want {
			t.Errorf("Fuzz(%q) = %d, want %d", test.data, got, test.want)
		}
	}
}
