package database

import "testing"

func TestMigrationVersion(t *testing.T) {
	tests := []struct {
		name string
		want int
	}{
		{"001_initial_schema.sql", 1},
		{"002_add_indexes.sql", 2},
		{"042_rename_column.sql", 42},
		{"notes.sql", 0},
		{"README.md", 0},
		{"", 0},
	}

	for _, tt := range tests {
		if got := migrationVersion(tt.name); got != tt.want {
			t.Errorf("migrationVersion(%q) = %d, want %d", tt.name, got, tt.want)
		}
	}
}
