package db

import "testing"

func TestConvertToMigrateURL(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{
			name: "postgres scheme",
			in:   "postgres://user:pw@localhost:5432/docrag?sslmode=disable",
			want: "pgx5://user:pw@localhost:5432/docrag?sslmode=disable",
		},
		{
			name: "postgresql scheme",
			in:   "postgresql://user@db:5432/app",
			want: "pgx5://user@db:5432/app",
		},
		{
			name:    "unsupported scheme",
			in:      "mysql://root@localhost/db",
			wantErr: true,
		},
		{
			name:    "not a url",
			in:      "://",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := convertToMigrateURL(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("convertToMigrateURL(%q) = %q, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("convertToMigrateURL(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("convertToMigrateURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
