package db

import "testing"

func TestConnString(t *testing.T) {
	tests := []struct {
		name string
		conf PoolConfig
		want string
	}{
		{
			name: "dsn wins",
			conf: PoolConfig{DSN: "postgres://x", Host: "h"},
			want: "postgres://x",
		},
		{
			name: "from fields",
			conf: PoolConfig{Host: "localhost", Port: 5432, User: "bot", Password: "pw", Database: "fleet"},
			want: "postgres://bot:pw@localhost:5432/fleet?sslmode=disable",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.conf.ConnString(); got != tt.want {
				t.Fatalf("ConnString()=%q, want %q", got, tt.want)
			}
		})
	}
}
