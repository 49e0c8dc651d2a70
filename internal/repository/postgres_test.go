package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithApplicationName(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		want string
	}{
		{
			name: "url dsn",
			dsn:  "postgres://wallet:secret@db:5432/wallet?sslmode=disable",
			want: "postgres://wallet:secret@db:5432/wallet?application_name=wallet-ledger&sslmode=disable",
		},
		{
			name: "key value dsn",
			dsn:  "host=db dbname=wallet sslmode=disable",
			want: "host=db dbname=wallet sslmode=disable application_name=wallet-ledger",
		},
		{
			name: "operator choice kept",
			dsn:  "postgres://db/wallet?application_name=ledger-admin",
			want: "postgres://db/wallet?application_name=ledger-admin",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, withApplicationName(tc.dsn, "wallet-ledger"))
		})
	}
}
