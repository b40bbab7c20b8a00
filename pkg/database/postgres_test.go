package database

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/vigilance-tracker-api/pkg/config"
)

func TestDSNIncludesSchemaAndEscapesPassword(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host:     "db",
		Port:     5432,
		User:     "vig",
		Password: "p@ss word",
		Name:     "vigilance",
		Schema:   "tracker",
	})

	assert.Equal(t, "postgres://vig:p%40ss%20word@db:5432/vigilance?search_path=tracker&sslmode=disable", dsn)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})))
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, IsUniqueViolation(fmt.Errorf("plain")))
}

func TestNewPostgresRejectsUnknownDriver(t *testing.T) {
	_, err := NewPostgres(config.DatabaseConfig{Driver: "sqlite"})
	assert.Error(t, err)
}
