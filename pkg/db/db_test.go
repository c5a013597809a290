package db

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/meetflow/config"
)

func TestConnectionString(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:     "db.internal",
		Port:     5432,
		Database: "meetflow",
		User:     "meetflow",
		Password: "p@ss:word",
		SSLMode:  "require",
	}

	cs := ConnectionString(cfg)
	assert.True(t, strings.HasPrefix(cs, "postgres://"))
	assert.Contains(t, cs, "db.internal:5432/meetflow")
	assert.Contains(t, cs, "sslmode=require")
	assert.Contains(t, cs, "p%40ss%3Aword", "password must be URL-escaped")
}

func TestConnectionString_DefaultSSLMode(t *testing.T) {
	cs := ConnectionString(config.DatabaseConfig{Host: "localhost", Port: 5432, Database: "meetflow"})
	assert.Contains(t, cs, "sslmode=disable")
}

func TestMigrations_OrderedAndUnique(t *testing.T) {
	require.NotEmpty(t, Migrations)

	versions := make([]string, len(Migrations))
	seen := make(map[string]bool)
	for i, m := range Migrations {
		versions[i] = m.Version
		assert.False(t, seen[m.Version], "duplicate version %s", m.Version)
		seen[m.Version] = true
		assert.NotEmpty(t, m.Name)
		assert.NotEmpty(t, m.SQL)
	}

	assert.True(t, sort.StringsAreSorted(versions), "migrations must run in version order")
}

func TestMigrations_MeetingsStatusConstraint(t *testing.T) {
	var meetings string
	for _, m := range Migrations {
		if m.Name == "create_meetings" {
			meetings = m.SQL
		}
	}
	require.NotEmpty(t, meetings)

	for _, status := range []string{"upcoming", "active", "processing", "completed", "cancelled"} {
		assert.Contains(t, meetings, "'"+status+"'", "status CHECK must allow %s", status)
	}
}
