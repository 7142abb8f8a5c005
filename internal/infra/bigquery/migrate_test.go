package bigquery

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_second.sql":       {Data: []byte("CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.b` (x INT64);")},
		"0001_first.sql":        {Data: []byte("CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.a` (x INT64);")},
		"001_invalid.sql":       {Data: []byte("bad")},
		"0003_test":             {Data: []byte("no extension")},
		"0004.sql":              {Data: []byte("no name")},
		"invalid_0005_test.sql": {Data: []byte("wrong order")},
	}

	migrations, err := ReadMigrations(fsys, "proj", "ds")
	require.NoError(t, err)
	require.Len(t, migrations, 2)

	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "first", migrations[0].Name)
	assert.Equal(t, "CREATE TABLE `proj.ds.a` (x INT64);", migrations[0].SQL)
	assert.Equal(t, 2, migrations[1].Version)
	assert.Len(t, migrations[0].Checksum, 64)
}

func TestReadMigrations_ChecksumIgnoresDataset(t *testing.T) {
	fsys := fstest.MapFS{"0001_a.sql": {Data: []byte("SELECT 1 FROM `{{PROJECT_ID}}.{{DATASET_ID}}.t`")}}

	a, err := ReadMigrations(fsys, "p1", "d1")
	require.NoError(t, err)
	b, err := ReadMigrations(fsys, "p2", "d2")
	require.NoError(t, err)

	assert.Equal(t, a[0].Checksum, b[0].Checksum)
	assert.NotEqual(t, a[0].SQL, b[0].SQL)
}

func TestReadMigrations_DuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"0001_a.sql": {Data: []byte("SELECT 1")},
		"0001_b.sql": {Data: []byte("SELECT 2")},
	}
	_, err := ReadMigrations(fsys, "p", "d")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version 0001")
}

func TestPending(t *testing.T) {
	all := []Migration{
		{Version: 1, Filename: "0001_a.sql", Checksum: "aaa"},
		{Version: 2, Filename: "0002_b.sql", Checksum: "bbb"},
		{Version: 3, Filename: "0003_c.sql", Checksum: "ccc"},
	}
	applied := []AppliedMigration{
		{Version: 1, Checksum: "aaa"},
		{Version: 2, Checksum: "old"},
	}

	pending, changed := Pending(all, applied)
	require.Len(t, pending, 1)
	assert.Equal(t, 3, pending[0].Version)
	assert.Equal(t, []string{"0002_b.sql"}, changed)
}

func TestEmbeddedMigrations(t *testing.T) {
	migrations, err := ReadMigrations(MigrationFiles(), "proj", "budgenudge")
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	var tables []string
	for i, m := range migrations {
		assert.Equal(t, i+1, m.Version, "versions are contiguous")
		assert.NotContains(t, m.SQL, "{{")
		if strings.Contains(m.SQL, "proj.budgenudge.transactions") {
			tables = append(tables, transactionsTable)
		}
		if strings.Contains(m.SQL, "proj.budgenudge.sms_sends") {
			tables = append(tables, smsSendsTable)
		}
	}
	assert.ElementsMatch(t, []string{transactionsTable, smsSendsTable}, tables)
}
