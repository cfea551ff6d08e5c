package migrations

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionOf(t *testing.T) {
	assert.Equal(t, "001", VersionOf("migrations/001_init.sql"))
	assert.Equal(t, "010", VersionOf("/abs/path/010_add_index.sql"))
}

func TestPendingFilesSortsAndFilters(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002_b.sql", "001_a.sql", "README.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "003_dir.sql"), 0o700))

	files, err := PendingFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "001_a.sql"), filepath.Join(dir, "002_b.sql")}, files)
}

func TestPendingFilesMissingDirectory(t *testing.T) {
	_, err := PendingFiles(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestShippedMigrationsDefineConstraints(t *testing.T) {
	content, err := os.ReadFile(filepath.Join("..", "..", "..", "migrations", "001_init.sql"))
	require.NoError(t, err)
	sql := string(content)
	for _, name := range []string{
		"users_single_admin_idx",
		"students_student_number_key",
		"courses_course_code_key",
		"enrollments_student_id_course_id_key",
		"refresh_tokens_token_key",
	} {
		assert.Contains(t, sql, name)
	}
}
