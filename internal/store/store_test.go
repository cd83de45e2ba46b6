package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
)

var catalogTables = []string{
	"locations", "files", "file_locations", "manifests", "manifest_fragments",
	"time_domains", "spatial_domains", "cell_methods", "cell_method_sets",
	"cell_method_set_members", "properties", "property_sets", "property_set_members",
	"variables", "collections", "tags", "collection_tags", "collection_variables",
	"relationships",
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_OpensExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	if _, err := s1.db.Exec(`INSERT INTO locations (name) VALUES ('archive')`); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer s2.Close()

	var count int
	if err := s2.db.QueryRow("SELECT COUNT(*) FROM locations").Scan(&count); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if count != 1 {
		t.Errorf("locations after reopen = %d, want 1", count)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	for _, table := range catalogTables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestDSN(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/tmp/a.db", "file:/tmp/a.db?_txlock=immediate"},
		{"file:/tmp/a.db", "file:/tmp/a.db?_txlock=immediate"},
		{"file:/tmp/a.db?mode=rwc", "file:/tmp/a.db?mode=rwc&_txlock=immediate"},
	}
	for _, tt := range tests {
		if got := dsn(tt.path); got != tt.want {
			t.Errorf("dsn(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestClose_MultipleCalls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("first Close() failed: %v", err)
	}
	_ = s.Close()
}

func TestDB_ReturnsUnderlyingConnection(t *testing.T) {
	s := createTestStore(t)

	db := s.DB()
	if db == nil {
		t.Fatal("DB() returned nil")
	}
	if err := db.Ping(); err != nil {
		t.Errorf("DB() connection not usable: %v", err)
	}
}

// Pragma tests

func TestPragma_JournalMode(t *testing.T) {
	s := createTestStore(t)
	if err := s.verifyPragma("journal_mode", "wal"); err != nil {
		t.Error(err)
	}
}

func TestPragma_Synchronous(t *testing.T) {
	s := createTestStore(t)
	// NORMAL = 1
	if err := s.verifyPragma("synchronous", "1"); err != nil {
		t.Error(err)
	}
}

func TestPragma_BusyTimeout(t *testing.T) {
	s := createTestStore(t)
	if err := s.verifyPragma("busy_timeout", "5000"); err != nil {
		t.Error(err)
	}
}

func TestPragma_ForeignKeys(t *testing.T) {
	s := createTestStore(t)
	// ON = 1
	if err := s.verifyPragma("foreign_keys", "1"); err != nil {
		t.Error(err)
	}
}

// Schema table tests

func TestSchema_TableColumns(t *testing.T) {
	s := createTestStore(t)

	expected := map[string][]string{
		"locations": {"id", "name", "volume"},
		"files": {
			"id", "uuid", "name", "path", "size", "type",
			"checksum", "checksum_method", "format",
		},
		"manifests": {
			"id", "uuid", "cfa_file_id", "key", "bounds",
			"units", "calendar", "parent_uuid", "is_quark",
		},
		"manifest_fragments": {"manifest_id", "position", "file_id"},
		"time_domains": {
			"id", "interval", "interval_units", "interval_offset",
			"calendar", "units", "starting", "ending",
		},
		"spatial_domains": {"id", "name", "region", "nominal_resolution", "size", "coordinates", "bbox"},
		"variables": {
			"id", "uuid", "proxied", "property_set_id", "spatial_domain_id",
			"time_domain_id", "cell_method_set_id", "in_file_id", "in_manifest_id", "signature",
		},
		"collections":   {"id", "name", "description", "properties"},
		"relationships": {"id", "subject_id", "predicate", "object_id"},
	}

	for table, cols := range expected {
		columns := getTableColumns(t, s.db, table)
		for _, col := range cols {
			if !contains(columns, col) {
				t.Errorf("%s table missing column %q", table, col)
			}
		}
	}
}

func TestSchema_Indexes(t *testing.T) {
	s := createTestStore(t)

	expected := map[string][]string{
		"files":                {"idx_files_path_name"},
		"file_locations":       {"idx_file_locations_location"},
		"manifest_fragments":   {"idx_manifest_fragments_file"},
		"property_set_members": {"idx_property_set_members_property"},
		"variables": {
			"idx_variables_property_set", "idx_variables_spatial_domain",
			"idx_variables_time_domain", "idx_variables_cell_method_set",
			"idx_variables_in_file", "idx_variables_in_manifest",
		},
		"collection_variables": {"idx_collection_variables_variable"},
	}

	for table, idxs := range expected {
		indexes := getTableIndexes(t, s.db, table)
		for _, idx := range idxs {
			if !contains(indexes, idx) {
				t.Errorf("%s missing index %q, got %v", table, idx, indexes)
			}
		}
	}
}

// Constraint tests

func TestConstraint_LocationVolumeNonNegative(t *testing.T) {
	s := createTestStore(t)

	_, err := s.db.Exec(`INSERT INTO locations (name, volume) VALUES ('bad', -1)`)
	if err == nil {
		t.Fatal("expected CHECK violation for negative volume")
	}
	if !isCheckViolation(err) {
		t.Errorf("expected check violation, got %v", err)
	}
}

func TestConstraint_FileTypeChecked(t *testing.T) {
	s := createTestStore(t)

	_, err := s.db.Exec(`INSERT INTO files (uuid, name, path, type) VALUES ('u1', 'a.nc', '/d', 'tarball')`)
	if err == nil {
		t.Fatal("expected CHECK violation for unknown file type")
	}
	if !isCheckViolation(err) {
		t.Errorf("expected check violation, got %v", err)
	}
}

func TestConstraint_ManifestUniquePerFileAndKey(t *testing.T) {
	s := createTestStore(t)

	if _, err := s.db.Exec(`INSERT INTO files (uuid, name, path, type) VALUES ('u1', 'a.cfa', '/d', 'aggregate')`); err != nil {
		t.Fatalf("insert file failed: %v", err)
	}
	if _, err := s.db.Exec(`INSERT INTO manifests (uuid, cfa_file_id, key) VALUES ('m1', 1, 'k')`); err != nil {
		t.Fatalf("first manifest insert failed: %v", err)
	}
	_, err := s.db.Exec(`INSERT INTO manifests (uuid, cfa_file_id, key) VALUES ('m2', 1, 'k')`)
	if err == nil {
		t.Fatal("expected UNIQUE violation for duplicate (cfa_file_id, key)")
	}
	if !isUniqueViolation(err) {
		t.Errorf("expected unique violation, got %v", err)
	}
}

func TestConstraint_ForeignKeyManifestToFile(t *testing.T) {
	s := createTestStore(t)

	_, err := s.db.Exec(`INSERT INTO manifests (uuid, cfa_file_id, key) VALUES ('m1', 99, 'k')`)
	if err == nil {
		t.Fatal("expected FOREIGN KEY violation for missing file")
	}
	if !isForeignKeyViolation(err) {
		t.Errorf("expected foreign key violation, got %v", err)
	}
}

func TestConstraint_FileDeleteRestrictedByManifest(t *testing.T) {
	s := createTestStore(t)

	if _, err := s.db.Exec(`INSERT INTO files (uuid, name, path, type) VALUES ('u1', 'a.cfa', '/d', 'aggregate')`); err != nil {
		t.Fatalf("insert file failed: %v", err)
	}
	if _, err := s.db.Exec(`INSERT INTO manifests (uuid, cfa_file_id, key) VALUES ('m1', 1, 'k')`); err != nil {
		t.Fatalf("insert manifest failed: %v", err)
	}
	_, err := s.db.Exec(`DELETE FROM files WHERE id = 1`)
	if err == nil {
		t.Fatal("expected FOREIGN KEY violation deleting an owning file")
	}
	if !isForeignKeyViolation(err) {
		t.Errorf("expected foreign key violation, got %v", err)
	}
}

// Migration tests

func TestMigration_SchemaVersion(t *testing.T) {
	s := createTestStore(t)

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("failed to get user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}
}

func TestMigration_IdempotentUpgrade(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}

		var version int
		if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
			t.Fatalf("failed to get user_version: %v", err)
		}
		if version != currentSchemaVersion {
			t.Errorf("iteration %d: user_version = %d, want %d", i, version, currentSchemaVersion)
		}

		s.Close()
	}
}

func TestMigration_UpgradeFromV0(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	// Simulate a database created before the files lookup index existed.
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}
	if _, err := db.Exec("DROP INDEX idx_files_path_name"); err != nil {
		t.Fatalf("failed to drop index: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 0"); err != nil {
		t.Fatalf("failed to set user_version: %v", err)
	}
	db.Close()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("failed to get user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d after migration", version, currentSchemaVersion)
	}
	if !contains(getTableIndexes(t, s.db, "files"), "idx_files_path_name") {
		t.Error("expected idx_files_path_name after migration")
	}
}

// Helper functions

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
