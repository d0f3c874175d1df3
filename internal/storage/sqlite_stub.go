//go:build !sqlite

package storage

// NewSQLiteStore reports that the binary was built without the sqlite tag.
func NewSQLiteStore(dir string) (Store, error) {
	return nil, ErrBackendUnavailable
}
