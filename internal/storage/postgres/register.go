package postgres

import "healthetl/internal/storage"

func init() {
	storage.Register("postgres", New)
}
