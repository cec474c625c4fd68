// Package all registers every storage backend with the factory. Import it
// for side effects from entry points that select the backend via config.
package all

import (
	_ "healthetl/internal/storage/mssql"
	_ "healthetl/internal/storage/postgres"
	_ "healthetl/internal/storage/sqlite"
)
