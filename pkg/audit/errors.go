package audit

import "errors"

// ErrDatabaseError wraps any failure reaching or querying the audit database.
var ErrDatabaseError = errors.New("audit: database error")
