package sqlite

import (
	"net/url"
	"strings"
)

// isRemote reports whether dsn addresses a libSQL server rather than a local
// file.
func isRemote(dsn string) bool {
	return strings.HasPrefix(dsn, "libsql://") ||
		strings.HasPrefix(dsn, "https://") ||
		strings.HasPrefix(dsn, "wss://")
}

// redact strips credentials from a remote dsn for error messages.
func redact(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Host == "" {
		return dsn
	}
	u.User = nil
	u.RawQuery = ""
	return u.String()
}
