package utils

import (
	"regexp"
	"strings"
)

var kvPasswordRegex = regexp.MustCompile(`(?i)(password=)(\S+)`)

// MaskDSN hides the password of a connection string before it is logged.
// URL style DSNs (postgres://, redis://, amqp://, nats://) have the password in the
// userinfo replaced; key/value style DSNs have the password= value replaced.
func MaskDSN(dsn string) string {
	schemeEnd := strings.Index(dsn, "://")
	if schemeEnd < 0 {
		return kvPasswordRegex.ReplaceAllString(dsn, "${1}***")
	}

	rest := dsn[schemeEnd+3:]
	authority := rest
	if q := strings.IndexAny(authority, "?#"); q >= 0 {
		authority = authority[:q]
	}
	at := strings.LastIndex(authority, "@")
	if at < 0 {
		return dsn
	}
	userinfo := rest[:at]
	colon := strings.Index(userinfo, ":")
	if colon < 0 {
		return dsn
	}
	return dsn[:schemeEnd+3] + userinfo[:colon+1] + "***" + rest[at:]
}
