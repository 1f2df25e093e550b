package secrets

import (
	"context"
	"fmt"
	"net"
	"net/url"
)

// DatabaseDSN resolves a Postgres connection string from the secret stored under id.
// The secret either carries a ready "dsn" value or the RDS style fields
// username, password, host, port (default 5432), dbname and optional sslmode.
func DatabaseDSN(ctx context.Context, p Provider, id string) (string, error) {
	s, err := p.GetSecret(ctx, id)
	if err != nil {
		return "", err
	}
	if dsn := s["dsn"]; dsn != "" {
		return dsn, nil
	}

	for _, k := range []string{"username", "password", "host", "dbname"} {
		if s[k] == "" {
			return "", fmt.Errorf("secret [%s] missing %q", id, k)
		}
	}
	port := s["port"]
	if port == "" {
		port = "5432"
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(s["username"], s["password"]),
		Host:   net.JoinHostPort(s["host"], port),
		Path:   "/" + s["dbname"],
	}
	if mode := s["sslmode"]; mode != "" {
		u.RawQuery = url.Values{"sslmode": []string{mode}}.Encode()
	}
	return u.String(), nil
}
