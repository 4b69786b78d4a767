// Package directory talks to the upstream LDAP / Active Directory service
// and parses the attribute encodings the reconciler depends on.
package directory

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/aryan0dhankhar/doorgate/internal/domain"
	"github.com/aryan0dhankhar/doorgate/internal/reliability/retry"
)

// Config holds directory connection settings
type Config struct {
	URL                string
	BindDN             string
	BindPassword       string
	Timeout            time.Duration
	InsecureSkipVerify bool
	PageSize           uint32
}

// LDAPDirectory implements domain.Directory with go-ldap
type LDAPDirectory struct {
	cfg    Config
	retry  *retry.Config
	logger *slog.Logger
}

// NewLDAPDirectory creates a directory client; no connection is made until Open
func NewLDAPDirectory(cfg Config, logger *slog.Logger) *LDAPDirectory {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = 500
	}
	return &LDAPDirectory{cfg: cfg, retry: retry.DefaultConfig(), logger: logger}
}

// Open dials and binds with the service credentials
func (d *LDAPDirectory) Open(ctx context.Context) (domain.DirectorySession, error) {
	if d.cfg.URL == "" {
		return nil, errors.New("directory url not configured")
	}

	conn, err := retry.Do(ctx, d.retry, d.logger, "ldap bind", func(ctx context.Context) (*ldap.Conn, error) {
		conn, err := ldap.DialURL(d.cfg.URL,
			ldap.DialWithDialer(&net.Dialer{Timeout: d.cfg.Timeout}),
			ldap.DialWithTLSConfig(&tls.Config{InsecureSkipVerify: d.cfg.InsecureSkipVerify}),
		)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", d.cfg.URL, err)
		}
		conn.SetTimeout(d.cfg.Timeout)

		if err := conn.Bind(d.cfg.BindDN, d.cfg.BindPassword); err != nil {
			conn.Close()
			if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) {
				return nil, &retry.Permanent{Err: fmt.Errorf("bind %s: %w", d.cfg.BindDN, err)}
			}
			return nil, fmt.Errorf("bind %s: %w", d.cfg.BindDN, err)
		}
		return conn, nil
	})
	if err != nil {
		return nil, err
	}

	d.logger.Info("directory connection successful", slog.String("url", d.cfg.URL))
	return &ldapSession{conn: conn, pageSize: d.cfg.PageSize, timeout: d.cfg.Timeout}, nil
}

type ldapSession struct {
	conn     *ldap.Conn
	pageSize uint32
	timeout  time.Duration
}

func (s *ldapSession) Search(ctx context.Context, baseDN, objectClass string) ([]domain.DirectoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timeLimit := int(s.timeout / time.Second)
	req := ldap.NewSearchRequest(
		baseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0,
		timeLimit,
		false,
		fmt.Sprintf("(objectClass=%s)", ldap.EscapeFilter(objectClass)),
		nil,
		nil,
	)

	result, err := s.conn.SearchWithPaging(req, s.pageSize)
	if err != nil {
		return nil, fmt.Errorf("search %s under %s: %w", objectClass, baseDN, err)
	}

	entries := make([]domain.DirectoryEntry, 0, len(result.Entries))
	for _, e := range result.Entries {
		attrs := make(map[string][]string, len(e.Attributes))
		for _, a := range e.Attributes {
			attrs[a.Name] = a.Values
		}
		entries = append(entries, domain.DirectoryEntry{DN: e.DN, Attributes: attrs})
	}
	return entries, nil
}

func (s *ldapSession) Close() error {
	s.conn.Close()
	return nil
}

var _ domain.Directory = (*LDAPDirectory)(nil)
