package main

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"weighttrack/internal/adapter/memory"
	"weighttrack/internal/adapter/sqlstore"
	"weighttrack/internal/domain"
)

const memoryDSN = "memory:"

// store bundles the repositories behind one DATABASE_URL.
type store struct {
	entries  domain.EntryRepository
	users    domain.UserRepository
	sessions domain.SessionRepository
	backup   domain.BackupWriter
	close    func() error
}

// openStore picks the in-memory store for "memory:" and a SQL store for
// everything else.
func openStore(ctx context.Context, dsn string, log *zap.SugaredLogger) (*store, error) {
	if dsn == memoryDSN {
		log.Warn("using in-memory store; data is lost on exit")
		db := memory.New()
		return &store{
			entries:  db,
			users:    db.NewUserRepo(),
			sessions: db.NewSessionRepo(),
			backup:   db,
			close:    func() error { return nil },
		}, nil
	}

	db, err := sqlstore.Open(ctx, dsn, log)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &store{
		entries:  db,
		users:    sqlstore.NewUserRepo(db),
		sessions: sqlstore.NewSessionRepo(db),
		backup:   db,
		close:    db.Close,
	}, nil
}

// userByEmail resolves the account a CLI command acts for.
func (s *store) userByEmail(ctx context.Context, email string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("look up %s: %w", email, err)
	}
	if u == nil {
		return nil, fmt.Errorf("no account for %s", email)
	}
	return u, nil
}
