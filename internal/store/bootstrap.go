package store

import (
	"context"
	"fmt"
	"log"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Bootstrap creates all application tables and seeds the first admin user.
func (s *Store) Bootstrap(ctx context.Context) error {
	ddl := s.Dialect.SystemTablesSQL()
	if s.Dialect.Name() == "sqlite" {
		// modernc.org/sqlite executes one statement per Exec call
		for _, stmt := range strings.Split(ddl, ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("bootstrap tables: %w", err)
			}
		}
	} else {
		if _, err := s.DB.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("bootstrap tables: %w", err)
		}
	}
	if err := s.seedAdminUser(ctx); err != nil {
		return fmt.Errorf("seed admin user: %w", err)
	}
	return nil
}

func (s *Store) seedAdminUser(ctx context.Context) error {
	var count int
	err := s.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashBytes, err := bcrypt.GenerateFromPassword([]byte("changeme"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	pb := s.Dialect.NewParamBuilder()
	id := GenerateUUID()
	_, err = Exec(ctx, s.DB, fmt.Sprintf(
		`INSERT INTO users (id, email, password_hash, roles) VALUES (%s, %s, %s, %s)`,
		pb.Add(id), pb.Add("admin@localhost"), pb.Add(string(hashBytes)),
		pb.Add(s.Dialect.ArrayParam([]string{"admin"}))),
		pb.Params()...)
	if err != nil {
		return err
	}

	// Admin accounts hold unlimited credits so runs never debit them.
	pb = s.Dialect.NewParamBuilder()
	_, err = Exec(ctx, s.DB, fmt.Sprintf(
		`INSERT INTO credits (user_id, balance, unlimited) VALUES (%s, %s, %s)`,
		pb.Add(id), pb.Add(0), pb.Add(true)),
		pb.Params()...)
	if err != nil {
		return err
	}

	log.Println("WARNING: Default admin user created (admin@localhost / changeme) — change the password immediately.")
	return nil
}
