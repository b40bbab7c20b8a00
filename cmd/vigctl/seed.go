package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/vigilance-tracker-api/internal/models"
	"github.com/noah-isme/vigilance-tracker-api/internal/repository"
	"github.com/noah-isme/vigilance-tracker-api/pkg/config"
	"github.com/noah-isme/vigilance-tracker-api/pkg/database"
)

// seedFile is the YAML layout accepted by `vigctl seed`.
//
//	users:
//	  - username: po
//	    password: secret
//	    full_name: Petition Officer
//	    role: po
//	inspectors:
//	  - inspector: insp1
//	    supervisor: cvo_sp
type seedFile struct {
	Users      []seedUser    `yaml:"users"`
	Inspectors []seedMapping `yaml:"inspectors"`
}

type seedUser struct {
	Username string  `yaml:"username"`
	Password string  `yaml:"password"`
	FullName string  `yaml:"full_name"`
	Role     string  `yaml:"role"`
	Office   *string `yaml:"cvo_office"`
	Phone    *string `yaml:"phone"`
	Email    *string `yaml:"email"`
	Inactive bool    `yaml:"inactive"`
}

type seedMapping struct {
	Inspector  string `yaml:"inspector"`
	Supervisor string `yaml:"supervisor"`
}

type seedStore interface {
	Upsert(ctx context.Context, user *models.User) error
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	SetSupervisor(ctx context.Context, inspectorID string, cvoID *string) error
}

func parseSeed(r io.Reader) (*seedFile, error) {
	var seed seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	if err := seed.validate(); err != nil {
		return nil, err
	}
	return &seed, nil
}

func (s *seedFile) validate() error {
	roles := make(map[string]models.UserRole, len(s.Users))
	for i, u := range s.Users {
		u.Username = strings.TrimSpace(u.Username)
		if u.Username == "" {
			return fmt.Errorf("users[%d]: username is required", i)
		}
		if _, dup := roles[u.Username]; dup {
			return fmt.Errorf("users[%d]: duplicate username %q", i, u.Username)
		}
		if u.Password == "" {
			return fmt.Errorf("user %s: password is required", u.Username)
		}
		role := models.UserRole(strings.ToLower(strings.TrimSpace(u.Role)))
		if !role.Valid() {
			return fmt.Errorf("user %s: unknown role %q", u.Username, u.Role)
		}
		s.Users[i].Username = u.Username
		s.Users[i].Role = string(role)
		roles[u.Username] = role
	}
	for i, m := range s.Inspectors {
		if role, ok := roles[m.Inspector]; ok && role != models.RoleInspector {
			return fmt.Errorf("inspectors[%d]: %s is not an inspector", i, m.Inspector)
		}
		if role, ok := roles[m.Supervisor]; ok && !role.IsCVO() {
			return fmt.Errorf("inspectors[%d]: supervisor %s is not a CVO or DSP", i, m.Supervisor)
		}
	}
	return nil
}

// apply upserts every user, then maps inspectors. Usernames in the mapping may
// refer to users that already exist in the database.
func (s *seedFile) apply(ctx context.Context, store seedStore, cost int, log *zap.Logger) error {
	for _, u := range s.Users {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), cost)
		if err != nil {
			return fmt.Errorf("hash password for %s: %w", u.Username, err)
		}
		user := &models.User{
			Username:     u.Username,
			PasswordHash: string(hash),
			FullName:     u.FullName,
			Role:         models.UserRole(u.Role),
			CVOOffice:    u.Office,
			Phone:        u.Phone,
			Email:        u.Email,
			IsActive:     !u.Inactive,
		}
		if err := store.Upsert(ctx, user); err != nil {
			return err
		}
		log.Info("user seeded", zap.String("username", user.Username), zap.String("role", string(user.Role)))
	}
	for _, m := range s.Inspectors {
		inspector, err := store.FindByUsername(ctx, m.Inspector)
		if err != nil {
			return fmt.Errorf("inspector %s: %w", m.Inspector, err)
		}
		supervisor, err := store.FindByUsername(ctx, m.Supervisor)
		if err != nil {
			return fmt.Errorf("supervisor %s: %w", m.Supervisor, err)
		}
		if inspector.Role != models.RoleInspector || !supervisor.Role.IsCVO() {
			return fmt.Errorf("cannot map %s (%s) to %s (%s)", inspector.Username, inspector.Role, supervisor.Username, supervisor.Role)
		}
		if err := store.SetSupervisor(ctx, inspector.ID, &supervisor.ID); err != nil {
			return err
		}
		log.Info("inspector mapped", zap.String("inspector", inspector.Username), zap.String("supervisor", supervisor.Username))
	}
	return nil
}

func runSeed(ctx context.Context, cfg *config.Config, log *zap.Logger, args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("seed", pflag.ContinueOnError)
	path := fs.StringP("file", "f", "seed.yaml", "seed YAML file")
	cost := fs.Int("bcrypt-cost", bcrypt.DefaultCost, "bcrypt cost for seeded passwords")
	if ok, err := parseFlags(fs, args, out); !ok {
		return err
	}

	f, err := os.Open(*path)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	seed, err := parseSeed(f)
	if err != nil {
		return err
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	if err := seed.apply(ctx, repository.NewUserRepository(db), *cost, log); err != nil {
		return err
	}
	fmt.Fprintf(out, "seeded %d users, %d inspector mappings\n", len(seed.Users), len(seed.Inspectors))
	return nil
}
