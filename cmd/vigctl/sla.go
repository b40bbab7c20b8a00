package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/noah-isme/vigilance-tracker-api/internal/models"
	"github.com/noah-isme/vigilance-tracker-api/internal/repository"
	"github.com/noah-isme/vigilance-tracker-api/internal/service"
	"github.com/noah-isme/vigilance-tracker-api/pkg/config"
	"github.com/noah-isme/vigilance-tracker-api/pkg/database"
)

func runSLA(ctx context.Context, cfg *config.Config, _ *zap.Logger, args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("sla", pflag.ContinueOnError)
	id := fs.Int64P("petition", "p", 0, "petition id")
	if ok, err := parseFlags(fs, args, out); !ok {
		return err
	}
	if *id <= 0 {
		return fmt.Errorf("--petition is required")
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	status, err := service.NewSLAService(repository.NewTrackingRepository(db)).Get(ctx, *id)
	if err != nil {
		return err
	}
	printSLA(out, status)
	return nil
}

func printSLA(out io.Writer, s *models.SLAStatus) {
	fmt.Fprintf(out, "petition %d: %s\n", s.PetitionID, s.Bucket)
	if s.AssignedAt == nil {
		fmt.Fprintln(out, "  not yet assigned to an inspector")
		return
	}
	fmt.Fprintf(out, "  assigned   %s\n", s.AssignedAt.Format("2006-01-02 15:04"))
	if s.ClosedAt != nil {
		fmt.Fprintf(out, "  closed     %s\n", s.ClosedAt.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(out, "  elapsed    %d of %d days\n", s.ElapsedDays, s.DeadlineDays)
}
