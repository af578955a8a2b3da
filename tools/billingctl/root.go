package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	billingapp "water-billing/internal/billing/application"
	billingrepo "water-billing/internal/billing/infrastructure/postgres"
	billinginterfaces "water-billing/internal/billing/interfaces"
	billingusage "water-billing/internal/billing/adapters/metering"
	"water-billing/internal/config"
	"water-billing/internal/eventing"
	eventingpg "water-billing/internal/eventing/infrastructure/postgres"
	meteringapp "water-billing/internal/metering/application"
	meteringrepo "water-billing/internal/metering/infrastructure/postgres"
	"water-billing/internal/txn"
)

type options struct {
	dsn    string
	output string
}

// services is the subset of the server graph the CLI needs.
type services struct {
	db        *sql.DB
	tariffs   *billingapp.TariffService
	generator *billingapp.PaymentGenerator
	payments  *billingapp.PaymentService
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "billingctl",
		Short: "Operate the water billing engine: tariffs, payments and monthly runs",
		Long: `billingctl talks to the billing database directly. It reads the same
BILLING_CONFIG file and environment as the server; --dsn overrides the
database URL.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.dsn, "dsn", "", "Postgres DSN (default from DATABASE_URL)")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "json", "output format: json, yaml")

	root.AddCommand(
		newGenerateCmd(opts),
		newTariffCmd(opts),
		newPaymentCmd(opts),
	)
	return root
}

func openServices(ctx context.Context, opts *options) (*services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	dsn := opts.dsn
	if dsn == "" {
		dsn = cfg.DatabaseURL
	}
	if dsn == "" {
		return nil, errors.New("database url required: set --dsn or DATABASE_URL")
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger := zap.NewNop()
	tx := txn.NewPostgresManager(db)
	apartments := meteringrepo.NewApartmentRepository(db)
	readings := meteringrepo.NewReadingRepository(db)
	locator, err := meteringapp.NewBaselineLocator(readings, loc, cfg.Billing.BaselineLookbackMonths)
	if err != nil {
		return nil, err
	}
	usage, err := meteringapp.NewUsageCalculator(readings, locator)
	if err != nil {
		return nil, err
	}
	usageReader, err := billingusage.NewUsageReader(usage)
	if err != nil {
		return nil, err
	}

	tariffs, err := billingapp.NewTariffService(billingrepo.NewTariffRepository(db), tx, billingapp.WithTariffLogger(logger))
	if err != nil {
		return nil, err
	}
	// Events land in the outbox; the server's dispatch loop delivers them.
	publisher := billinginterfaces.NewOutboxPublisher(eventing.NewPublisher(eventingpg.NewOutboxStore(db), nil))
	paymentRepo := billingrepo.NewPaymentRepository(db)
	generator, err := billingapp.NewPaymentGenerator(paymentRepo, tariffs, usageReader, tx,
		billingapp.GenerationPolicy{GracePeriodMonths: cfg.Billing.GracePeriodMonths, Location: loc},
		billingapp.WithApartmentLister(apartments),
		billingapp.WithPaymentPublisher(publisher),
		billingapp.WithGeneratorLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	payments, err := billingapp.NewPaymentService(paymentRepo, tariffs, tx, billingapp.WithOverdueAfter(cfg.OverdueAfter()))
	if err != nil {
		return nil, err
	}
	return &services{db: db, tariffs: tariffs, generator: generator, payments: payments}, nil
}

func (s *services) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func render(w io.Writer, format string, value any) error {
	switch format {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(value)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(toPlain(value))
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// toPlain round-trips through JSON so yaml output uses the json field names
// and the text forms of decimals and months.
func toPlain(value any) any {
	data, err := json.Marshal(value)
	if err != nil {
		return value
	}
	var plain any
	if err := json.Unmarshal(data, &plain); err != nil {
		return value
	}
	return plain
}
