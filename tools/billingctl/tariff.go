package main

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	billing "water-billing/internal/billing/domain"
)

func newTariffCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tariff",
		Short: "Inspect and replace tariffs",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "active",
			Short: "Show the active tariff",
			RunE: func(cmd *cobra.Command, args []string) error {
				svc, err := openServices(cmd.Context(), opts)
				if err != nil {
					return err
				}
				defer svc.Close()
				tariff, err := svc.tariffs.Active(cmd.Context())
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), opts.output, tariff)
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List all tariffs, newest first",
			RunE: func(cmd *cobra.Command, args []string) error {
				svc, err := openServices(cmd.Context(), opts)
				if err != nil {
					return err
				}
				defer svc.Close()
				tariffs, err := svc.tariffs.List(cmd.Context())
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), opts.output, tariffs)
			},
		},
		newTariffCreateCmd(opts),
	)
	return cmd
}

func newTariffCreateCmd(opts *options) *cobra.Command {
	var cold, hot, dirty, from string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Close the active tariff and activate new rates",
		RunE: func(cmd *cobra.Command, args []string) error {
			rates, effectiveFrom, err := parseTariffFlags(cold, hot, dirty, from)
			if err != nil {
				return err
			}
			svc, err := openServices(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer svc.Close()
			tariff, err := svc.tariffs.Create(cmd.Context(), rates, effectiveFrom)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, tariff)
		},
	}
	cmd.Flags().StringVar(&cold, "cold", "", "cold water rate per unit")
	cmd.Flags().StringVar(&hot, "hot", "", "hot water rate per unit")
	cmd.Flags().StringVar(&dirty, "dirty", "", "dirty water rate per unit")
	cmd.Flags().StringVar(&from, "effective-from", "", "RFC3339 start (default now)")
	_ = cmd.MarkFlagRequired("cold")
	_ = cmd.MarkFlagRequired("hot")
	_ = cmd.MarkFlagRequired("dirty")
	return cmd
}

func parseTariffFlags(cold, hot, dirty, from string) (billing.Rates, time.Time, error) {
	parse := func(name, value string) (decimal.Decimal, error) {
		rate, err := decimal.NewFromString(value)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid --%s %q", name, value)
		}
		return rate, nil
	}
	var rates billing.Rates
	var err error
	if rates.ColdWater, err = parse("cold", cold); err != nil {
		return rates, time.Time{}, err
	}
	if rates.HotWater, err = parse("hot", hot); err != nil {
		return rates, time.Time{}, err
	}
	if rates.DirtyWater, err = parse("dirty", dirty); err != nil {
		return rates, time.Time{}, err
	}
	if err := rates.Validate(); err != nil {
		return rates, time.Time{}, err
	}
	var effectiveFrom time.Time
	if from != "" {
		effectiveFrom, err = time.Parse(time.RFC3339, from)
		if err != nil {
			return rates, time.Time{}, fmt.Errorf("invalid --effective-from %q: want RFC3339", from)
		}
	}
	return rates, effectiveFrom, nil
}
