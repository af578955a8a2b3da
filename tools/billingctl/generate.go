package main

import (
	"fmt"

	"github.com/spf13/cobra"

	billingapp "water-billing/internal/billing/application"
	"water-billing/internal/calendar"
)

func newGenerateCmd(opts *options) *cobra.Command {
	var (
		month       string
		apartmentID string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate payments for a billing month",
		Long: `Generate creates the month's payment for one apartment, or for every
apartment when --apartment is omitted. Existing payments are reported and
left unchanged, so the command is safe to re-run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := calendar.ParseMonth(month)
			if err != nil {
				return fmt.Errorf("invalid --month %q: want YYYY-MM", month)
			}
			svc, err := openServices(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer svc.Close()

			if apartmentID != "" {
				result, err := svc.generator.Generate(cmd.Context(), billingapp.GenerateRequest{
					ApartmentID: apartmentID,
					UserID:      billingapp.SystemUserID,
					Month:       target,
				})
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), opts.output, map[string]any{
					"payment_id": result.Payment.ID,
					"amount":     result.Payment.Amount,
					"pay_date":   result.Payment.PayDate.Format("2006-01-02"),
					"existed":    result.Existed,
				})
			}
			batch, err := svc.generator.GenerateMonth(cmd.Context(), target)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, batch)
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "billing month, YYYY-MM")
	cmd.Flags().StringVar(&apartmentID, "apartment", "", "limit to one apartment")
	_ = cmd.MarkFlagRequired("month")
	return cmd
}
