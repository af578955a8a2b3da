package main

import (
	"github.com/spf13/cobra"
)

func newPaymentCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payment",
		Short: "Inspect payments and record payment processing",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show <id>",
			Short: "Show a payment with its display status and bill",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				svc, err := openServices(cmd.Context(), opts)
				if err != nil {
					return err
				}
				defer svc.Close()
				view, err := svc.payments.View(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := map[string]any{
					"id":             view.Payment.ID,
					"apartment_id":   view.Payment.ApartmentID,
					"billing_month":  view.Payment.BillingMonth,
					"amount":         view.Payment.Amount,
					"pay_date":       view.Payment.PayDate.Format("2006-01-02"),
					"status":         view.Payment.Status,
					"display_status": view.Status,
				}
				if view.Bill != nil {
					out["bill"] = view.Bill.Rounded()
				}
				return render(cmd.OutOrStdout(), opts.output, out)
			},
		},
		&cobra.Command{
			Use:   "pay <id>",
			Short: "Mark an unpaid payment as paid",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				svc, err := openServices(cmd.Context(), opts)
				if err != nil {
					return err
				}
				defer svc.Close()
				payment, err := svc.payments.MarkPaid(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), opts.output, map[string]any{"id": payment.ID, "status": payment.Status, "paid_date": payment.PaidDate})
			},
		},
		&cobra.Command{
			Use:   "cancel <id>",
			Short: "Cancel an unpaid payment",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				svc, err := openServices(cmd.Context(), opts)
				if err != nil {
					return err
				}
				defer svc.Close()
				payment, err := svc.payments.Cancel(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), opts.output, map[string]any{"id": payment.ID, "status": payment.Status})
			},
		},
	)
	return cmd
}
