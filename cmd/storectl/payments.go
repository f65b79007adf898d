package main

import (
	"encoding/json"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/imrishuroy/go-ebook-store/internal/app"
	"github.com/imrishuroy/go-ebook-store/internal/orders"
)

func paymentCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payment",
		Short: "Inspect bKash payments",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status PAYMENT_ID",
		Short: "Query bKash for the state of a payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.cfg.ValidateGateway(); err != nil {
				return err
			}
			return e.withApp(cmd.Context(), func(a *app.App) error {
				q, err := a.Gateway.QueryPayment(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(q)
			})
		},
	})
	return cmd
}

func reconcileCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile ORDER_ID",
		Short: "Settle a pending order from its bKash payment status",
		Long: `Query bKash for the payment attached to a pending order and mark the
order paid when the transaction completed. Use it when the customer paid
but never came back through the callback.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.cfg.ValidateGateway(); err != nil {
				return err
			}
			return e.withApp(cmd.Context(), func(a *app.App) error {
				res, err := a.Orders.Reconcile(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				switch {
				case res.AlreadyPaid:
					printf(cmd.OutOrStdout(), "order %s was already paid\n", res.Order.ID)
				case res.Order.Status == orders.StatusPaid:
					printf(cmd.OutOrStdout(), "order %s marked paid (trx %s)\n", res.Order.ID, res.Order.TrxID)
				default:
					printf(cmd.OutOrStdout(), "order %s still %s, bKash reports %q\n", res.Order.ID, res.Order.Status, res.TransactionStatus)
				}
				return nil
			})
		},
	}
}

func ordersCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Look up orders",
	}
	var q orders.FindQuery
	find := &cobra.Command{
		Use:   "find",
		Short: "Find orders by email, payment id, transaction id or reference",
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd.Context(), func(a *app.App) error {
				list, err := a.Orders.Find(cmd.Context(), q)
				if err != nil {
					return err
				}
				printOrders(cmd.OutOrStdout(), list)
				return nil
			})
		},
	}
	find.Flags().StringVar(&q.Email, "email", "", "customer email")
	find.Flags().StringVar(&q.PaymentID, "payment-id", "", "bKash payment id")
	find.Flags().StringVar(&q.TrxID, "trx-id", "", "bKash transaction id")
	find.Flags().StringVar(&q.ReferenceNo, "reference", "", "order reference number")
	cmd.AddCommand(find)
	return cmd
}

func printOrders(w io.Writer, list []orders.Order) {
	if len(list) == 0 {
		printf(w, "no orders found\n")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	printf(tw, "ID\tREFERENCE\tSTATUS\tAMOUNT\tEMAIL\tTRX\tCREATED\n")
	for _, o := range list {
		printf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			o.ID, o.ReferenceNo, strings.ToUpper(o.Status), o.Amount.StringFixed(2),
			o.Email, dash(o.TrxID), o.CreatedAt.Format("2006-01-02 15:04"))
	}
	_ = tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
