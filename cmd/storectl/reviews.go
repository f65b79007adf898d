package main

import (
	"context"
	"fmt"
	"io"
	"os/user"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/imrishuroy/go-ebook-store/internal/app"
	"github.com/imrishuroy/go-ebook-store/internal/reviews"
)

func reviewsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reviews",
		Short: "List and moderate product reviews",
	}

	var status string
	list := &cobra.Command{
		Use:   "list",
		Short: "List reviews waiting for moderation (or in --status)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd.Context(), func(a *app.App) error {
				rs, err := a.Reviews.ListForModeration(cmd.Context(), status)
				if err != nil {
					return err
				}
				printReviews(cmd.OutOrStdout(), rs)
				return nil
			})
		},
	}
	list.Flags().StringVarP(&status, "status", "s", reviews.StatusPending, "pending, approved or rejected")

	var operator string
	approve := moderationCmd(e, "approve", "Approve pending reviews", func(ctx context.Context, a *app.App, ids []int64) (*reviews.ModerationResult, error) {
		return a.Reviews.Approve(ctx, ids, operator)
	})
	approve.Flags().StringVar(&operator, "operator", currentUser(), "name recorded as approver")

	cmd.AddCommand(list, approve,
		moderationCmd(e, "reject", "Reject reviews", func(ctx context.Context, a *app.App, ids []int64) (*reviews.ModerationResult, error) {
			return a.Reviews.Reject(ctx, ids)
		}),
		moderationCmd(e, "reset", "Move reviews back to pending", func(ctx context.Context, a *app.App, ids []int64) (*reviews.ModerationResult, error) {
			return a.Reviews.ResetPending(ctx, ids)
		}),
	)
	return cmd
}

func moderationCmd(e *env, use, short string, apply func(ctx context.Context, a *app.App, ids []int64) (*reviews.ModerationResult, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ID...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return e.withApp(cmd.Context(), func(a *app.App) error {
				res, err := apply(cmd.Context(), a, ids)
				if err != nil {
					return err
				}
				printModeration(cmd.OutOrStdout(), use, res)
				return nil
			})
		},
	}
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil || id <= 0 {
				return nil, fmt.Errorf("invalid review id %q", part)
			}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no review ids given")
	}
	return ids, nil
}

func printReviews(w io.Writer, rs []reviews.Review) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	printf(tw, "ID\tPRODUCT\tRATING\tSTATUS\tEMAIL\tTITLE\n")
	for _, r := range rs {
		printf(tw, "%d\t%d\t%d\t%s\t%s\t%s\n", r.ID, r.ProductID, r.Rating, r.Status, r.Email, r.Title)
	}
	_ = tw.Flush()
}

func printModeration(w io.Writer, action string, res *reviews.ModerationResult) {
	printf(w, "%s: %d changed", action, len(res.Changed))
	if len(res.Skipped) > 0 {
		printf(w, ", skipped %v", res.Skipped)
	}
	printf(w, "\n")
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "storectl"
}
