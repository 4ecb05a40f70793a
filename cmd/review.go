package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/sales-tracker/internal/config"
	"github.com/sells-group/sales-tracker/internal/model"
	"github.com/sells-group/sales-tracker/internal/queue"
	"github.com/sells-group/sales-tracker/internal/review"
	"github.com/sells-group/sales-tracker/internal/store"
)

var (
	reviewSegment string
	reviewDigest  string
	reviewReply   string
	reviewSale    string
	reviewVerdict string
	reviewNote    string
	reviewJSON    bool
	reviewLimit   int
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Human review of pending comparable sales",
}

var reviewPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List a segment's sales awaiting review",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		seg, err := cfg.Segment(reviewSegment)
		if err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		items, err := newReviewService(st).Pending(ctx, seg, reviewLimit)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), items)
	},
}

var reviewDigestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Snapshot a segment's pending sales into a numbered digest",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		seg, err := cfg.Segment(reviewSegment)
		if err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		d, err := newReviewService(st).CreateDigest(ctx, seg)
		if err != nil {
			return err
		}
		if d == nil {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "No sales pending review for %s\n", seg.Code)
			return err
		}
		if reviewJSON {
			return printJSON(cmd.OutOrStdout(), d)
		}
		return review.WriteDigest(cmd.OutOrStdout(), d)
	},
}

var reviewReplyCmd = &cobra.Command{
	Use:   "reply",
	Short: "Apply a reply to a digest",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := newReviewService(st).ApplyReply(ctx, reviewDigest, reviewReply)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var reviewVerdictCmd = &cobra.Command{
	Use:   "verdict",
	Short: "Record a verdict for one sale",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		v, ok := model.ParseVerdict(reviewVerdict)
		if !ok {
			return eris.Errorf("verdict must be comparable or not_comparable (got %q)", reviewVerdict)
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		d := review.Decision{SaleID: reviewSale, Verdict: v, Note: reviewNote}
		if err := newReviewService(st).Ledger().ApplyVerdict(ctx, d); err != nil {
			return err
		}
		zap.L().Info("verdict recorded", zap.String("sale_id", reviewSale), zap.String("verdict", string(v)))
		return nil
	},
}

var reviewPublishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Queue a verdict or digest reply on the verdict stream",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("queue"); err != nil {
			return err
		}
		msg := review.VerdictMessage{
			DigestID: reviewDigest,
			Reply:    reviewReply,
			SaleID:   reviewSale,
			Verdict:  model.Verdict(reviewVerdict),
			Note:     reviewNote,
		}
		if err := msg.Validate(); err != nil {
			return err
		}

		stream, err := queue.Connect(ctx, queueConfig(cfg.Queue))
		if err != nil {
			return err
		}
		defer stream.Close() //nolint:errcheck

		id, err := stream.Publish(ctx, msg)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), id)
		return err
	},
}

var reviewConsumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Apply queued verdicts until interrupted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		if err := cfg.Validate("queue"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		stream, err := queue.Connect(ctx, queueConfig(cfg.Queue))
		if err != nil {
			return err
		}
		defer stream.Close() //nolint:errcheck

		zap.L().Info("consuming verdicts", zap.String("stream", cfg.Queue.Stream), zap.String("group", cfg.Queue.Group))
		return runConsumer(ctx, stream, newReviewService(st))
	},
}

func newReviewService(st store.Store) *review.Service {
	links := review.ListingLinks{BaseURL: cfg.Review.ListingBaseURL, State: cfg.Review.ListingState}
	return review.NewService(st, review.NewLedger(st, appMetrics()), links, cfg.Review.DigestLimit)
}

func queueConfig(c config.QueueConfig) queue.Config {
	return queue.Config{
		URL:      c.RedisURL,
		Stream:   c.Stream,
		Group:    c.Group,
		Consumer: c.Consumer,
		Block:    time.Duration(c.BlockSecs) * time.Second,
	}
}

// runConsumer applies verdicts from the stream until ctx is cancelled.
func runConsumer(ctx context.Context, stream *queue.Stream, service *review.Service) error {
	return review.NewConsumer(stream, service).Run(ctx)
}

func init() {
	for _, c := range []*cobra.Command{reviewPendingCmd, reviewDigestCmd} {
		c.Flags().StringVar(&reviewSegment, "segment", "", "segment code (required)")
		_ = c.MarkFlagRequired("segment")
	}
	reviewPendingCmd.Flags().IntVar(&reviewLimit, "limit", 0, "max sales to list (0 = all)")
	reviewDigestCmd.Flags().BoolVar(&reviewJSON, "json", false, "print the digest as JSON")

	for _, c := range []*cobra.Command{reviewReplyCmd, reviewPublishCmd} {
		c.Flags().StringVar(&reviewDigest, "digest", "", "digest id")
		c.Flags().StringVar(&reviewReply, "text", "", "reply text, e.g. \"1✅ 2❌\"")
	}
	_ = reviewReplyCmd.MarkFlagRequired("digest")
	_ = reviewReplyCmd.MarkFlagRequired("text")

	for _, c := range []*cobra.Command{reviewVerdictCmd, reviewPublishCmd} {
		c.Flags().StringVar(&reviewSale, "sale", "", "authoritative sale id")
		c.Flags().StringVar(&reviewVerdict, "verdict", "", "comparable or not_comparable")
		c.Flags().StringVar(&reviewNote, "note", "", "optional review note")
	}
	_ = reviewVerdictCmd.MarkFlagRequired("sale")
	_ = reviewVerdictCmd.MarkFlagRequired("verdict")

	reviewCmd.AddCommand(reviewPendingCmd, reviewDigestCmd, reviewReplyCmd, reviewVerdictCmd, reviewPublishCmd, reviewConsumeCmd)
	rootCmd.AddCommand(reviewCmd)
}
