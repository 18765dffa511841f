package cli

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/spf13/cobra"

	"github.com/stilehq/stile/internal/model"
)

func newCodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "code",
		Short: "Manage one-time verification codes",
		Long:  "Issue and inspect the one-time codes consumed by the step-up verification flow. Codes are normally issued by the platform; this command exists for operators and testing.",
	}

	cmd.AddCommand(newCodeIssueCmd())
	cmd.AddCommand(newCodeCountCmd())

	return cmd
}

func newCodeIssueCmd() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "issue <user-id>",
		Short: "Issue a one-time code for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			code, err := generateCode()
			if err != nil {
				return fmt.Errorf("generate code: %w", err)
			}

			otc := &model.OneTimeCode{
				UserID:    args[0],
				Code:      code,
				ExpiresAt: time.Now().UTC().Add(ttl),
			}
			if err := st.CreateCode(context.Background(), otc); err != nil {
				return fmt.Errorf("create code: %w", err)
			}

			fmt.Printf("Code for %s: %s (expires %s)\n", args[0], code, otc.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 10*time.Minute, "How long the code stays valid")

	return cmd
}

func newCodeCountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count <user-id>",
		Short: "Count outstanding codes for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			n, err := st.CountCodes(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("count codes: %w", err)
			}
			fmt.Printf("%d outstanding code(s) for %s\n", n, args[0])
			return nil
		},
	}
}

// generateCode returns a 6-digit numeric code with uniform distribution.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
