package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired trusted devices and one-time codes",
		Long: `Remove rows whose expiry has passed. The gateway never serves expired
devices or codes, so sweeping is purely hygiene; run it from cron if table
growth matters.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			ctx := context.Background()
			now := time.Now().UTC()

			devices, err := st.DeleteExpiredDevices(ctx, now)
			if err != nil {
				return fmt.Errorf("sweep devices: %w", err)
			}
			codes, err := st.DeleteExpiredCodes(ctx, now)
			if err != nil {
				return fmt.Errorf("sweep codes: %w", err)
			}

			fmt.Printf("Removed %d expired device(s) and %d expired code(s).\n", devices, codes)
			return nil
		},
	}
}
