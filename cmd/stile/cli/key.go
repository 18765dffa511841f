package cli

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stilehq/stile/internal/model"
	"github.com/stilehq/stile/internal/store"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "key",
		Aliases: []string{"apikey"},
		Short:   "Manage API keys",
		Long:    "Create, list, and revoke the API keys used to authenticate against the resource gateway. Issuance is administrative: the gateway itself never creates or deletes keys.",
	}

	cmd.AddCommand(newKeyCreateCmd())
	cmd.AddCommand(newKeyListCmd())
	cmd.AddCommand(newKeyRevokeCmd())

	return cmd
}

// ---------- key create ----------

func newKeyCreateCmd() *cobra.Command {
	var (
		label   string
		expires string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new API key",
		Long:  "Generate a new API key. The raw key is shown once and cannot be retrieved again; only its hash is stored.",
		Example: `  stile key create --label "billing dashboard"
  stile key create --label "partner export" --expires 720h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyCreate(label, expires)
		},
	}

	cmd.Flags().StringVar(&label, "label", "", "Human-readable label for the key")
	cmd.Flags().StringVar(&expires, "expires", "", "Optional validity duration (e.g. 720h); omit for no expiry")

	return cmd
}

func runKeyCreate(label, expires string) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	var expiresAt *time.Time
	if expires != "" {
		ttl, err := time.ParseDuration(expires)
		if err != nil {
			return fmt.Errorf("parse --expires: %w", err)
		}
		t := time.Now().UTC().Add(ttl)
		expiresAt = &t
	}

	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return fmt.Errorf("generate random key: %w", err)
	}
	rawKey := "stile_" + hex.EncodeToString(randomBytes)

	apiKey := &model.APIKey{
		KeyHash:   store.HashAPIKey(rawKey),
		KeyPrefix: rawKey[:14], // stile_ + 8 hex chars
		Label:     label,
		IsActive:  true,
		ExpiresAt: expiresAt,
	}

	if err := st.CreateAPIKey(context.Background(), apiKey); err != nil {
		return fmt.Errorf("create api key: %w", err)
	}

	fmt.Println("API key created:")
	fmt.Println()
	fmt.Printf("  Key:    %s\n", rawKey)
	if label != "" {
		fmt.Printf("  Label:  %s\n", label)
	}
	if expiresAt != nil {
		fmt.Printf("  Expires: %s\n", expiresAt.Format(time.RFC3339))
	}
	fmt.Println()
	fmt.Println("  Save this key now - it cannot be retrieved again.")
	return nil
}

// ---------- key list ----------

func newKeyListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			keys, err := st.ListAPIKeys(context.Background())
			if err != nil {
				return fmt.Errorf("list api keys: %w", err)
			}

			if len(keys) == 0 {
				fmt.Println("No API keys. Create one with: stile key create")
				return nil
			}

			fmt.Printf("%-16s %-24s %-8s %-22s %s\n", "PREFIX", "LABEL", "ACTIVE", "EXPIRES", "LAST USED")
			for _, k := range keys {
				expires := "-"
				if k.ExpiresAt != nil {
					expires = k.ExpiresAt.Format(time.RFC3339)
				}
				lastUsed := "never"
				if k.LastUsedAt != nil {
					lastUsed = k.LastUsedAt.Format(time.RFC3339)
				}
				fmt.Printf("%-16s %-24s %-8t %-22s %s\n", k.KeyPrefix, k.Label, k.IsActive, expires, lastUsed)
			}
			return nil
		},
	}
}

// ---------- key revoke ----------

func newKeyRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <prefix>",
		Short: "Revoke an API key by its prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			if err := st.RevokeAPIKeyByPrefix(context.Background(), args[0]); err != nil {
				return fmt.Errorf("revoke api key: %w", err)
			}
			fmt.Printf("Key %s revoked.\n", args[0])
			return nil
		},
	}
}
