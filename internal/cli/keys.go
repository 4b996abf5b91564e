package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/explainer/internal/apikey"
	"github.com/kiranshivaraju/explainer/internal/store"
	"github.com/kiranshivaraju/explainer/pkg/models"
	"github.com/spf13/cobra"
)

var (
	keyName   string
	keyScopes []string
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage API keys",
}

var keysCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an API key and print it once",
	Run: func(cmd *cobra.Command, args []string) {
		withKeyStore(func(ctx context.Context, ks keyStore) error {
			return createKey(ctx, cmd.OutOrStdout(), ks, keyName, keyScopes)
		})
	},
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active API keys",
	Run: func(cmd *cobra.Command, args []string) {
		withKeyStore(func(ctx context.Context, ks keyStore) error {
			return listKeys(ctx, cmd.OutOrStdout(), ks)
		})
	},
}

var keysRevokeCmd = &cobra.Command{
	Use:   "revoke [key-id]",
	Short: "Revoke an API key",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withKeyStore(func(ctx context.Context, ks keyStore) error {
			return revokeKey(ctx, cmd.OutOrStdout(), ks, args[0])
		})
	},
}

func init() {
	keysCreateCmd.Flags().StringVar(&keyName, "name", "", "key name (required)")
	keysCreateCmd.Flags().StringSliceVar(&keyScopes, "scopes", []string{apikey.ScopeRead, apikey.ScopeWrite}, "comma separated scopes: read, write, admin")
	_ = keysCreateCmd.MarkFlagRequired("name")

	keysCmd.AddCommand(keysCreateCmd, keysListCmd, keysRevokeCmd)
	rootCmd.AddCommand(keysCmd)
}

type keyStore interface {
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID) error
}

func withKeyStore(fn func(ctx context.Context, ks keyStore) error) {
	cfg := loadConfig()
	if cfg.Database.URL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := fn(ctx, store.NewPostgresStore(pool)); err != nil {
		slog.Error("Key command failed", "error", err)
		pool.Close()
		os.Exit(1)
	}
}

func createKey(ctx context.Context, out io.Writer, ks keyStore, name string, scopes []string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("name is required")
	}

	raw, key, err := apikey.Generate(name, scopes)
	if err != nil {
		return err
	}
	if err := ks.CreateAPIKey(ctx, key); err != nil {
		return fmt.Errorf("store api key: %w", err)
	}

	_, _ = fmt.Fprintf(out, "id:     %s\n", key.ID)
	_, _ = fmt.Fprintf(out, "scopes: %s\n", strings.Join(key.Scopes, ","))
	_, _ = fmt.Fprintf(out, "key:    %s\n", raw)
	_, _ = fmt.Fprintln(out, "Store this key now. It cannot be shown again.")
	return nil
}

func listKeys(ctx context.Context, out io.Writer, ks keyStore) error {
	keys, err := ks.ListAPIKeys(ctx)
	if err != nil {
		return fmt.Errorf("list api keys: %w", err)
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tPREFIX\tSCOPES\tLAST USED")
	for _, k := range keys {
		lastUsed := "never"
		if k.LastUsedAt != nil {
			lastUsed = k.LastUsedAt.Format(time.RFC3339)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", k.ID, k.Name, k.KeyPrefix, strings.Join(k.Scopes, ","), lastUsed)
	}
	return w.Flush()
}

func revokeKey(ctx context.Context, out io.Writer, ks keyStore, rawID string) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid key id %q: %w", rawID, err)
	}
	if err := ks.RevokeAPIKey(ctx, id); err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	_, _ = fmt.Fprintf(out, "revoked %s\n", id)
	return nil
}
