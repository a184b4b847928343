package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"mueck/internal/domain"
	"mueck/internal/infra/credentials"
)

func newVendorKeyCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vendorkey",
		Short: "Manage stored vendor API keys",
	}

	var vendor, key string
	set := &cobra.Command{
		Use:   "set",
		Short: "Store or replace the API key of a vendor",
		Long:  "Stores the key in integration_tokens. Keys set in the environment still take precedence at worker start.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			kind := domain.VendorKind(strings.ToLower(strings.TrimSpace(vendor)))
			if !kind.Valid() {
				return fmt.Errorf("unsupported vendor %q", vendor)
			}
			if strings.TrimSpace(key) == "" {
				key = os.Getenv(strings.ToUpper(strings.ReplaceAll(string(kind), "_", "")) + "_API_KEY")
			}
			if strings.TrimSpace(key) == "" {
				return fmt.Errorf("%s API key is required via --key or environment", kind)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			runner, closeFn, err := opts.connect(ctx, "vendorkey")
			if err != nil {
				return err
			}
			defer closeFn()
			if err := credentials.NewStore(runner).SetVendorAPIKey(ctx, kind, key); err != nil {
				return fmt.Errorf("failed to persist %s api key: %w", kind, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s API key stored successfully\n", kind)
			return nil
		},
	}
	set.Flags().StringVar(&vendor, "vendor", string(domain.VendorTensorArt), "Vendor to configure (tensor_art, civitai, local)")
	set.Flags().StringVar(&key, "key", "", "API key (falls back to TENSORART_API_KEY / CIVITAI_API_KEY / LOCAL_API_KEY)")

	cmd.AddCommand(set)
	return cmd
}
