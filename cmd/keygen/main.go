package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mempool-flow/internal/auth"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "keygen",
		Short:        "Generate the ed25519 keypair used to authenticate to the feed",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         runKeygen,
	}
	cmd.Flags().String("keypair", auth.DefaultKeypairPath, "output path")
	cmd.Flags().Bool("force", false, "overwrite an existing keypair")
	return cmd
}

func runKeygen(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("keypair")
	force, _ := cmd.Flags().GetBool("force")

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	kp, err := auth.Generate()
	if err != nil {
		return err
	}
	if err := auth.Save(path, kp); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Keypair written to %s\n", path)
	fmt.Fprintf(cmd.OutOrStdout(), "Public key: %s\n", kp.PublicKey())
	return nil
}
