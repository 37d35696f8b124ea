package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yairfalse/autotag/internal/account"
	"github.com/yairfalse/autotag/internal/credentials"
)

var (
	linkPrincipal  string
	linkOwner      string
	linkAccount    string
	linkRoleARN    string
	linkExternalID string

	showOwner   string
	showAccount string
	showOutput  string
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage linked AWS accounts",
}

var accountLinkCmd = &cobra.Command{
	Use:   "link",
	Short: "Link a delegated AWS account",
	Long: `Store the trust role and external id autotag assumes to reach an account.
With --principal, also map that identity to the owner so API calls made with
its token resolve to this owner's accounts.`,
	Example: `  autotag account link --owner u-123 --principal alice@example.com \
    --account 123456789012 \
    --role-arn arn:aws:iam::123456789012:role/autotag-access \
    --external-id 7f3c...`,
	RunE: runAccountLink,
}

var accountShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a linked account",
	RunE:  runAccountShow,
}

func init() {
	rootCmd.AddCommand(accountCmd)
	accountCmd.AddCommand(accountLinkCmd, accountShowCmd)

	accountLinkCmd.Flags().StringVar(&linkPrincipal, "principal", "", "Identity (token claim) that owns the account")
	accountLinkCmd.Flags().StringVar(&linkOwner, "owner", "", "Owner id")
	accountLinkCmd.Flags().StringVar(&linkAccount, "account", "", "AWS account id")
	accountLinkCmd.Flags().StringVar(&linkRoleARN, "role-arn", "", "Trust role ARN")
	accountLinkCmd.Flags().StringVar(&linkExternalID, "external-id", "", "External id the trust policy requires")
	for _, f := range []string{"owner", "account", "role-arn"} {
		_ = accountLinkCmd.MarkFlagRequired(f)
	}

	accountShowCmd.Flags().StringVar(&showOwner, "owner", "", "Owner id")
	accountShowCmd.Flags().StringVar(&showAccount, "account", "", "AWS account id")
	accountShowCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (json, yaml)")
	_ = accountShowCmd.MarkFlagRequired("owner")
	_ = accountShowCmd.MarkFlagRequired("account")
}

// linkBinding validates and stores a binding, plus the principal mapping when given.
func linkBinding(ctx context.Context, store account.Store, principal string, b account.Binding) error {
	roleAccount, err := credentials.AccountFromRoleARN(b.RoleARN)
	if err != nil {
		return err
	}
	if roleAccount != b.AccountID {
		return fmt.Errorf("role %s belongs to account %s, not %s", b.RoleARN, roleAccount, b.AccountID)
	}

	if err := store.PutBinding(ctx, b); err != nil {
		return fmt.Errorf("store binding: %w", err)
	}
	if principal != "" {
		if err := store.PutOwner(ctx, principal, b.OwnerID); err != nil {
			return fmt.Errorf("store owner: %w", err)
		}
	}
	return nil
}

func runAccountLink(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	b := account.Binding{
		OwnerID:    linkOwner,
		AccountID:  linkAccount,
		RoleARN:    linkRoleARN,
		ExternalID: linkExternalID,
	}
	if err := linkBinding(ctx, store, linkPrincipal, b); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "linked account %s for owner %s\n", b.AccountID, b.OwnerID)
	return nil
}

func runAccountShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	b, err := store.Binding(ctx, showOwner, showAccount)
	if err != nil {
		return fmt.Errorf("account %s: %w", showAccount, err)
	}
	if b.ExternalID != "" {
		b.ExternalID = "********"
	}
	return writeOutput(cmd.OutOrStdout(), showOutput, b)
}
