package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yairfalse/autotag/internal/filter"
	"github.com/yairfalse/autotag/pkg/resource"
)

var (
	discoverOwner   string
	discoverAccount string
	discoverOutput  string

	discoverCategories []string
	discoverTags       map[string]string
	discoverUntagged   bool
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover every resource in a linked account",
	Long: `Assume the account's trust role and list compute instances, databases,
cache clusters, CDN distributions and buckets across every region.

Any failed region or category aborts the run; no partial inventory is printed.`,
	Example: `  autotag discover --owner u-123 --account 123456789012
  autotag discover --owner u-123 --account 123456789012 --output yaml
  autotag discover --owner u-123 --account 123456789012 --untagged --category compute,database`,
	RunE: runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)
	discoverCmd.Flags().StringVar(&discoverOwner, "owner", "", "Owner id the account is linked under")
	discoverCmd.Flags().StringVar(&discoverAccount, "account", "", "AWS account id")
	discoverCmd.Flags().StringVarP(&discoverOutput, "output", "o", "json", "Output format (json, yaml)")
	discoverCmd.Flags().StringSliceVar(&discoverCategories, "category", nil, "Only print these categories (compute, database, cache, cdn, storage)")
	discoverCmd.Flags().StringToStringVar(&discoverTags, "tag", nil, "Only print resources carrying these tags (key=value)")
	discoverCmd.Flags().BoolVar(&discoverUntagged, "untagged", false, "Only print resources that lack the configured tag key")
	_ = discoverCmd.MarkFlagRequired("owner")
	_ = discoverCmd.MarkFlagRequired("account")
}

func runDiscover(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	f, err := newInventoryFilter(cfg.Tagging.Key)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	binding, err := a.store.Binding(ctx, discoverOwner, discoverAccount)
	if err != nil {
		return err
	}

	inv, err := a.discovery.DiscoverBinding(ctx, *binding)
	if err != nil {
		return err
	}
	return writeOutput(cmd.OutOrStdout(), discoverOutput, f.Apply(inv))
}

func newInventoryFilter(tagKey string) (*filter.Filter, error) {
	categories := make([]resource.Category, 0, len(discoverCategories))
	for _, c := range discoverCategories {
		category := resource.Category(c)
		if !category.Valid() {
			return nil, fmt.Errorf("unknown category %q", c)
		}
		categories = append(categories, category)
	}

	missingKey := ""
	if discoverUntagged {
		missingKey = tagKey
	}
	return filter.New(categories, discoverTags, missingKey), nil
}
