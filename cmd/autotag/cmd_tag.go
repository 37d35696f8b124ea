package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/yairfalse/autotag/pkg/resource"
)

var (
	tagOwner   string
	tagAccount string
	tagFile    string
	tagOutput  string
)

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Apply environment tags to resources in a linked account",
	Long: `Read tag requests grouped by category and write the configured tag key
to each resource. Every write succeeds or fails on its own; the account is
marked as tagged once the pass finishes.

The requests file is YAML or JSON, in the shape discover prints plus an
env value per resource:

  compute:
    - id: i-0abc
      region: us-east-1
      env: prod
  storage:
    - id: assets-bucket
      region: global
      env: prod`,
	Example: `  autotag tag --owner u-123 --account 123456789012 --file requests.yaml`,
	RunE:    runTag,
}

func init() {
	rootCmd.AddCommand(tagCmd)
	tagCmd.Flags().StringVar(&tagOwner, "owner", "", "Owner id the account is linked under")
	tagCmd.Flags().StringVar(&tagAccount, "account", "", "AWS account id")
	tagCmd.Flags().StringVarP(&tagFile, "file", "f", "", "Tag requests file (yaml or json)")
	tagCmd.Flags().StringVarP(&tagOutput, "output", "o", "json", "Output format (json, yaml)")
	_ = tagCmd.MarkFlagRequired("owner")
	_ = tagCmd.MarkFlagRequired("account")
	_ = tagCmd.MarkFlagRequired("file")
}

// readTagRequests parses a requests file. YAML is a superset of JSON, so one
// decoder covers both.
func readTagRequests(path string) (resource.TagRequests, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is operator input
	if err != nil {
		return nil, fmt.Errorf("read requests: %w", err)
	}

	var requests resource.TagRequests
	if err := yaml.Unmarshal(data, &requests); err != nil {
		return nil, fmt.Errorf("parse requests: %w", err)
	}
	for category := range requests {
		if !category.Valid() {
			return nil, fmt.Errorf("unknown category %q", category)
		}
	}
	return requests, nil
}

func runTag(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	requests, err := readTagRequests(tagFile)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	binding, err := a.store.Binding(ctx, tagOwner, tagAccount)
	if err != nil {
		return err
	}

	result, err := a.tagging.TagBinding(ctx, *binding, requests)
	if err != nil {
		return err
	}
	return writeOutput(cmd.OutOrStdout(), tagOutput, result)
}
