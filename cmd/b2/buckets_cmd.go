package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/b2kit/b2go/b2"
)

func init() {
	bucketsCmd := newBucketsCmd()
	bucketsCmd.AddCommand(newBucketsCreateCmd())
	bucketsCmd.AddCommand(newBucketsDeleteCmd())
	rootCmd.AddCommand(bucketsCmd)
}

func newBucketsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "buckets",
		Short: "List buckets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			client, err := newClient(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			buckets, err := client.ListBuckets(cmd.Context(), nil)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, b := range buckets {
				fmt.Fprintf(out, "%s  %-10s  %s\n", b.BucketID, b.BucketType, cyan(b.BucketName))
			}
			return nil
		},
	}
}

func newBucketsCreateCmd() *cobra.Command {
	var public bool

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			client, err := newClient(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			bucketType := b2.BucketAllPrivate
			if public {
				bucketType = b2.BucketAllPublic
			}
			bucket, err := client.CreateBucket(cmd.Context(), &b2.CreateBucketParams{
				BucketName: args[0],
				BucketType: bucketType,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), green("created"), bucket.BucketName, bucket.BucketID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&public, "public", false, "make files publicly downloadable")
	return cmd
}

func newBucketsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete an empty bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			client, err := newClient(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			bucketID, err := client.ResolveBucketID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if _, err := client.DeleteBucket(cmd.Context(), bucketID); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), green("deleted"), args[0])
			return nil
		},
	}
}
