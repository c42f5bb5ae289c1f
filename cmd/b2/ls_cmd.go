package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/b2kit/b2go/b2"
)

func init() {
	rootCmd.AddCommand(newLsCmd())
}

func newLsCmd() *cobra.Command {
	var long bool

	cmd := &cobra.Command{
		Use:   "ls <bucket> [prefix]",
		Short: "List files in a bucket",
		Args:  cobra.RangeArgs(1, 2),
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

			params := &b2.ListFileNamesParams{BucketID: bucketID, MaxFileCount: 1000}
			if len(args) == 2 {
				params.Prefix = args[1]
			}

			out := cmd.OutOrStdout()
			for {
				result, err := client.ListFileNames(cmd.Context(), params)
				if err != nil {
					return err
				}
				for _, f := range result.Files {
					if long {
						fmt.Fprintf(out, "%s  %10s  %s  %s\n",
							f.UploadTimestamp.Time().Format("2006-01-02 15:04:05"),
							humanize.Bytes(uint64(f.ContentLength)),
							f.FileID,
							cyan(f.FileName))
					} else {
						fmt.Fprintln(out, f.FileName)
					}
				}
				if result.NextFileName == nil {
					return nil
				}
				params.StartFileName = *result.NextFileName
			}
		},
	}

	cmd.Flags().BoolVarP(&long, "long", "l", false, "show timestamps, sizes and file ids")
	return cmd
}
