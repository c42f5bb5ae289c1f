package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/b2kit/b2go/b2"
)

func init() {
	rootCmd.AddCommand(newRmCmd())
}

func newRmCmd() *cobra.Command {
	var (
		fileID string
		hide   bool
	)

	cmd := &cobra.Command{
		Use:   "rm <bucket> <file>",
		Short: "Delete all versions of a file, or hide it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			client, err := newClient(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			bucket, fileName := args[0], args[1]
			bucketID, err := client.ResolveBucketID(cmd.Context(), bucket)
			if err != nil {
				return err
			}

			if hide {
				if _, err := client.HideFile(cmd.Context(), bucketID, fileName); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), green("hidden"), cyan(fileName))
				return nil
			}

			if fileID != "" {
				if _, err := client.DeleteFileVersion(cmd.Context(), fileName, fileID, false); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), green("deleted"), cyan(fileName), fileID)
				return nil
			}

			deleted := 0
			startName, startID := fileName, ""
			for {
				result, err := client.ListFileVersions(cmd.Context(), &b2.ListFileVersionsParams{
					BucketID:      bucketID,
					StartFileName: startName,
					StartFileID:   startID,
					Prefix:        fileName,
				})
				if err != nil {
					return err
				}
				for _, f := range result.Files {
					if f.FileName != fileName {
						continue
					}
					if _, err := client.DeleteFileVersion(cmd.Context(), f.FileName, f.FileID, false); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), green("deleted"), cyan(f.FileName), f.FileID)
					deleted++
				}
				if result.NextFileName == nil || *result.NextFileName != fileName {
					break
				}
				startName = *result.NextFileName
				if result.NextFileID != nil {
					startID = *result.NextFileID
				}
			}
			if deleted == 0 {
				return fmt.Errorf("file %q not found in bucket %q", fileName, bucket)
			}
			return nil
		},
		Args: cobra.ExactArgs(2),
	}

	cmd.Flags().StringVar(&fileID, "file-id", "", "delete this exact version instead of all versions")
	cmd.Flags().BoolVar(&hide, "hide", false, "hide the file instead of deleting a version")
	return cmd
}
