package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/b2kit/b2go/transfer"
)

func init() {
	rootCmd.AddCommand(newPutCmd())
}

func newPutCmd() *cobra.Command {
	var (
		remoteName  string
		contentType string
		concurrency int
		partSize    string
		throttle    string
	)

	cmd := &cobra.Command{
		Use:   "put <file> <bucket>",
		Short: "Upload a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			client, err := newClient(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			opts := transfer.Options{
				ContentType: contentType,
				Concurrency: concurrency,
				Progress: func(s transfer.Snapshot) {
					fmt.Fprintf(cmd.ErrOrStderr(), "\r%s        ", s)
				},
			}
			if partSize != "" {
				n, err := humanize.ParseBytes(partSize)
				if err != nil {
					return fmt.Errorf("invalid part size %q: %w", partSize, err)
				}
				opts.PartSize = int64(n)
			}
			if throttle != "" {
				n, err := humanize.ParseBytes(throttle)
				if err != nil {
					return fmt.Errorf("invalid throttle %q: %w", throttle, err)
				}
				opts.ThrottleBytesPerSecond = int64(n)
			}

			up, err := transfer.NewUpload(client, transfer.UploadParams{
				Bucket:   args[1],
				FilePath: args[0],
				FileName: remoteName,
			}, opts)
			if err != nil {
				return err
			}

			file, err := up.Start(cmd.Context())
			fmt.Fprintln(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), green("uploaded"), cyan(file.FileName), file.FileID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&remoteName, "name", "n", "", "remote file name (defaults to the local base name)")
	cmd.Flags().StringVarP(&contentType, "content-type", "t", "", "content type (default: auto-detect)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "concurrent part uploads for large files")
	cmd.Flags().StringVar(&partSize, "part-size", "", "part size for large files, e.g. 100MB")
	cmd.Flags().StringVar(&throttle, "throttle", "", "bandwidth cap, e.g. 10MB (per second)")
	return cmd
}
