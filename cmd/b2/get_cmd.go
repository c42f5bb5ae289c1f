package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/b2kit/b2go/internal/utils"
	"github.com/b2kit/b2go/transfer"
)

func init() {
	rootCmd.AddCommand(newGetCmd())
}

func newGetCmd() *cobra.Command {
	var targetDir string

	cmd := &cobra.Command{
		Use:   "get <bucket> <file>",
		Short: "Download a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			dir, err := utils.ResolvePath(targetDir)
			if err != nil {
				return err
			}

			client, err := newClient(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			job := &transfer.DownloadJob{
				Bucket:    args[0],
				FileName:  args[1],
				TargetDir: dir,
				Callback: func(job *transfer.DownloadJob, done, total int64) {
					fmt.Fprintf(cmd.ErrOrStderr(), "\r%s / %s        ",
						humanize.Bytes(uint64(done)), humanize.Bytes(uint64(total)))
				},
			}
			path, _, err := transfer.DownloadToFile(cmd.Context(), client, job)
			fmt.Fprintln(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), green("downloaded"), cyan(path))
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetDir, "dir", "d", ".", "target directory")
	return cmd
}
