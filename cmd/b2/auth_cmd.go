package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(newAuthCmd())
}

func newAuthCmd() *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Verify credentials against the service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			client, err := newClient(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			auth := client.Auth()
			api := auth.StorageAPI()
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, green("authorized"), "account", cyan(auth.AccountID))
			fmt.Fprintln(out, "  api url:     ", api.APIURL)
			fmt.Fprintln(out, "  download url:", api.DownloadURL)
			fmt.Fprintln(out, "  s3 url:      ", api.S3APIURL)
			fmt.Fprintln(out, "  capabilities:", api.Capabilities)
			if exp := auth.KeyExpiresAt(); !exp.IsZero() {
				fmt.Fprintln(out, "  key expires: ", exp.Format(time.RFC3339))
			}

			if save {
				path := viper.ConfigFileUsed()
				if path == "" {
					path = filepath.Join(defaultConfigDir, configFileName+".json")
				}
				if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
					return err
				}
				if err := viper.WriteConfigAs(path); err != nil {
					return err
				}
				fmt.Fprintln(out, green("saved"), "credentials to", path)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "save credentials to the config file")
	return cmd
}
