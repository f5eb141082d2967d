package main

import (
	"fmt"

	"github.com/micro-blocks/mbc/upload"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func (a *app) uploadCmd() *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload an image or workspace to the device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image, err := a.loadImage(args[0])
			if err != nil {
				return err
			}
			opts := []upload.Option{
				upload.WithTimeout(a.cfg.Timeout),
				upload.WithLogger(a.log),
			}
			if !quiet && isTerminal(cmd.ErrOrStderr()) {
				bar := progressbar.NewOptions64(int64(len(image)),
					progressbar.OptionSetWriter(cmd.ErrOrStderr()),
					progressbar.OptionSetDescription("uploading"),
					progressbar.OptionShowBytes(true),
					progressbar.OptionClearOnFinish(),
				)
				defer bar.Close()
				opts = append(opts, upload.WithProgress(bar))
			}
			client := upload.New(a.cfg.Device, opts...)
			if err := client.Upload(cmd.Context(), image); err != nil {
				return err
			}
			if a.cfg.Output == "json" {
				return a.printJSON(cmd.OutOrStdout(), map[string]any{
					"device": client.URL(),
					"bytes":  len(image),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %d bytes to %s\n", len(image), client.URL())
			return nil
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not show progress")
	return cmd
}
