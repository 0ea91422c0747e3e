package cmd

import (
	"context"

	"github.com/RyanBlaney/hls-fetch/internal/app"
	"github.com/spf13/cobra"
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <playlist-url>",
	Short: "Resolve a playlist without downloading segments",
	Long: `Parse the playlist, follow its variant playlists and report the resolved
segment count, variants and encryption parameters. When the root playlist is a
conforming HLS document its type, version and target duration are shown too.

Examples:
  hls-fetch inspect https://cdn.example.com/vod/master.m3u8
  hls-fetch inspect -o json https://cdn.example.com/vod/index.m3u8`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	addHTTPFlags(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	inspectApp, err := app.NewDownloadApp(&app.Context{
		PlaylistURL: args[0],
		Out:         cmd.OutOrStdout(),
		ErrOut:      cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	_, err = inspectApp.Inspect(context.Background())
	return err
}
