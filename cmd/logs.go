// File: cmd/logs.go
package cmd

import (
	"fmt"
	"io"

	"github.com/hpcloud/tail"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
)

func newLogsCmd() *cobra.Command {
	var follow, newOnly bool

	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the structured log file",
		Long:  `Prints logger.log_file. With --follow, keeps printing new entries (across rotations) until interrupted.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			if cfg.Logger.LogFile == "" {
				return fmt.Errorf("no log file configured (logger.log_file)")
			}
			path, err := homedir.Expand(cfg.Logger.LogFile)
			if err != nil {
				return err
			}

			tc := tail.Config{
				Follow:    follow,
				ReOpen:    follow,
				MustExist: true,
				Logger:    tail.DiscardingLogger,
			}
			if newOnly {
				tc.Location = &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd}
			}
			t, err := tail.TailFile(path, tc)
			if err != nil {
				return fmt.Errorf("failed to open log file %s: %w", path, err)
			}
			defer t.Cleanup()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			for {
				select {
				case <-ctx.Done():
					_ = t.Stop()
					return nil
				case line, ok := <-t.Lines:
					if !ok {
						return t.Wait()
					}
					if line.Err != nil {
						return line.Err
					}
					if _, err := fmt.Fprintln(out, line.Text); err != nil {
						return err
					}
				}
			}
		},
	}

	logsCmd.Flags().BoolVarP(&follow, "follow", "F", false, "keep printing new log entries")
	logsCmd.Flags().BoolVar(&newOnly, "new-only", false, "skip existing entries")
	return logsCmd
}
