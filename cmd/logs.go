package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/loupelabs/loupe/pkg/logger"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Manage loupe's own log files",
}

var logsPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print log directory path",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := logger.Dir()
		if err != nil {
			return err
		}
		fmt.Println(dir)
		return nil
	},
}

var logsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all log files",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := logger.Dir()
		if err != nil {
			return err
		}

		files, err := filepath.Glob(filepath.Join(dir, "loupe.log*"))
		if err != nil {
			return fmt.Errorf("failed to list logs: %w", err)
		}
		if len(files) == 0 {
			fmt.Println("No log files found")
			return nil
		}

		for _, file := range files {
			info, err := os.Stat(file)
			if err != nil {
				logger.Warn("Failed to stat %s: %v", file, err)
				continue
			}
			fmt.Printf("%s (%d bytes)\n", filepath.Base(file), info.Size())
		}
		return nil
	},
}

var logsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all old log files (keeps current)",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := logger.Dir()
		if err != nil {
			return err
		}

		// Match rotated logs (loupe.log.* but not loupe.log)
		files, err := filepath.Glob(filepath.Join(dir, "loupe.log.*"))
		if err != nil {
			return fmt.Errorf("failed to list logs: %w", err)
		}
		if len(files) == 0 {
			fmt.Println("No old log files to delete")
			return nil
		}

		deleted := 0
		for _, file := range files {
			if err := os.Remove(file); err != nil {
				logger.Warn("Failed to delete %s: %v", filepath.Base(file), err)
			} else {
				fmt.Printf("Deleted %s\n", filepath.Base(file))
				deleted++
			}
		}

		fmt.Printf("\nDeleted %d old log file(s)\n", deleted)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.AddCommand(logsPathCmd)
	logsCmd.AddCommand(logsListCmd)
	logsCmd.AddCommand(logsClearCmd)
}
