// Copyright (c) 2026 Keymaster Team
// Keygate - SSH credential admission for compute controllers
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/toeirei/keygate/internal/backup"
	"github.com/toeirei/keygate/internal/db"
	"github.com/toeirei/keygate/internal/i18n"
)

func newBackupCmd(s *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: i18n.T("cli.backup.short"),
	}

	export := &cobra.Command{
		Use:   "export [output-file]",
		Short: "Write a compressed (zstd) JSON backup of all key pair records",
		Long: `Dumps all key pair records and the audit log into a single,
Zstandard-compressed JSON file. Private keys are never part of a backup.

If no output file is specified, keygate-backup-YYYY-MM-DD.json.zst is used.
'.zst' is appended to names that lack it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := backup.DefaultFileName(time.Now())
			if len(args) == 1 {
				name = backup.NormalizeFileName(args[0])
			}
			f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
			if err != nil {
				return fmt.Errorf("could not create file: %w", err)
			}
			defer func() { _ = f.Close() }()
			data, err := backup.Export(cmd.Context(), s.app.Store, f)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("cli.backup.exported", len(data.KeyPairs), name))
			return nil
		},
	}

	restore := &cobra.Command{
		Use:   "restore <backup-file>",
		Short: "Merge a backup into the database, keeping existing key pairs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("could not open file: %w", err)
			}
			defer func() { _ = f.Close() }()
			if _, err := backup.Restore(cmd.Context(), s.app.Store, f); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("cli.backup.restored", args[0]))
			return nil
		},
	}

	cmd.AddCommand(export, restore)
	return cmd
}

func newDBMaintainCmd(s *appState) *cobra.Command {
	var timeout int
	cmd := &cobra.Command{
		Use:         "db-maintain",
		Short:       i18n.T("cli.maintenance.short"),
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoServices: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
				defer cancel()
			}
			if err := db.RunDBMaintenance(ctx, s.cfg.Database.Type, s.cfg.Database.Dsn); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("cli.maintenance.done"))
			return nil
		},
	}
	cmd.Flags().IntVar(&timeout, "timeout", 0, "Timeout in seconds for maintenance (0 means the built-in limit)")
	return cmd
}
