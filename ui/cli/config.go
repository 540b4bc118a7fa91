// Copyright (c) 2026 Keymaster Team
// Keygate - SSH credential admission for compute controllers
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/toeirei/keygate/internal/config"
	"github.com/toeirei/keygate/internal/i18n"
)

func newConfigCmd(s *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "config",
		Short:       i18n.T("cli.config.short"),
		Annotations: map[string]string{annotationNoServices: "true"},
	}

	var system bool
	var path string
	initCmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a configuration file with the current settings",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoServices: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			c := s.cfg
			var err error
			if path != "" {
				err = config.WriteConfigFileTo(&c, path)
			} else {
				path, err = config.WriteConfigFile(&c, system)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("cli.config.written", path))
			return nil
		},
	}
	initCmd.Flags().BoolVar(&system, "system", false, "Write the system-wide file instead of the user file")
	initCmd.Flags().StringVar(&path, "path", "", "Write to this path")

	showCmd := &cobra.Command{
		Use:         "show",
		Short:       "Print the effective configuration",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoServices: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			format := s.output
			if format == "table" || format == "" {
				format = "yaml"
			}
			return render(cmd.OutOrStdout(), format, s.cfg, nil, nil)
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}
