// Copyright (c) 2026 Keymaster Team
// Keygate - SSH credential admission for compute controllers
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	sshkeys "github.com/toeirei/keygate/internal/crypto/ssh"
	"github.com/toeirei/keygate/internal/errs"
	"github.com/toeirei/keygate/internal/i18n"
	"github.com/toeirei/keygate/internal/model"
)

// clipboardWrite is swapped out by tests.
var clipboardWrite = clipboard.WriteAll

// isTerminal reports whether f is an interactive terminal.
var isTerminal = func(f *os.File) bool { return term.IsTerminal(int(f.Fd())) }

func newCreateKeyPairCmd(s *appState) *cobra.Command {
	var outFile string
	var copyToClipboard bool
	cmd := &cobra.Command{
		Use:   "create-key-pair <name>",
		Short: i18n.T("cli.create.short"),
		Long: `Generates a new key pair, stores its public half and prints the private key.
The private key is never stored and cannot be shown again.

Examples:
  keygate create-key-pair web --account 000000000001 --user alice
  keygate create-key-pair web -O web.pem`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := s.owner()
			if err != nil {
				return err
			}
			resp, err := s.app.Keys.Create(cmd.Context(), owner, model.CreateKeyPairRequest{Name: args[0]})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outFile != "" {
				if err := os.WriteFile(outFile, []byte(resp.KeyMaterial), 0o600); err != nil {
					return fmt.Errorf("could not write private key: %w", err)
				}
				fmt.Fprintln(cmd.ErrOrStderr(), i18n.T("cli.create.saved", outFile))
				resp.KeyMaterial = ""
			}
			if copyToClipboard && resp.KeyMaterial != "" {
				if err := clipboardWrite(resp.KeyMaterial); err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), i18n.T("cli.create.copy_failed", err))
				} else {
					fmt.Fprintln(cmd.ErrOrStderr(), i18n.T("cli.create.copied"))
				}
			}
			if f, ok := out.(*os.File); ok && resp.KeyMaterial != "" && isTerminal(f) {
				fmt.Fprintln(cmd.ErrOrStderr(), i18n.T("cli.create.tty_warning"))
			}

			if s.output == "table" || s.output == "" {
				fmt.Fprintf(out, "%s\t%s\n", resp.Name, resp.Fingerprint)
				if resp.KeyMaterial != "" {
					fmt.Fprint(out, resp.KeyMaterial)
				}
				return nil
			}
			return render(out, s.output, resp, nil, nil)
		},
	}
	cmd.Flags().StringVarP(&outFile, "out", "O", "", "Write the private key PEM to this file (0600) instead of stdout")
	cmd.Flags().BoolVar(&copyToClipboard, "copy", false, "Copy the private key to the clipboard")
	return cmd
}

func newDescribeKeyPairsCmd(s *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "describe-key-pairs [name...]",
		Short: i18n.T("cli.describe.short"),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := s.owner()
			if err != nil {
				return err
			}
			resp, err := s.app.Keys.Describe(cmd.Context(), owner, model.DescribeKeyPairsRequest{Names: args})
			if err != nil {
				return err
			}
			if (s.output == "table" || s.output == "") && len(resp.KeyPairs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), i18n.T("cli.describe.empty"))
				return nil
			}
			rows := make([][]string, 0, len(resp.KeyPairs))
			for _, kp := range resp.KeyPairs {
				rows = append(rows, []string{kp.Name, kp.Fingerprint})
			}
			return render(cmd.OutOrStdout(), s.output, resp, []string{"NAME", "FINGERPRINT"}, rows)
		},
	}
}

func newDeleteKeyPairCmd(s *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-key-pair <name>",
		Short: i18n.T("cli.delete.short"),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := s.owner()
			if err != nil {
				return err
			}
			resp := s.app.Keys.Delete(cmd.Context(), owner, model.DeleteKeyPairRequest{Name: args[0]})
			if s.output == "table" || s.output == "" {
				fmt.Fprintln(cmd.OutOrStdout(), i18n.T("cli.delete.done", args[0]))
				return nil
			}
			return render(cmd.OutOrStdout(), s.output, resp, nil, nil)
		},
	}
}

func newImportKeyPairCmd(s *appState) *cobra.Command {
	var publicKeyFile string
	cmd := &cobra.Command{
		Use:   "import-key-pair <name>",
		Short: i18n.T("cli.import.short"),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := s.owner()
			if err != nil {
				return err
			}
			var material string
			if publicKeyFile != "" {
				data, err := os.ReadFile(publicKeyFile)
				if err != nil {
					return fmt.Errorf("could not read public key: %w", err)
				}
				material = string(data)
				if _, _, err := sshkeys.ParseAuthorizedKey(strings.TrimSpace(material)); err != nil {
					return errs.Wrap(errs.KindValidation, "import-key-pair", err, "%s is not an authorized_keys line", publicKeyFile)
				}
			}
			if _, err := s.app.Keys.Import(cmd.Context(), owner, model.ImportKeyPairRequest{Name: args[0], PublicKeyMaterial: material}); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("cli.import.noop"))
			return nil
		},
	}
	cmd.Flags().StringVar(&publicKeyFile, "public-key-file", "", "authorized_keys formatted public key to import")
	return cmd
}
