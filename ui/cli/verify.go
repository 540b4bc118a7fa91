// Copyright (c) 2026 Keymaster Team
// Keygate - SSH credential admission for compute controllers
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/toeirei/keygate/internal/admission"
	"github.com/toeirei/keygate/internal/bootstrap"
	"github.com/toeirei/keygate/internal/errs"
	"github.com/toeirei/keygate/internal/i18n"
	"github.com/toeirei/keygate/internal/model"
)

func newVerifyCmd(s *appState) *cobra.Command {
	var keyName, platform, imageID, action string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: i18n.T("cli.verify.short"),
		Long: `Runs the admission check a provisioning request goes through and prints
the resolved credential. Exits non-zero when the request would be denied.

Examples:
  keygate verify --key web --platform linux --image emi-1234
  keygate verify --platform windows --image emi-5678`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := s.owner()
			if err != nil {
				return err
			}
			p, err := model.ParsePlatform(platform)
			if err != nil {
				return err
			}
			gate, err := bootstrap.Lookup[admission.Component, *admission.Gate](s.app.Registry)
			if err != nil {
				return err
			}

			actx := model.NewAllocationContext(model.AllocationRequest{
				KeyName:  model.ParseKeyName(keyName),
				Platform: p,
				ImageID:  imageID,
				Owner:    owner,
				Action:   action,
			})
			if err := gate.Verify(cmd.Context(), actx); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), i18n.T("cli.verify.denied", errs.KindOf(err), err))
				return err
			}

			out := cmd.OutOrStdout()
			if s.output != "table" && s.output != "" {
				return render(out, s.output, actx, nil, nil)
			}
			if actx.KeyInfo.IsEmpty() {
				fmt.Fprintln(out, i18n.T("cli.verify.admitted_no_key"))
				return nil
			}
			fmt.Fprintln(out, i18n.T("cli.verify.admitted"))
			return render(out, "table", actx.KeyInfo,
				[]string{"NAME", "FINGERPRINT", "PUBLIC KEY"},
				[][]string{{actx.KeyInfo.Name, actx.KeyInfo.Fingerprint, actx.KeyInfo.PublicKey}})
		},
	}
	cmd.Flags().StringVar(&keyName, "key", "", `Key pair name ("" or "none" for no key pair)`)
	cmd.Flags().StringVar(&platform, "platform", "linux", `Image platform ("linux", "windows")`)
	cmd.Flags().StringVar(&imageID, "image", "", "Image ID")
	cmd.Flags().StringVar(&action, "action", "RunInstances", "API action of the request")
	return cmd
}

type componentRow struct {
	Key     string `json:"key" yaml:"key"`
	Keyed   string `json:"keyed_by" yaml:"keyed_by"`
	Handler string `json:"handler" yaml:"handler"`
}

func newComponentsCmd(s *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "components",
		Short: i18n.T("cli.components.short"),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries := s.app.Registry.Entries()
			out := make([]componentRow, 0, len(entries))
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				keyed := "id"
				if e.ByType {
					keyed = "type"
				}
				r := componentRow{Key: e.Key, Keyed: keyed, Handler: fmt.Sprintf("%T", e.Handler)}
				out = append(out, r)
				rows = append(rows, []string{r.Key, r.Keyed, r.Handler})
			}
			return render(cmd.OutOrStdout(), s.output, out, []string{"KEY", "KEYED BY", "HANDLER"}, rows)
		},
	}
}

func newAuditCmd(s *appState) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "audit-log",
		Short: "Show the audit log, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := s.app.Store.GetAllAuditLogEntries(cmd.Context())
			if err != nil {
				return err
			}
			if limit > 0 && len(entries) > limit {
				entries = entries[:limit]
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{strconv.Itoa(e.ID), e.Timestamp, e.Username, e.Action, e.Details})
			}
			return render(cmd.OutOrStdout(), s.output, entries, []string{"ID", "TIME", "USER", "ACTION", "DETAILS"}, rows)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of entries (0 for all)")
	return cmd
}
