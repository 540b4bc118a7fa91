// Copyright (c) 2026 Keymaster Team
// Keygate - SSH credential admission for compute controllers
// This source code is licensed under the MIT license found in the LICENSE file.

// main.go sets up the root command, the shared flags and the service
// wiring every subcommand relies on.

package cli

import (
	"errors"
	"fmt"
	"os"
	"os/user"

	"github.com/spf13/cobra"

	"github.com/toeirei/keygate/internal/bootstrap"
	"github.com/toeirei/keygate/internal/config"
	"github.com/toeirei/keygate/internal/db"
	"github.com/toeirei/keygate/internal/i18n"
	"github.com/toeirei/keygate/internal/logging"
	"github.com/toeirei/keygate/internal/model"
)

var version = "dev"   // this will be set by the linker
var gitCommit = "dev" // set at build time with the short commit SHA
var buildDate = ""    // set at build time (RFC3339)

// annotationNoServices marks commands that run without a database.
const annotationNoServices = "keygate/no-services"

// appState is shared by the commands of one root command instance.
type appState struct {
	cfgFile string
	verbose bool
	output  string
	account string
	user    string

	cfg config.Config
	app *bootstrap.App
}

func (s *appState) owner() (model.Owner, error) {
	if s.account == "" || s.user == "" {
		return model.Owner{}, errors.New("--account and --user must not be empty")
	}
	return model.Owner{Account: s.account, User: s.user}, nil
}

// setupServices loads the configuration and wires the application.
func (s *appState) setupServices(cmd *cobra.Command) error {
	if s.cfgFile != "" {
		if _, err := os.Stat(s.cfgFile); err != nil {
			return fmt.Errorf("config file specified via --config flag not found or is not accessible: %w", err)
		}
	}
	cfg, err := config.Load(cmd, s.cfgFile)
	if err != nil {
		return errors.New(i18n.T("cli.error.load_config", err))
	}
	s.cfg = cfg

	level := cfg.Log.Level
	if s.verbose {
		level = "debug"
		db.SetDebug(true)
	}
	logging.Configure(level, cmd.ErrOrStderr())
	i18n.Init(cfg.Language)

	if cmd.Annotations[annotationNoServices] != "" {
		return nil
	}
	app, err := bootstrap.New(cfg)
	if err != nil {
		return errors.New(i18n.T("cli.error.init_db", err))
	}
	s.app = app
	return nil
}

func (s *appState) teardown() {
	if s.app != nil {
		if err := s.app.Close(); err != nil {
			logging.Errorf("close failed: %v", err)
		}
		s.app = nil
	}
}

// Execute runs the CLI entrypoint. The main packages should call this
// function and handle process exit.
func Execute() error {
	bootstrap.InstallSignalHandler()
	defer func() {
		if err := bootstrap.CloseAll(); err != nil {
			logging.Errorf("Error during final cleanup: %v", err)
		}
	}()
	return NewRootCmd().Execute()
}

// NewRootCmd creates and configures a new root cobra command. Each call
// returns an independent command tree, which keeps tests isolated.
func NewRootCmd() *cobra.Command {
	s := &appState{}
	i18n.Init("en")

	cmd := &cobra.Command{
		Use:   "keygate",
		Short: i18n.T("cli.root.short"),
		Long: `Keygate manages named SSH key pairs per account and user and decides,
for every provisioning request, which key pair may be injected into the
new instance.

Private keys are printed exactly once, when a key pair is created.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return s.setupServices(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			s.teardown()
		},
	}

	v, c, d := resolveBuildVersion(nil)
	compositeVersion := v
	if c != "" && c != "dev" {
		compositeVersion = compositeVersion + " (" + c + ")"
	}
	if d != "" {
		compositeVersion = compositeVersion + " built: " + d
	}
	cmd.Version = compositeVersion

	defaultUser := os.Getenv("KEYGATE_USER")
	if defaultUser == "" {
		if u, err := user.Current(); err == nil {
			defaultUser = u.Username
		}
	}

	pf := cmd.PersistentFlags()
	pf.BoolVarP(&s.verbose, "verbose", "v", false, "Enable verbose output (debug logging and DB logs)")
	pf.StringVar(&s.cfgFile, "config", "", "config file (default is keygate.yaml in the user, system or current directory)")
	pf.StringVarP(&s.output, "output", "o", "table", `Output format ("table", "json", "yaml")`)
	pf.StringVar(&s.account, "account", os.Getenv("KEYGATE_ACCOUNT"), "Account that owns the key pairs")
	pf.StringVar(&s.user, "user", defaultUser, "User that owns the key pairs")
	pf.String("database.type", "sqlite", "Database type (sqlite, postgres, mysql)")
	pf.String("database.dsn", "./keygate.db", "Database connection string (DSN)")
	pf.String("policy.file", "", "Policy rule file")
	pf.String("log.level", "info", "Log level (debug, info, warn, error)")
	pf.String("language", "en", `Message language ("en", "de")`)

	cmd.AddCommand(
		newCreateKeyPairCmd(s),
		newDescribeKeyPairsCmd(s),
		newDeleteKeyPairCmd(s),
		newImportKeyPairCmd(s),
		newVerifyCmd(s),
		newComponentsCmd(s),
		newAuditCmd(s),
		newBackupCmd(s),
		newDBMaintainCmd(s),
		newConfigCmd(s),
	)
	return cmd
}
