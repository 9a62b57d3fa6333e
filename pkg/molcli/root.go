// Package molcli is the molcache command line tool. The main program
// only calls Execute, so the commands can be tested from here.
package molcli

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/andrew-torda/molcache/fetch"
	"github.com/andrew-torda/molcache/internal/config"
)

const (
	ExitSuccess = 0
	ExitFailure = 1
)

// App is the state shared by the commands.
type App struct {
	Out, Err io.Writer
	// Downloader, if set, is used instead of the configured archive.
	Downloader fetch.Downloader

	cfgPath  string
	logLevel string
	cfg      *config.Config
	log      *logrus.Logger
}

// NewApp writes to the usual places.
func NewApp() *App {
	return &App{Out: os.Stdout, Err: os.Stderr}
}

// Command builds the command tree.
func (a *App) Command() *cobra.Command {
	root := &cobra.Command{
		Use:           "molcache",
		Short:         "Fetch, cache and parse PDB coordinate files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.SetOut(a.Out)
	root.SetErr(a.Err)
	pf := root.PersistentFlags()
	pf.StringVarP(&a.cfgPath, "config", "c", "", "yaml config file")
	pf.StringVar(&a.logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(a.fetchCmd(), a.parseCmd(), a.scanCmd(), a.cacheCmd(), a.configCmd())
	return root
}

func (a *App) setup() error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	a.cfg = cfg
	a.log = cfg.Logger()
	a.log.SetOutput(a.Err)
	return nil
}

// Execute runs the tool with args and returns the exit status.
func (a *App) Execute(args []string) int {
	root := a.Command()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(a.Err, "molcache:", err)
		return ExitFailure
	}
	return ExitSuccess
}
