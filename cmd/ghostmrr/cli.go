package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mborders/logmatic"
	"github.com/spf13/cobra"

	"github.com/filiksyos/ghostmrr/api/clients/badges"
	"github.com/filiksyos/ghostmrr/internal/config"
	"github.com/filiksyos/ghostmrr/internal/infra/keys/file"
	"github.com/filiksyos/ghostmrr/internal/logging"
)

// env carries the process surroundings so commands can be driven from tests.
type env struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	now    func() time.Time

	cfg    config.CLIConfig
	log    *logmatic.Logger
	keys   *file.Repository
	client *badges.Client
}

func newEnv() *env {
	return &env{in: os.Stdin, out: os.Stdout, errOut: os.Stderr, now: time.Now}
}

func run(args []string, e *env) int {
	root := newRootCmd(e)
	root.SetArgs(args)
	root.SetIn(e.in)
	root.SetOut(e.out)
	root.SetErr(e.errOut)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(e.errOut, "error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(e *env) *cobra.Command {
	var (
		configPath  string
		keypairPath string
		serverURL   string
	)
	cmd := &cobra.Command{
		Use:           "ghostmrr",
		Short:         "Issue and check signed MRR badges without exposing billing data",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadCLI(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if keypairPath != "" {
				cfg.KeypairPath = keypairPath
			}
			if serverURL != "" {
				cfg.ServerURL = serverURL
			}
			e.cfg = cfg
			e.log = logging.New(cfg.LogLevel)
			logging.SetDefault(e.log)
			e.keys = file.NewRepository(cfg.KeypairPath, file.WithLogger(e.log))
			e.client = badges.NewClient(cfg.ServerURL)
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.ghostmrr/config.yaml)")
	cmd.PersistentFlags().StringVar(&keypairPath, "keypair", "", "keypair file (default ~/.ghostmrr/keypair.json)")
	cmd.PersistentFlags().StringVar(&serverURL, "server", "", "badge service base URL")

	cmd.AddCommand(
		verifyCmd(e),
		checkCmd(e),
		didCmd(e),
		submitCmd(e),
	)
	return cmd
}

// confirm asks a yes/no question on e.in. Anything but y or yes is a no.
func confirm(e *env, question string) bool {
	fmt.Fprintf(e.out, "%s [y/N]: ", question)
	line, err := bufio.NewReader(e.in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch trimLower(line) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
