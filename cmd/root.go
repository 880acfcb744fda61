package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/imagespy/inspect/config"
	"github.com/imagespy/inspect/inspect"
	"github.com/imagespy/inspect/layer"
	ilog "github.com/imagespy/inspect/log"
	"github.com/imagespy/inspect/metrics"
	"github.com/imagespy/inspect/reference"
	"github.com/imagespy/inspect/registry"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	cfg     config.Config
	cfgPath string
)

var rootCmd = &cobra.Command{
	Use:           "inspect",
	Short:         "Inspects images hosted on a Docker registry",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v := viper.New()
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			if f.Name == "config" || f.Name == "help" {
				return
			}

			v.BindPFlag(f.Name, f)
		})

		var err error
		cfg, err = config.Load(v, cfgPath)
		if err != nil {
			return err
		}

		err = ilog.Init(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return err
		}

		registry.SetLog(log.StandardLogger())
		layer.SetLog(log.StandardLogger())
		return nil
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&cfgPath, "config", "", "config file or directory containing inspect.yaml")
	f.String("log.level", "warn", "set the log level")
	f.String("log.format", "text", "log format, text or json")
	f.String("metrics.pushgateway", "", "push metrics to this Pushgateway at the end of a run")
	f.String("registry.authURL", registry.DefaultAuthURL, "token endpoint, empty to send requests without a token")
	f.String("registry.defaultHost", reference.DefaultHost, "registry used for references without a host")
	f.Bool("registry.insecure", false, "disable certificate validation")
	f.String("registry.service", registry.DefaultService, "service name sent to the token endpoint")
	f.Duration("registry.timeout", 0, "timeout of every registry request, 0 disables it")
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	err := Run(os.Args[1:], os.Stdout, os.Stderr)
	if err != nil {
		os.Exit(1)
	}
}

// Run executes the command line args. Errors are printed to errOut and
// returned.
func Run(args []string, out, errOut io.Writer) error {
	resetFlags(rootCmd)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	err := rootCmd.Execute()
	if err != nil {
		log.Debug(ilog.FormatError(err))
		fmt.Fprintln(errOut, errorStyle.Render("Error: "+err.Error()))
	}

	return err
}

// resetFlags restores the default of every flag so that Run can be called
// more than once in the same process.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}

	c.PersistentFlags().VisitAll(reset)
	c.Flags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

type run struct {
	inspector *inspect.Inspector
	metrics   *metrics.Metrics
	start     time.Time
}

func newRun(wrapBody func(io.ReadCloser, int64) io.ReadCloser) *run {
	m := metrics.New(cfg.Metrics.Pushgateway)
	client := registry.New(registry.Options{
		AuthURL:   cfg.Registry.AuthURL,
		Insecure:  cfg.Registry.Insecure,
		Metrics:   m,
		Service:   cfg.Registry.Service,
		Timeout:   cfg.Registry.Timeout,
		UserAgent: cfg.Registry.UserAgent,
		WrapBody:  wrapBody,
	})
	parser := reference.NewParser(reference.Options{
		DefaultHost:   cfg.Registry.DefaultHost,
		DefaultScheme: cfg.Registry.DefaultScheme,
	})

	return &run{
		inspector: inspect.New(parser, client),
		metrics:   m,
		start:     time.Now(),
	}
}

// finish records the outcome of the run and pushes the metrics. Nothing is
// pushed if the reference could not be parsed.
func (r *run) finish(err error) {
	r.metrics.RunFinished(r.start, err)
	var parseErr *reference.ParseError
	if errors.As(err, &parseErr) {
		return
	}

	pushErr := r.metrics.Push()
	if pushErr != nil {
		log.Warnf("unable to push metrics: %s", pushErr)
	}
}
