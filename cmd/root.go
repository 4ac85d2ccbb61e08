package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/mikaelmello/echoping/core"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// errNoReply is returned when not a single echo request was answered.
var errNoReply = errors.New("no echo reply received")

// options holds the values of the command line flags.
type options struct {
	settings    *core.Settings
	payload     string
	config      string
	logLevel    string
	metricsAddr string
	progress    bool
	quiet       bool
}

var opts = newOptions()

var rootCmd = &cobra.Command{
	Use:          "echoping [flags] host...",
	Short:        "echoping sends ICMP echo requests to network hosts",
	Long:         "echoping is a ping utility written in Go, it can ping several hosts at once",
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Flags(), args)
	},
}

func newOptions() *options {
	return &options{
		settings: core.DefaultSettings(),
		logLevel: log.WarnLevel.String(),
	}
}

func init() {
	registerFlags(rootCmd.Flags(), opts)
}

func registerFlags(flags *pflag.FlagSet, o *options) {
	s := o.settings
	flags.IntVarP(&s.Count, "count", "c", s.Count, "stop after sending count ECHO_REQUEST packets, -1 for no limit")
	flags.Float64VarP(&s.Interval, "interval", "i", s.Interval, "wait interval seconds between sending each packet")
	flags.Float64VarP(&s.Timeout, "timeout", "W", s.Timeout, "time to wait for each response, in seconds")
	flags.Float64VarP(&s.Deadline, "deadline", "w", s.Deadline, "seconds before exiting regardless of how many packets were sent, -1 for none")
	flags.IntVarP(&s.Size, "size", "s", s.Size, "number of data bytes to be sent")
	flags.StringVarP(&o.payload, "payload", "p", "", "content of the data bytes, random text when empty")
	flags.IntVar(&s.SweepStart, "sweep-start", s.SweepStart, "first payload size of a size sweep")
	flags.IntVar(&s.SweepEnd, "sweep-end", s.SweepEnd, "last payload size of a size sweep")
	flags.IntVarP(&s.TTL, "ttl", "t", s.TTL, "IP time to live")
	flags.BoolVarP(&s.DontFragment, "df", "M", s.DontFragment, "set the don't fragment flag, requires privileged mode")
	flags.BoolVar(&s.MatchPayloads, "match", s.MatchPayloads, "require replies to carry the exact payload that was sent")
	flags.BoolVar(&s.VerifyChecksum, "verify-checksum", s.VerifyChecksum, "discard replies with an invalid checksum")
	flags.BoolVar(&s.IsPrivileged, "privileged", s.IsPrivileged, "use raw ICMP sockets instead of datagram ones")
	flags.BoolVarP(&o.quiet, "quiet", "q", false, "only print the summary")
	flags.BoolVar(&o.progress, "progress", false, "print a dot per request and erase it on reply")
	flags.StringVar(&o.config, "config", "", "YAML settings file, flags given on the command line take precedence")
	flags.StringVar(&o.logLevel, "log-level", o.logLevel, "logging level (trace, debug, info, warning, error)")
	flags.StringVar(&o.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// resolveSettings merges the settings file, when given, with the flags set on the command line.
func resolveSettings(flags *pflag.FlagSet, o *options) (*core.Settings, error) {
	settings := *o.settings
	if o.config != "" {
		loaded, err := core.LoadSettings(o.config)
		if err != nil {
			return nil, err
		}
		settings = *loaded
		flags.Visit(func(f *pflag.Flag) {
			overrideSetting(&settings, o, f.Name)
		})
	} else if o.payload != "" {
		settings.Payload = []byte(o.payload)
	}

	level, err := log.ParseLevel(o.logLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	settings.LoggingLevel = uint32(level)

	// responses are written by the printer of the runner
	settings.Verbose = false

	return &settings, nil
}

// overrideSetting copies the value of the flag name from the command line into s.
func overrideSetting(s *core.Settings, o *options, name string) {
	f := o.settings
	switch name {
	case "count":
		s.Count = f.Count
	case "interval":
		s.Interval = f.Interval
	case "timeout":
		s.Timeout = f.Timeout
	case "deadline":
		s.Deadline = f.Deadline
	case "size":
		s.Size = f.Size
	case "payload":
		s.Payload = []byte(o.payload)
	case "sweep-start":
		s.SweepStart = f.SweepStart
	case "sweep-end":
		s.SweepEnd = f.SweepEnd
	case "ttl":
		s.TTL = f.TTL
	case "df":
		s.DontFragment = f.DontFragment
	case "match":
		s.MatchPayloads = f.MatchPayloads
	case "verify-checksum":
		s.VerifyChecksum = f.VerifyChecksum
	case "privileged":
		s.IsPrivileged = f.IsPrivileged
	}
}

func run(flags *pflag.FlagSet, args []string) error {
	settings, err := resolveSettings(flags, opts)
	if err != nil {
		return err
	}

	p := newPrinter(os.Stdout)
	p.quiet = opts.quiet
	p.prefix = len(args) > 1

	r, err := newRunner(args, settings, p, opts.progress)
	if err != nil {
		return err
	}

	if opts.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		r.bundle.SetMetrics(core.NewMetrics(reg))

		stop, err := serveMetrics(opts.metricsAddr, reg)
		if err != nil {
			return err
		}
		defer stop()
	}

	r.Start()
	if err := r.Wait(); err != nil {
		return err
	}

	if !r.bundle.Success(core.One) {
		return errNoReply
	}
	return nil
}
