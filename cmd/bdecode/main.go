package main

import (
	"errors"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/chihaya/bdecode/bencode"
	httpfrontend "github.com/chihaya/bdecode/frontend/http"
	"github.com/chihaya/bdecode/middleware"
	"github.com/chihaya/bdecode/pkg/log"
	"github.com/chihaya/bdecode/pkg/metrics"
	"github.com/chihaya/bdecode/pkg/stop"
	"github.com/chihaya/bdecode/storage"
)

// Run represents the state of a running instance of the inspection server.
type Run struct {
	configFilePath string
	cmd            *cobra.Command
	store          storage.SummaryStore
	logic          *middleware.Logic
	sg             *stop.Group
}

// NewRun runs an instance of the inspection server.
//
// Decoder flags explicitly set on cmd override the config file; cmd may be
// nil.
func NewRun(configFilePath string, cmd *cobra.Command) (*Run, error) {
	r := &Run{
		configFilePath: configFilePath,
		cmd:            cmd,
	}

	return r, r.Start(nil)
}

// Start begins an instance of the inspection server.
// It is optional to provide an instance of the summary store to avoid the
// creation of a new one.
func (r *Run) Start(store storage.SummaryStore) error {
	configFile, err := ParseConfigFile(r.configFilePath)
	if err != nil {
		return errors.New("failed to read config: " + err.Error())
	}
	cfg := configFile.Bdecode

	if err := log.Configure(cfg.Log); err != nil {
		return err
	}

	r.sg = stop.NewGroup()

	if cfg.MetricsAddr != "" {
		log.Info("starting metrics server", log.Fields{"addr": cfg.MetricsAddr})
		ms, err := metrics.NewServer(cfg.MetricsAddr)
		if err != nil {
			return errors.New("failed to start metrics server: " + err.Error())
		}
		r.sg.Add(ms)
	}

	if store == nil && cfg.Storage != nil {
		log.Info("starting storage", log.Fields{"name": cfg.Storage.Name})
		store, err = storage.NewSummaryStore(cfg.Storage.Name, cfg.Storage.Config)
		if err != nil {
			return errors.New("failed to create storage: " + err.Error())
		}
		log.Info("started storage", store)
	}
	r.store = store

	decoderCfg := cfg.Decoder
	if r.cmd != nil {
		if decoderCfg, err = overlayDecoderFlags(r.cmd, decoderCfg); err != nil {
			return err
		}
	}
	decoderCfg = decoderCfg.Validate()
	log.Info("configured decoder", decoderCfg)

	preHooks, err := middleware.HooksFromHookConfigs(cfg.PreHooks)
	if err != nil {
		log.Error("failed to build prehooks", log.Fields{"available": middleware.Drivers()})
		return errors.New("failed to validate hook config: " + err.Error())
	}
	postHooks, err := middleware.HooksFromHookConfigs(cfg.PostHooks)
	if err != nil {
		log.Error("failed to build posthooks", log.Fields{"available": middleware.Drivers()})
		return errors.New("failed to validate hook config: " + err.Error())
	}

	log.Info("starting middleware", log.Fields{
		"preHooks":  cfg.PreHookNames(),
		"postHooks": cfg.PostHookNames(),
	})
	r.logic = middleware.NewLogic(decoderCfg, r.store, preHooks, postHooks)

	if cfg.HTTPConfig.Addr != "" {
		log.Info("starting HTTP frontend", cfg.HTTPConfig)
		httpfe, err := httpfrontend.NewFrontend(r.logic, cfg.HTTPConfig)
		if err != nil {
			return err
		}
		r.sg.Add(httpfe)
	}

	return nil
}

func combineErrors(prefix string, errs []error) error {
	errStrs := make([]string, 0, len(errs))
	for _, err := range errs {
		errStrs = append(errStrs, err.Error())
	}

	return errors.New(prefix + ": " + strings.Join(errStrs, "; "))
}

// Stop shuts down an instance of the inspection server.
//
// When keepStore is true, the summary store is left running and returned so
// it can be handed to the next Start.
func (r *Run) Stop(keepStore bool) (storage.SummaryStore, error) {
	log.Debug("stopping frontends and metrics server")
	if errs := r.sg.Stop().Wait(); len(errs) != 0 {
		return nil, combineErrors("failed while shutting down frontends", errs)
	}

	log.Debug("stopping logic")
	if errs := r.logic.Stop().Wait(); len(errs) != 0 {
		return nil, combineErrors("failed while shutting down middleware", errs)
	}

	if !keepStore && r.store != nil {
		log.Debug("stopping storage")
		if errs := r.store.Stop().Wait(); len(errs) != 0 {
			return nil, combineErrors("failed while shutting down storage", errs)
		}
		r.store = nil
	}

	return r.store, nil
}

// RootServeCmdFunc implements a Cobra command that runs an instance of the
// inspection server and handles reloading and shutdown via process signals.
func RootServeCmdFunc(cmd *cobra.Command, args []string) error {
	configFilePath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}

	r, err := NewRun(configFilePath, cmd)
	if err != nil {
		return err
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	reload := makeReloadChan()

	for {
		select {
		case <-reload:
			log.Info("reloading; received reload signal")
			store, err := r.Stop(true)
			if err != nil {
				return err
			}

			if err := r.Start(store); err != nil {
				return err
			}
		case <-quit:
			log.Info("shutting down; received shutdown signal")
			if _, err := r.Stop(false); err != nil {
				return err
			}

			return nil
		}
	}
}

// RootPreRunCmdFunc handles command line flags for the root command.
func RootPreRunCmdFunc(cmd *cobra.Command, args []string) error {
	noColors, err := cmd.Flags().GetBool("nocolors")
	if err != nil {
		return err
	}
	if noColors {
		log.SetFormatter(&logrus.TextFormatter{DisableColors: true})
	}

	jsonLog, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	if jsonLog {
		log.SetFormatter(&logrus.JSONFormatter{})
		log.Info("enabled JSON logging")
	}

	debugLog, err := cmd.Flags().GetBool("debug")
	if err != nil {
		return err
	}
	if debugLog {
		log.SetDebug(true)
		log.Info("enabled debug logging")
	}

	cpuProfilePath, err := cmd.Flags().GetString("cpuprofile")
	if err != nil {
		return err
	}
	if cpuProfilePath != "" {
		f, err := os.Create(cpuProfilePath)
		if err != nil {
			return err
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			return err
		}
		log.Info("enabled CPU profiling", log.Fields{"path": cpuProfilePath})
	}

	return nil
}

// RootPostRunCmdFunc handles clean up of any state initialized by command
// line flags.
func RootPostRunCmdFunc(cmd *cobra.Command, args []string) error {
	// These can be called regardless because it noops when not profiling.
	pprof.StopCPUProfile()

	return nil
}

// addDecoderFlags registers the decoder strictness flags on cmd and all of
// its subcommands.
func addDecoderFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().Bool("allow-trailing", false, "accept bytes after the top-level value")
	cmd.PersistentFlags().Bool("no-negative", false, "reject negative integers")
	cmd.PersistentFlags().Int("max-depth", 0, "maximum nesting of lists and dictionaries, 0 for no limit")
}

// overlayDecoderFlags returns cfg with every decoder flag that was set on the
// command line applied on top.
func overlayDecoderFlags(cmd *cobra.Command, cfg bencode.Config) (bencode.Config, error) {
	flags := cmd.Flags()
	var err error

	if flags.Changed("allow-trailing") {
		if cfg.AllowTrailingBytes, err = flags.GetBool("allow-trailing"); err != nil {
			return cfg, err
		}
	}
	if flags.Changed("no-negative") {
		if cfg.RejectNegativeIntegers, err = flags.GetBool("no-negative"); err != nil {
			return cfg, err
		}
	}
	if flags.Changed("max-depth") {
		if cfg.MaxDepth, err = flags.GetInt("max-depth"); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

// decoderFlags reads the strictness flags shared by the document commands.
func decoderFlags(cmd *cobra.Command) (bencode.Config, error) {
	cfg, err := overlayDecoderFlags(cmd, bencode.Config{})
	if err != nil {
		return cfg, err
	}
	return cfg.Validate(), nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:                "bdecode",
		Short:              "bencode inspector",
		Long:               "A strict bencode decoder with BitTorrent metainfo and tracker response inspection",
		PersistentPreRunE:  RootPreRunCmdFunc,
		PersistentPostRunE: RootPostRunCmdFunc,
		SilenceUsage:       true,
	}

	rootCmd.PersistentFlags().String("cpuprofile", "", "location to save a CPU profile")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().Bool("json", false, "enable json logging")
	if runtime.GOOS == "windows" {
		rootCmd.PersistentFlags().Bool("nocolors", true, "disable log coloring")
	} else {
		rootCmd.PersistentFlags().Bool("nocolors", false, "disable log coloring")
	}

	addDecoderFlags(rootCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP inspection API",
		Args:  cobra.NoArgs,
		RunE:  RootServeCmdFunc,
	}
	serveCmd.Flags().String("config", "/etc/bdecode.yaml", "location of configuration file")

	rootCmd.AddCommand(serveCmd, newDumpCmd(), newInfoCmd(), newAnnounceCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Fatal("failed when executing root cobra command: " + err.Error())
	}
}
