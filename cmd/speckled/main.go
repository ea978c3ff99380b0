package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/coreman2200/bespeckle/internal/app"
	"github.com/coreman2200/bespeckle/internal/config"
	"github.com/coreman2200/bespeckle/internal/effect"
	"github.com/coreman2200/bespeckle/internal/led"
	"github.com/coreman2200/bespeckle/internal/packet"
	"github.com/coreman2200/bespeckle/internal/transport"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		simOnly    bool
		watch      bool
		trace      string
	)
	cmd := &cobra.Command{
		Use:           "speckled",
		Short:         "Run an LED strip node",
		Long:          `Runs the effect engine for one strip, taking packets from UDP, the control websocket and the local metronome.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Default()
			if c, err := config.Load(configPath); err != nil {
				if !errors.Is(err, fs.ErrNotExist) {
					return err
				}
				log.Warn().Err(err).Str("path", configPath).Msg("config load failed; proceeding with flags")
			} else {
				cfg = c
			}
			if err := applyFlags(cmd.Flags(), cfg); err != nil {
				return err
			}
			if simOnly {
				cfg.Driver = led.NameSim
			}
			setupLogging(cfg.Logging.Level)
			mode, err := traceMode(trace)
			if err != nil {
				return err
			}
			return run(cfg, configPath, watch, mode)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&configPath, "config", "c", "config.yaml", "path to config (.yaml or .toml)")
	f.BoolVar(&simOnly, "sim-only", false, "force simulation (no hardware output)")
	f.BoolVar(&watch, "watch", true, "reload params, fps and tempo when the config file changes")
	f.StringVar(&trace, "trace", "none", "sim driver frame trace: none | hex | html")
	f.String("driver", "sim", "driver: sim | spi | nrz | console | terminal")
	f.Int("length", 50, "LEDs on the strip")
	f.Bool("reverse", false, "strip is wired end to start")
	f.Int("fps", 60, "target frames per second")
	f.Float64("brightness", 1, "global brightness 0..1")
	f.String("spi-dev", "", "SPI port name, empty for the first port")
	f.Int("spi-speed", 0, "SPI clock in Hz, 0 for the driver default")
	f.String("color", "grb", "channel order for nrz strips")
	f.String("http", ":8080", "HTTP listen address, empty to disable")
	f.String("udp", ":7777", "UDP packet listen address, empty to disable")
	f.Float64("bpm", 120, "metronome tempo")
	f.Int("subdivisions", 4, "metronome sync packets per beat")
	f.Bool("tempo", false, "run the local metronome")
	f.String("log-level", "info", "trace | debug | info | warn | error")

	cmd.AddCommand(sendCmd(), catalogCmd())
	return cmd
}

// applyFlags copies explicitly set flags over cfg; flags left at their
// defaults do not override the file.
func applyFlags(flags *pflag.FlagSet, cfg *config.Config) error {
	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "driver":
			cfg.Driver, _ = flags.GetString(f.Name)
		case "length":
			cfg.Strip.Length, _ = flags.GetInt(f.Name)
		case "reverse":
			cfg.Strip.Reverse, _ = flags.GetBool(f.Name)
		case "fps":
			cfg.FPS, _ = flags.GetInt(f.Name)
		case "brightness":
			cfg.Brightness, _ = flags.GetFloat64(f.Name)
		case "spi-dev":
			cfg.SPI.Dev, _ = flags.GetString(f.Name)
		case "spi-speed":
			cfg.SPI.SpeedHz, _ = flags.GetInt(f.Name)
		case "color":
			cfg.SPI.ColorOrder, _ = flags.GetString(f.Name)
		case "http":
			cfg.Listen.HTTP, _ = flags.GetString(f.Name)
		case "udp":
			cfg.Listen.UDP, _ = flags.GetString(f.Name)
		case "bpm":
			cfg.Tempo.BPM, _ = flags.GetFloat64(f.Name)
		case "subdivisions":
			cfg.Tempo.Subdivisions, _ = flags.GetInt(f.Name)
		case "tempo":
			cfg.Tempo.Enabled, _ = flags.GetBool(f.Name)
		case "log-level":
			cfg.Logging.Level, _ = flags.GetString(f.Name)
		}
	})
	return cfg.Validate()
}

func setupLogging(level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

func traceMode(s string) (led.TraceMode, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return led.TraceNone, nil
	case "hex":
		return led.TraceHex, nil
	case "html":
		return led.TraceHTML, nil
	}
	return led.TraceNone, fmt.Errorf("unknown trace mode %q", s)
}

func run(cfg *config.Config, configPath string, watch bool, mode led.TraceMode) error {
	node, err := app.New(cfg, app.Options{ConfigPath: configPath, Trace: mode, Out: os.Stdout})
	if err != nil {
		return err
	}
	defer node.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if watch {
		w := config.NewWatcher(configPath, 0)
		w.OnReload(node.Apply)
		if err := w.Start(ctx); err != nil {
			log.Warn().Err(err).Str("path", configPath).Msg("config watch disabled")
		} else {
			defer w.Stop()
		}
	}

	var srv *http.Server
	if cfg.Listen.HTTP != "" {
		srv = &http.Server{
			Addr:         cfg.Listen.HTTP,
			Handler:      withCORS(node.Mux()),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			log.Info().Str("addr", cfg.Listen.HTTP).Str("driver", node.DriverName()).Msg("HTTP server starting")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("http server crashed")
				stop()
			}
		}()
	}

	log.Info().
		Int("length", cfg.Strip.Count()).
		Int("fps", cfg.FPS).
		Bool("tempo", cfg.Tempo.Enabled).
		Msg("node running")
	err = node.Run(ctx)
	log.Info().Msg("shutting down")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	return err
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		h.ServeHTTP(w, r)
	})
}

func sendCmd() *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "send <packet-hex>...",
		Short: "Send raw packets to a node over UDP",
		Long:  `Each argument is one 8-byte packet in hex, e.g. 0001ff0000ff0000 creates effect 1 as solid red.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ps := make([]packet.Packet, 0, len(args))
			for _, a := range args {
				b, err := hex.DecodeString(strings.TrimPrefix(a, "0x"))
				if err != nil {
					return fmt.Errorf("packet %q: %w", a, err)
				}
				if len(b) != packet.Size {
					return fmt.Errorf("packet %q: %d bytes, want %d", a, len(b), packet.Size)
				}
				p, _ := packet.Parse(b)
				ps = append(ps, p)
			}
			conn, err := net.Dial("udp", to)
			if err != nil {
				return err
			}
			defer conn.Close()
			return transport.Send(conn, ps...)
		},
	}
	cmd.Flags().StringVar(&to, "to", "127.0.0.1:7777", "node UDP address")
	return cmd
}

func catalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List the effect kinds this node understands",
		Run: func(cmd *cobra.Command, _ []string) {
			for _, b := range effect.All() {
				fmt.Fprintf(cmd.OutOrStdout(), "0x%02x  %-10s state %d bytes\n", uint8(b.Kind), b.Name, b.Size)
			}
		},
	}
}
