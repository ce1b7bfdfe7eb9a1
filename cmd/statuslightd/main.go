package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dev.acmcsuf.com/statuslight"
	"dev.acmcsuf.com/statuslight/credentials"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"libdb.so/hserve"
)

var (
	settingsPath = ""
	httpAddr     = "0.0.0.0:8080"
	configPath   = "config.json"
	usersPath    = "users.json"
	timezone     = "America/New_York"
	driver       = "ws281x"
	gpioPin      = 18
	dmaChannel   = 10
	spiPort      = ""
	noAuth       = false
	verbose      = false
)

func init() {
	pflag.StringVarP(&settingsPath, "settings", "c", settingsPath, "TOML settings file, overridden by flags")
	pflag.StringVarP(&httpAddr, "http-addr", "a", httpAddr, "HTTP admin server address")
	pflag.StringVar(&configPath, "config-path", configPath, "JSON strip configuration document")
	pflag.StringVar(&usersPath, "users-path", usersPath, "JSON users file for admin authentication")
	pflag.StringVar(&timezone, "timezone", timezone, "time zone the schedule minutes are in")
	pflag.StringVar(&driver, "driver", driver, "LED driver: ws281x, spi or memory")
	pflag.IntVar(&gpioPin, "gpio-pin", gpioPin, "GPIO pin of the ws281x strip")
	pflag.IntVar(&dmaChannel, "dma-channel", dmaChannel, "DMA channel of the ws281x strip")
	pflag.StringVar(&spiPort, "spi-port", spiPort, "SPI port of the spi strip, empty for the first one")
	pflag.BoolVar(&noAuth, "insecure-no-auth", noAuth, "serve the admin API without authentication")
	pflag.BoolVarP(&verbose, "verbose", "v", verbose, "verbose logging")
}

func main() {
	log.SetFlags(0)
	pflag.Parse()

	if settingsPath != "" {
		if err := loadSettings(pflag.CommandLine, settingsPath); err != nil {
			log.Fatal(err)
		}
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	logHandler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05 PM", // extended time.Kitchen
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})

	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return fmt.Errorf("failed to load time zone %q: %v", timezone, err)
	}

	open, err := deviceOpener(logger.With("component", "device"))
	if err != nil {
		return err
	}

	store := &statuslight.FileStore{Path: configPath}
	if err := store.Init(statuslight.DefaultConfig()); err != nil {
		return fmt.Errorf("failed to initialize config %q: %w", configPath, err)
	}

	strip := statuslight.NewStripController(statuslight.StripOpts{
		Store:  store,
		Open:   open,
		Logger: logger.With("component", "strip"),
	})
	defer strip.Close()

	scheduler := statuslight.NewScheduleManager(strip, statuslight.ScheduleOpts{
		Location: loc,
		Logger:   logger.With("component", "scheduler"),
	})

	service := statuslight.NewService(statuslight.ServiceOpts{
		Store:     store,
		Strip:     strip,
		Scheduler: scheduler,
		Logger:    logger.With("component", "service"),
	})

	if err := service.Reload(ctx); err != nil {
		return fmt.Errorf("failed to load config %q: %w", configPath, err)
	}

	users := &credentials.Store{Path: usersPath}
	switch {
	case noAuth:
		users = nil
		logger.Warn("admin API authentication is disabled")
	case !users.Exists():
		logger.Warn(
			"users file not found, admin API rejects every request until a user is added",
			"path", usersPath)
	}

	errg, ctx := errgroup.WithContext(ctx)
	errg.Go(func() error {
		admin := newAdminHandler(service, users, logger.With("component", "admin"))

		logger.Info(
			"starting admin HTTP server",
			"addr", httpAddr)

		return hserve.ListenAndServe(ctx, httpAddr, admin)
	})

	errg.Go(func() error {
		watcher := statuslight.NewConfigWatcher(configPath, service, logger.With("component", "watcher"), 0)
		return watcher.Run(ctx)
	})

	errg.Go(func() error {
		logger.Info(
			"starting scheduler",
			"timezone", loc.String())

		return scheduler.Run(ctx)
	})

	errg.Go(func() error {
		return notifySystemd(ctx, logger.With("component", "systemd"))
	})

	return errg.Wait()
}

func deviceOpener(logger *slog.Logger) (statuslight.DeviceOpener, error) {
	switch driver {
	case "ws281x":
		cfg := ws281xConfig
		cfg.DMAChannel = dmaChannel
		cfg.GPIOPins = []int{gpioPin}
		return openWS281x(cfg), nil
	case "spi":
		return openSPI(spiPort), nil
	case "memory":
		opener := &statuslight.MemoryOpener{Logger: logger}
		return opener.Open, nil
	default:
		return nil, fmt.Errorf("unknown driver %q", driver)
	}
}
