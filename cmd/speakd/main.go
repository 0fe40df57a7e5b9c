// main package for the speakd daemon
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/speak-service/internal/config"
	"github.com/book-expert/speak-service/internal/core"
	"github.com/book-expert/speak-service/internal/dispatch"
	"github.com/book-expert/speak-service/internal/playback"
	"github.com/book-expert/speak-service/internal/popup"
	"github.com/book-expert/speak-service/internal/settings"
	"github.com/book-expert/speak-service/internal/tts"
	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"
)

const (
	bootstrapLogFile  = "speakd-bootstrap.log"
	serviceLogFile    = "speakd.log"
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

func setupLogger(logPath, fileName string) (*logger.Logger, error) {
	log, err := logger.New(logPath, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

// services is everything the daemon wires together.
type services struct {
	repo       *settings.Repository
	kv         *settings.KVStore
	natsConn   *nats.Conn
	client     *tts.Client
	tokens     *tts.TokenProvider
	badge      *dispatch.Badge
	player     *playback.Controller
	dispatcher *dispatch.Dispatcher
}

func run() error {
	// 1. Create a temporary logger for the bootstrap process
	bootstrapLog, err := setupLogger(os.TempDir(), bootstrapLogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	bootstrapLog.Info("Bootstrap logger created.")

	// 2. Load configuration using the central configurator
	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	bootstrapLog.Info("Configuration loaded successfully.")

	// 3. Initialize the final logger based on the loaded configuration
	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir, serviceLogFile)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := wire(ctx, cfg, finalLog)
	if err != nil {
		finalLog.Error("Failed to start: %v", err)

		return err
	}

	if svc.natsConn != nil {
		defer svc.natsConn.Close()
	}

	finalLog.System("speakd started. Settings surface on %s", cfg.Popup.ListenAddr)

	return serve(ctx, cfg, svc, finalLog)
}

// wire builds the settings store, speech clients, playback and dispatcher.
func wire(ctx context.Context, cfg *config.Config, log *logger.Logger) (*services, error) {
	svc := &services{}

	var store core.SettingsStore

	if cfg.NATS.URL != "" {
		natsConn, err := nats.Connect(cfg.NATS.URL, nats.Name("speakd"))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
		}

		jetstreamContext, err := natsConn.JetStream()
		if err != nil {
			natsConn.Close()

			return nil, fmt.Errorf("failed to create JetStream context: %w", err)
		}

		kv, err := settings.NewKVStore(jetstreamContext, cfg.NATS.SettingsBucket)
		if err != nil {
			natsConn.Close()

			return nil, err
		}

		svc.natsConn = natsConn
		svc.kv = kv
		store = kv

		log.Info("Settings stored in NATS bucket %s", cfg.NATS.SettingsBucket)
	} else {
		fileStore := settings.NewFileStore(cfg.Paths.SettingsFile)
		store = fileStore

		log.Info("Settings stored in %s", fileStore.Path())
	}

	svc.repo = settings.NewRepository(store)

	err := svc.repo.EnsureDefaults(ctx,
		settings.Credentials{APIKey: cfg.Azure.APIKey, Region: cfg.Azure.Region}, cfg.Azure.DefaultVoice)
	if err != nil {
		return nil, fmt.Errorf("failed to write default settings: %w", err)
	}

	svc.client = tts.NewClient(tts.Endpoints{
		Token:     cfg.Azure.TokenEndpoint,
		Voices:    cfg.Azure.VoicesEndpoint,
		Synthesis: cfg.Azure.SynthesisEndpoint,
	}, cfg.Azure.Timeout())
	svc.tokens = tts.NewTokenProvider(svc.client, tts.WithLifetime(cfg.Azure.TokenTTL(), cfg.Azure.TokenMargin()))

	svc.badge = dispatch.NewBadge(dispatch.NewLogIndicator(log))

	err = svc.badge.Refresh(ctx, svc.repo)
	if err != nil {
		return nil, err
	}

	sink := playback.NewSpeakerSink(cfg.Playback.Buffer(), cfg.Playback.ResampleQuality)
	svc.player = playback.NewController(sink, svc.badge, log)
	svc.dispatcher = dispatch.New(svc.repo, svc.tokens, svc.client, svc.player, dispatch.NewLogNotifier(log), log)

	return svc, nil
}

// serve runs the settings surface, the command worker and the settings
// watcher until ctx is done.
func serve(ctx context.Context, cfg *config.Config, svc *services, log *logger.Logger) error {
	session := popup.NewSession(svc.repo, svc.tokens, svc.client, log,
		popup.WithCredentialsHook(svc.badge.CredentialsChanged))

	server := &http.Server{
		Addr:              cfg.Popup.ListenAddr,
		Handler:           popup.NewHandler(session, log).Router(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		preloadVoices(groupCtx, svc, log)

		return nil
	})

	group.Go(func() error {
		err := server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("settings server failed: %w", err)
	})

	group.Go(func() error {
		<-groupCtx.Done()
		svc.player.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	})

	if svc.natsConn != nil {
		worker := dispatch.NewNatsWorker(svc.natsConn, cfg.NATS.SpeakSubject, svc.dispatcher, log)

		group.Go(func() error {
			return worker.Run(groupCtx)
		})
	}

	if svc.kv != nil {
		group.Go(func() error {
			return svc.kv.Watch(groupCtx, func(change settings.Change) {
				if change.Key != settings.KeyAPIKey && change.Key != settings.KeyRegion {
					return
				}

				log.Info("Setting %s changed, refreshing badge", change.Key)

				refreshErr := svc.badge.Refresh(groupCtx, svc.repo)
				if refreshErr != nil {
					log.Warn("Badge refresh failed: %v", refreshErr)
				}
			})
		})
	}

	err := group.Wait()
	if err != nil {
		return fmt.Errorf("speakd stopped with error: %w", err)
	}

	log.System("speakd stopped.")

	return nil
}

// preloadVoices fetches the catalog once at startup so credential problems
// show up in the log before the first command.
func preloadVoices(ctx context.Context, svc *services, log *logger.Logger) {
	creds, err := svc.repo.Credentials(ctx)
	if err != nil || !creds.Complete() {
		log.Warn("Skipping voice preload: credentials are not set")

		return
	}

	token, err := svc.tokens.GetToken(ctx, creds.APIKey, creds.Region)
	if err != nil {
		log.Warn("Voice preload failed: %v", err)

		return
	}

	voices, err := svc.client.ListVoices(ctx, token, creds.Region)
	if err != nil {
		log.Warn("Voice preload failed: %v", err)

		return
	}

	log.Info("Preloaded %d voices for region %s", len(voices), creds.Region)
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
