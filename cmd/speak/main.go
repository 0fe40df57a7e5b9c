package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/book-expert/logger"
	"github.com/book-expert/speak-service/internal/catalog"
	"github.com/book-expert/speak-service/internal/config"
	"github.com/book-expert/speak-service/internal/core"
	"github.com/book-expert/speak-service/internal/dispatch"
	"github.com/book-expert/speak-service/internal/playback"
	"github.com/book-expert/speak-service/internal/settings"
	"github.com/book-expert/speak-service/internal/tts"
	"github.com/book-expert/speak-service/internal/tts/text"
	"github.com/nats-io/nats.go"
)

// Flag descriptions.
const (
	flagTextDesc         = "Text to speak"
	flagStdinDesc        = "Read the text to speak from stdin"
	flagVoicesDesc       = "List available voices and exit"
	flagLangDesc         = "Language code filter for --voices (e.g. en, de)"
	flagMultilingualDesc = "Only list multilingual voices"
	flagOutputDesc       = "Write the synthesized MP3 to this file instead of playing it"
	flagRemoteDesc       = "Send the command to a running speakd over NATS"
	flagVerboseDesc      = "Enable verbose logging"
)

// Flag names.
const (
	flagText         = "text"
	flagStdin        = "stdin"
	flagVoices       = "voices"
	flagLang         = "lang"
	flagMultilingual = "multilingual"
	flagOutput       = "output"
	flagRemote       = "remote"
	flagVerbose      = "verbose"
)

// Error and log messages.
const (
	errEitherTextOrStdin   = "Either --text, --stdin or --voices must be provided"
	errCannotSpecifyBoth   = "Cannot specify both --text and --stdin"
	errVoicesWithText      = "--voices cannot be combined with --text or --stdin"
	errRemoteWithOutput    = "--remote cannot be combined with --output"
	errRemoteNeedsNATS     = "--remote needs nats.url in the configuration"
	errFailedToLoadConfig  = "failed to load configuration: %w"
	errFailedToInitLogger  = "failed to initialize logger: %w"
	errFailedToOpenStore   = "failed to open settings: %w"
	errRemoteReply         = "speakd reported: %s"
	logSpeakingLocally     = "Speaking locally with voice %s"
	logWroteAudio          = "Wrote %d bytes to %s\n"
	logRemoteAccepted      = "speakd is playing (workflow %s)\n"
	voicesListHeaderFormat = "%d of %d voices (%d multilingual)\n"
)

// File names and permissions.
const (
	logFileNameDefault    = "speak-cli.log"
	logFileNameVerbose    = "speak-cli-verbose.log"
	bootstrapLogFileName  = "speak-cli-bootstrap.log"
	outputFilePermissions = 0o600
)

var (
	errNoInput      = errors.New(errEitherTextOrStdin)
	errBothInputs   = errors.New(errCannotSpecifyBoth)
	errVoicesInput  = errors.New(errVoicesWithText)
	errRemoteOutput = errors.New(errRemoteWithOutput)
	errRemoteConfig = errors.New(errRemoteNeedsNATS)
)

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	text         string
	stdin        bool
	voices       bool
	lang         string
	multilingual bool
	output       string
	remote       bool
	verbose      bool
}

// app bundles what every mode needs.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	repo     *settings.Repository
	client   *tts.Client
	tokens   *tts.TokenProvider
	natsConn *nats.Conn
	stdin    io.Reader
	stdout   io.Writer
}

func main() {
	err := run()
	if err != nil {
		// A logger might not be initialized yet, so use the standard log package.
		log.Fatalf("Error: %v", err)
	}
}

// run is the main application entry point, returning an error on failure.
func run() error {
	flags := parseFlags()

	err := validateArguments(flags)
	if err != nil {
		flag.Usage()

		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := setup(ctx, flags.verbose)
	if err != nil {
		return err
	}
	defer application.close()

	application.stdin = os.Stdin
	application.stdout = os.Stdout

	return application.execute(ctx, flags)
}

// parseFlags defines and parses command-line flags, returning them in a struct.
func parseFlags() appFlags {
	var flags appFlags
	flag.StringVar(&flags.text, flagText, "", flagTextDesc)
	flag.BoolVar(&flags.stdin, flagStdin, false, flagStdinDesc)
	flag.BoolVar(&flags.voices, flagVoices, false, flagVoicesDesc)
	flag.StringVar(&flags.lang, flagLang, catalog.AllLanguages, flagLangDesc)
	flag.BoolVar(&flags.multilingual, flagMultilingual, false, flagMultilingualDesc)
	flag.StringVar(&flags.output, flagOutput, "", flagOutputDesc)
	flag.BoolVar(&flags.remote, flagRemote, false, flagRemoteDesc)
	flag.BoolVar(&flags.verbose, flagVerbose, false, flagVerboseDesc)
	flag.Parse()

	return flags
}

// validateArguments checks for missing and conflicting flags.
func validateArguments(flags appFlags) error {
	hasText := flags.text != ""

	switch {
	case flags.voices && (hasText || flags.stdin):
		return errVoicesInput
	case flags.voices:
		return nil
	case hasText && flags.stdin:
		return errBothInputs
	case !hasText && !flags.stdin:
		return errNoInput
	case flags.remote && flags.output != "":
		return errRemoteOutput
	default:
		return nil
	}
}

// setup loads config, initializes the logger and opens the settings store.
func setup(ctx context.Context, verbose bool) (*app, error) {
	bootstrapLog, err := logger.New(os.TempDir(), bootstrapLogFileName)
	if err != nil {
		return nil, fmt.Errorf(errFailedToInitLogger, err)
	}

	cfg, err := config.Load(bootstrapLog)
	_ = bootstrapLog.Close()

	if err != nil {
		return nil, fmt.Errorf(errFailedToLoadConfig, err)
	}

	logFileName := logFileNameDefault
	if verbose {
		logFileName = logFileNameVerbose
	}

	cliLog, err := logger.New(cfg.Paths.BaseLogsDir, logFileName)
	if err != nil {
		return nil, fmt.Errorf(errFailedToInitLogger, err)
	}

	application := &app{cfg: cfg, log: cliLog}

	store, err := application.openStore()
	if err != nil {
		application.close()

		return nil, fmt.Errorf(errFailedToOpenStore, err)
	}

	application.repo = settings.NewRepository(store)

	err = application.repo.EnsureDefaults(ctx,
		settings.Credentials{APIKey: cfg.Azure.APIKey, Region: cfg.Azure.Region}, cfg.Azure.DefaultVoice)
	if err != nil {
		application.close()

		return nil, fmt.Errorf(errFailedToOpenStore, err)
	}

	application.client = tts.NewClient(tts.Endpoints{
		Token:     cfg.Azure.TokenEndpoint,
		Voices:    cfg.Azure.VoicesEndpoint,
		Synthesis: cfg.Azure.SynthesisEndpoint,
	}, cfg.Azure.Timeout())
	application.tokens = tts.NewTokenProvider(application.client,
		tts.WithLifetime(cfg.Azure.TokenTTL(), cfg.Azure.TokenMargin()))

	return application, nil
}

// openStore uses the shared NATS bucket when configured and the local
// settings file otherwise.
func (a *app) openStore() (core.SettingsStore, error) {
	if a.cfg.NATS.URL == "" {
		return settings.NewFileStore(a.cfg.Paths.SettingsFile), nil
	}

	natsConn, err := nats.Connect(a.cfg.NATS.URL, nats.Name("speak-cli"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", a.cfg.NATS.URL, err)
	}

	a.natsConn = natsConn

	jetstreamContext, err := natsConn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return settings.NewKVStore(jetstreamContext, a.cfg.NATS.SettingsBucket)
}

func (a *app) close() {
	if a.natsConn != nil {
		a.natsConn.Close()
	}

	_ = a.log.Close()
}

// execute dispatches to the mode selected by the flags.
func (a *app) execute(ctx context.Context, flags appFlags) error {
	if flags.voices {
		return a.listVoices(ctx, catalog.NewFilter(flags.lang, flags.multilingual))
	}

	source, cmd := a.selection(flags)

	switch {
	case flags.remote:
		return a.speakRemote(ctx, cmd, source)
	case flags.output != "":
		return a.writeAudio(ctx, source, flags.output)
	default:
		return a.speakLocal(ctx, cmd, source)
	}
}

// selection maps --text to the context-menu command and --stdin to the
// shortcut command.
func (a *app) selection(flags appFlags) (core.SelectionSource, dispatch.Command) {
	if flags.stdin {
		return dispatch.ReaderSelection{Reader: a.stdin}, dispatch.CommandSpeakSelection
	}

	return dispatch.StaticSelection(flags.text), dispatch.CommandSpeakText
}

func (a *app) listVoices(ctx context.Context, filter catalog.Filter) error {
	creds, err := a.repo.Credentials(ctx)
	if err != nil {
		return err
	}

	token, err := a.tokens.GetToken(ctx, creds.APIKey, creds.Region)
	if err != nil {
		return err
	}

	voices, err := a.client.ListVoices(ctx, token, creds.Region)
	if err != nil {
		return err
	}

	visible := filter.Apply(voices)

	fmt.Fprintf(a.stdout, voicesListHeaderFormat, len(visible), len(voices), catalog.MultilingualCount(voices))

	for _, voice := range visible {
		fmt.Fprintf(a.stdout, "%-40s %s\n", voice.ShortName, voice.Label())

		if languages := voice.SupportedLanguages(); len(languages) > 0 {
			fmt.Fprintf(a.stdout, "%-40s   %s\n", "", strings.Join(languages, ", "))
		}
	}

	return nil
}

func (a *app) speakLocal(ctx context.Context, cmd dispatch.Command, source core.SelectionSource) error {
	stored, err := a.repo.Load(ctx)
	if err != nil {
		return err
	}

	a.log.Info(logSpeakingLocally, stored.SelectedVoice)

	player := playback.NewController(
		playback.NewSpeakerSink(a.cfg.Playback.Buffer(), a.cfg.Playback.ResampleQuality),
		dispatch.NewLogIndicator(a.log),
		a.log,
	)
	dispatcher := dispatch.New(a.repo, a.tokens, a.client, player, dispatch.NewLogNotifier(a.log), a.log)

	handle, err := dispatcher.Dispatch(ctx, cmd, source)
	if err != nil {
		return err
	}

	err = handle.Wait(ctx)
	if err != nil {
		handle.Stop()
	}

	return nil
}

func (a *app) speakRemote(ctx context.Context, cmd dispatch.Command, source core.SelectionSource) error {
	if a.natsConn == nil {
		return errRemoteConfig
	}

	selection, err := source.Selection(ctx)
	if err != nil {
		return err
	}

	reply, err := dispatch.Request(ctx, a.natsConn, a.cfg.NATS.SpeakSubject,
		dispatch.NewSpeakCommand(cmd, selection, os.Getenv("USER")))
	if err != nil {
		return err
	}

	if reply.Status != dispatch.StatusPlaying {
		return fmt.Errorf(errRemoteReply, reply.Error)
	}

	fmt.Fprintf(a.stdout, logRemoteAccepted, reply.Header.WorkflowID)

	return nil
}

// writeAudio synthesizes the selection with the stored voice and saves it.
func (a *app) writeAudio(ctx context.Context, source core.SelectionSource, outputPath string) error {
	selection, err := source.Selection(ctx)
	if err != nil {
		return err
	}

	spoken := text.NewNormalizer().Normalize(selection)
	if spoken == "" {
		return dispatch.ErrEmptySelection
	}

	stored, err := a.repo.Load(ctx)
	if err != nil {
		return err
	}

	token, err := a.tokens.GetToken(ctx, stored.APIKey, stored.Region)
	if err != nil {
		return err
	}

	audio, err := a.client.Synthesize(ctx, token, stored.Region, stored.SelectedVoice, spoken)
	if err != nil {
		return err
	}

	err = os.WriteFile(outputPath, audio, outputFilePermissions)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", outputPath, err)
	}

	fmt.Fprintf(a.stdout, logWroteAudio, len(audio), outputPath)

	return nil
}
