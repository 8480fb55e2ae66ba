package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"trackmeta/internal/field"
	"trackmeta/internal/i18n"
	"trackmeta/internal/metadata"
	"trackmeta/pkg/soundcloud"
)

const version = "1.0.0"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <reference>",
	Short: "Resolve a track reference and print its metadata",
	Long: `Resolve a track id, API URL or public SoundCloud URL and print the metadata JSON.
With --entry and --field the result is also stored in that field slot.`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the installation configuration",
}

var setClientIDCmd = &cobra.Command{
	Use:   "set-client-id <client-id>",
	Short: "Save the SoundCloud client ID",
	Args:  cobra.ExactArgs(1),
	RunE:  runSetClientID,
}

var showConfigCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the installation configuration",
	Args:  cobra.NoArgs,
	RunE:  runShowConfig,
}

func init() {
	resolveCmd.Flags().String("entry", "", "entry id of the field slot to store the result in")
	resolveCmd.Flags().String("field", "", "field id of the field slot to store the result in")

	configCmd.AddCommand(setClientIDCmd, showConfigCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if viper.GetBool("generate-env-example") {
		return generateEnvExample(cmd)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting trackmeta",
		zap.String("version", version),
		zap.String("api", config.SoundCloud.APIBaseURL),
		zap.String("store", config.Store.Driver))

	svcs, err := initializeServices(ctx)
	if err != nil {
		return err
	}
	defer svcs.close()

	return runServices(ctx, svcs)
}

func runServices(ctx context.Context, svcs *services) error {
	g, gCtx := errgroup.WithContext(ctx)

	server := svcs.httpServer()
	g.Go(func() error {
		return server.Start(gCtx)
	})

	logger.Info("trackmeta started successfully",
		zap.String("http_addr", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)))

	if err := g.Wait(); err != nil {
		logger.Error("trackmeta stopped with error", zap.Error(err))
		return err
	}

	logger.Info("trackmeta stopped gracefully")
	return nil
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svcs, err := initializeServices(ctx)
	if err != nil {
		return err
	}
	defer svcs.close()

	entry, _ := cmd.Flags().GetString("entry")
	fieldID, _ := cmd.Flags().GetString("field")
	localizer := i18n.NewLocalizer(config.App.Language)

	var md *metadata.TrackMetadata
	if entry != "" || fieldID != "" {
		key, keyErr := field.NewKey(entry, fieldID)
		if keyErr != nil {
			return keyErr
		}
		md, err = svcs.manager.Editor(key).Generate(ctx, args[0])
	} else {
		md, err = resolveOnce(ctx, svcs, args[0])
	}
	if err != nil {
		return errors.New(describeFailure(localizer, err))
	}

	return writeResolved(cmd.OutOrStdout(), cmd.ErrOrStderr(), localizer, args[0], md)
}

// writeResolved prints the encoded metadata to out and a summary to status.
func writeResolved(out, status io.Writer, localizer *i18n.Localizer, reference string,
	md *metadata.TrackMetadata) error {
	data, err := metadata.Encode(md)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(out, string(data)); err != nil {
		return err
	}
	_, err = fmt.Fprintln(status, localizer.T("success.generated", strings.TrimSpace(reference), len(md.Samples)))
	return err
}

// resolveOnce resolves without touching any field slot.
func resolveOnce(ctx context.Context, svcs *services, raw string) (*metadata.TrackMetadata, error) {
	ref, err := soundcloud.ParseReference(raw)
	if err != nil {
		return nil, err
	}
	params, err := svcs.config.Get(ctx)
	if err != nil {
		return nil, err
	}
	if config.App.ResolveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.App.ResolveTimeout)
		defer cancel()
	}
	return svcs.resolver.Resolve(ctx, ref, params.ClientID)
}

// describeFailure turns a resolve failure into the message an editor would see.
func describeFailure(localizer *i18n.Localizer, err error) string {
	var resErr *metadata.ResolutionError
	switch {
	case errors.Is(err, soundcloud.ErrEmptyReference):
		return localizer.T("validation.reference")
	case errors.Is(err, field.ErrNotConfigured):
		return localizer.T("error.not_configured")
	case errors.Is(err, field.ErrStale):
		return localizer.T("error.stale")
	case errors.As(err, &resErr):
		return fmt.Sprintf("%s (%v)", localizer.T("error."+resErr.Kind.String()), err)
	default:
		return err.Error()
	}
}

func runSetClientID(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	svcs, err := initializeServices(ctx)
	if err != nil {
		return err
	}
	defer svcs.close()

	saved, err := svcs.config.Save(ctx, field.InstallationParameters{ClientID: args[0]})
	if errors.Is(err, field.ErrInvalidClientID) {
		return errors.New(i18n.NewLocalizer(config.App.Language).T("validation.client_id"))
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), i18n.NewLocalizer(config.App.Language).T("success.config_saved"))
	logger.Debug("Client ID saved", zap.Int("length", len(saved.ClientID)))
	return nil
}

func runShowConfig(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	svcs, err := initializeServices(ctx)
	if err != nil {
		return err
	}
	defer svcs.close()

	params, err := svcs.config.Get(ctx)
	if errors.Is(err, field.ErrNotConfigured) {
		fmt.Fprintln(cmd.OutOrStdout(), "client id: (not configured)")
		return nil
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "client id: %s\n", params.ClientID)
	fmt.Fprintf(out, "api:       %s\n", config.SoundCloud.APIBaseURL)
	fmt.Fprintf(out, "fields:    %s\n", config.SoundCloud.Fields)
	fmt.Fprintf(out, "store:     %s\n", config.Store.Driver)
	return nil
}
