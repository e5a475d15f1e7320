package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"secevents/internal/domain"
	"secevents/internal/extract"
	"secevents/internal/format"
	"secevents/internal/httpserver"
	"secevents/internal/metrics"
	"secevents/internal/scheduler"
	"secevents/internal/sink"
	"secevents/internal/source"
	"secevents/internal/storage"
	"secevents/internal/timerange"
)

// searchOptions are shared by every command that runs an extraction.
type searchOptions struct {
	begin       string
	end         string
	checkpoint  string
	incremental bool
	format      string
}

func addSearchFlags(cmd *cobra.Command, kind domain.Kind, o *searchOptions) {
	fs := cmd.Flags()
	fs.StringVarP(&o.begin, "begin", "b", "", "start of the range: yyyy-MM-dd, yyyy-MM-dd HH[:MM[:SS]] (UTC) or 30d/24h/15m back from now")
	fs.StringVarP(&o.end, "end", "e", "", "end of the range, same forms as --begin; cannot be combined with a checkpoint")
	fs.StringVarP(&o.checkpoint, "checkpoint", "c", "", "resume from and advance the named checkpoint")
	fs.BoolVarP(&o.incremental, "incremental", "i", false, "use the checkpoint named after the event kind")
	fs.StringVarP(&o.format, "format", "f", format.JSON, "output format: "+strings.Join(format.Names(), ", "))
	addFilterFlags(fs, kind)
}

func (o *searchOptions) checkpointName(kind domain.Kind) string {
	if o.checkpoint != "" {
		return o.checkpoint
	}
	if o.incremental {
		return string(kind)
	}
	return ""
}

func newSearchCmd(kind domain.Kind, opts *globalOptions) *cobra.Command {
	so := &searchOptions{}
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Print " + string(kind) + " to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExtraction(cmd, kind, opts, so, sink.Config{Type: sink.TypeConsole}, false)
		},
	}
	addSearchFlags(cmd, kind, so)
	return cmd
}

func newWriteToCmd(kind domain.Kind, opts *globalOptions) *cobra.Command {
	so := &searchOptions{}
	cmd := &cobra.Command{
		Use:   "write-to FILE",
		Short: "Append " + string(kind) + " to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtraction(cmd, kind, opts, so, sink.Config{Type: sink.TypeFile, Path: args[0]}, false)
		},
	}
	addSearchFlags(cmd, kind, so)
	return cmd
}

func newSendToCmd(kind domain.Kind, opts *globalOptions) *cobra.Command {
	so := &searchOptions{}
	var protocol string
	var follow bool

	cmd := &cobra.Command{
		Use:   "send-to HOST[:PORT]",
		Short: "Forward " + string(kind) + " to a syslog collector or message broker",
		Long: "Forward " + string(kind) + " to a syslog collector (tcp, udp) or message broker (amqp, kafka, nats).\n\n" +
			"With --follow the extraction repeats every sync.interval and resumes from a checkpoint named\n" +
			"after the kind unless --checkpoint is given. A checkpoint with no stored position needs --begin\n" +
			"on its first run; without it the command exits with a configuration error.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := sink.Config{
				Type:    strings.ToLower(protocol),
				Address: args[0],
			}
			if follow && so.checkpointName(kind) == "" {
				so.incremental = true
			}
			return runExtraction(cmd, kind, opts, so, cfg, follow)
		},
	}
	addSearchFlags(cmd, kind, so)
	cmd.Flags().StringVarP(&protocol, "protocol", "p", sink.TypeUDP, "transport: tcp, udp, amqp, kafka, nats")
	cmd.Flags().BoolVar(&follow, "follow", false, "keep running, extracting every sync.interval (implies --incremental); the first run of a new checkpoint needs --begin")
	return cmd
}

func newClearCheckpointCmd(kind domain.Kind, opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-checkpoint NAME",
		Short: "Forget the stored position of a " + string(kind) + " checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			store, err := storage.Open(ctx, a.cfg.Checkpoint.URL)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Delete(ctx, args[0]); err != nil {
				return err
			}
			a.logger.Info("checkpoint cleared", "kind", string(kind), "checkpoint", args[0])
			return nil
		},
	}
}

func runExtraction(cmd *cobra.Command, kind domain.Kind, opts *globalOptions, so *searchOptions, sinkCfg sink.Config, follow bool) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	req, err := buildRequest(cmd, kind, so, time.Now())
	if err != nil {
		return err
	}

	f, err := format.New(so.format)
	if err != nil {
		return err
	}

	src, err := source.New(source.Config{
		BaseURL:        a.cfg.API.BaseURL,
		Token:          a.cfg.API.Token,
		PageSize:       a.cfg.API.PageSize,
		MaxPages:       a.cfg.API.MaxPages,
		Timeout:        a.cfg.API.Timeout,
		MaxAttempts:    a.cfg.API.Retry.MaxAttempts,
		InitialBackoff: a.cfg.API.Retry.InitialBackoff,
		MaxBackoff:     a.cfg.API.Retry.MaxBackoff,
	}, kind, a.logger)
	if err != nil {
		return err
	}

	var store storage.Store
	if req.Checkpoint != "" || follow {
		store, err = storage.Open(ctx, a.cfg.Checkpoint.URL)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	sinkCfg = a.withSinkDefaults(sinkCfg, kind)
	out, err := sink.New(ctx, sinkCfg, a.logger)
	if err != nil {
		if errors.Is(err, domain.ErrConfiguration) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrDelivery, err)
	}
	defer out.Close()

	var cpStore extract.CheckpointStore
	if store != nil {
		cpStore = store
	}
	svc := extract.NewService(src, cpStore, f, out, a.metrics, a.logger)

	if !follow {
		stats, err := svc.Run(ctx, req)
		if err != nil {
			return err
		}
		if stats.Empty() {
			reportEmpty(cmd.ErrOrStderr())
		}
		return nil
	}

	return a.follow(ctx, svc, store, req)
}

func (a *app) follow(ctx context.Context, svc *extract.Service, store storage.Store, req extract.Request) error {
	if a.cfg.Ops.Addr != "" {
		router := httpserver.NewRouter(store, metrics.Handler(a.registry))
		go func() {
			if err := httpserver.Serve(ctx, a.cfg.Ops.Addr, router, a.logger); err != nil {
				a.logger.Error("ops server failed", "error", err)
			}
		}()
	}

	runner := scheduler.RunnerFunc(func(ctx context.Context) (*domain.RunStats, error) {
		return svc.Run(ctx, req)
	})

	err := scheduler.NewScheduler(runner, a.cfg.Sync.Interval, a.cfg.Sync.RunTimeout, a.logger).Start(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (a *app) withSinkDefaults(cfg sink.Config, kind domain.Kind) sink.Config {
	cfg.DialTimeout = a.cfg.Sink.DialTimeout

	switch cfg.Type {
	case sink.TypeAMQP:
		routingKey := a.cfg.Sink.RabbitMQ.RoutingKey
		if routingKey == "" {
			routingKey = string(kind)
		}
		cfg.AMQP = sink.AMQPConfig{
			Exchange:   a.cfg.Sink.RabbitMQ.Exchange,
			RoutingKey: routingKey,
			QueueName:  a.cfg.Sink.RabbitMQ.QueueName,
		}
		if strings.Contains(cfg.Address, "://") {
			cfg.AMQP.URL = cfg.Address
		}
	case sink.TypeKafka:
		cfg.Kafka = sink.KafkaConfig{Topic: a.cfg.Sink.Kafka.Topic}
	case sink.TypeNATS:
		cfg.NATS = sink.NATSConfig{Subject: a.cfg.Sink.NATS.Subject + "." + string(kind)}
	}
	return cfg
}

func buildRequest(cmd *cobra.Command, kind domain.Kind, so *searchOptions, now time.Time) (extract.Request, error) {
	begin, err := timerange.ParseBegin(so.begin, now)
	if err != nil {
		return extract.Request{}, err
	}
	if spec, ok := source.SpecFor(kind); ok {
		if err := timerange.CheckLookback(begin, now, spec.MaxLookback); err != nil {
			return extract.Request{}, err
		}
	}
	end, err := timerange.ParseEnd(so.end, now)
	if err != nil {
		return extract.Request{}, err
	}
	filters, err := collectFilters(cmd.Flags(), kind)
	if err != nil {
		return extract.Request{}, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}

	req := extract.Request{
		Begin:      begin,
		End:        end,
		Checkpoint: so.checkpointName(kind),
		Filters:    filters,
	}
	if err := req.Validate(); err != nil {
		return extract.Request{}, err
	}
	return req, nil
}

func reportEmpty(w io.Writer) {
	fmt.Fprintln(w, "No results found.")
}
