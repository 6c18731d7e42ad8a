package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"reflect"
	"syscall"
	"time"

	"github.com/aukilabs/broadphase/featureflag"
	bphttp "github.com/aukilabs/broadphase/http"
	"github.com/aukilabs/broadphase/models"
	"github.com/aukilabs/broadphase/scenario"
	bpwebsocket "github.com/aukilabs/broadphase/websocket"
	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

var (
	// The broadphase version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "broadphase_info",
		Help:        "Broadphase information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string        `cli:""        env:"BROADPHASE_ADDR"                 help:"Listening address for client connections."`
	AdminAddr          string        `cli:""        env:"BROADPHASE_ADMIN_ADDR"           help:"Admin listening address."`
	PublicEndpoint     string        `cli:""        env:"BROADPHASE_PUBLIC_ENDPOINT"      help:"The public endpoint where this server is reachable."`
	LogLevel           string        `cli:""        env:"BROADPHASE_LOG_LEVEL"            help:"Log level (debug|info|warning|error)."`
	LogIndent          bool          `cli:""        env:"BROADPHASE_LOG_INDENT"           help:"Indent logs."`
	Scenario           string        `cli:""        env:"BROADPHASE_SCENARIO"             help:"The TOML scenario file describing the simulated world."`
	TickRate           time.Duration `cli:""        env:"BROADPHASE_TICK_RATE"            help:"The duration of a world tick."`
	DebugToken         string        `cli:",hidden" env:"BROADPHASE_DEBUG_TOKEN"          help:"The token required to call debug endpoints and to stream the world."`
	ClientIdleTimeout  time.Duration `cli:",hidden" env:"BROADPHASE_CLIENT_IDLE_TIMEOUT"  help:"Time until an idle client will be disconnected. Zero keeps idle clients."`
	LogSummaryInterval time.Duration `cli:",hidden" env:"BROADPHASE_LOG_SUMMARY_INTERVAL" help:"The duration between each log summary by connection."`
	Events             eventsConfig  `cli:",hidden" env:"-"                               help:"Event pusher configuration."`
	FeatureFlags       []string      `cli:",hidden" env:"BROADPHASE_FEATURE_FLAGS"        help:"Comma separated feature flags"`
	Version            bool          `cli:""        env:"-"                               help:"Show version."`
	Help               bool          `cli:""        env:"-"                               help:"Show help."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"BROADPHASE_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed. Events are disabled when empty."`
	FlushInterval time.Duration `cli:",hidden" env:"BROADPHASE_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"BROADPHASE_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"BROADPHASE_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:               ":4000",
		AdminAddr:          ":18190",
		PublicEndpoint:     "http://localhost:4000",
		LogLevel:           logs.InfoLevel.String(),
		TickRate:           time.Millisecond * 50,
		LogSummaryInterval: time.Minute,
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts a broad-phase proximity server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     metrics.HTTPTransport(http.DefaultTransport),
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "broadphase",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	sc, err := loadScenario(conf)
	if err != nil {
		logs.Fatal(err)
	}

	featureFlags := featureflag.New(conf.FeatureFlags)

	world, err := models.NewWorld(sc.WorldOptions(featureFlags))
	if err != nil {
		logs.Fatal(err)
	}

	if _, err := sc.Populate(world); err != nil {
		logs.Fatal(errors.New("populating world failed").Wrap(err))
	}

	go world.StartTicking(ctx, conf.TickRate)

	readinessCheck := func() bool {
		return world.Snapshot().Tick != 0
	}

	var service http.ServeMux
	service.Handle("/health", bphttp.HandleWithCORS(http.HandlerFunc(bphttp.HandleHealthCheck)))
	service.Handle("/version", bphttp.HandleWithCORS(bphttp.HandleVersion(version)))
	service.Handle("/ready", bphttp.HandleWithCORS(bphttp.HandleReadyCheck(readinessCheck)))

	featureFlags.IfNotSet(featureflag.FlagDisableDebugEndpoint, func() {
		service.Handle("/snapshot", bphttp.HandleWithCORS(
			bphttp.VerifyTokenHandler(conf.DebugToken, bphttp.HandleSnapshot(world))))
		service.Handle("/tree", bphttp.HandleWithCORS(
			bphttp.VerifyTokenHandler(conf.DebugToken, bphttp.HandleTreeDebug(world))))
		service.Handle("/neighbors", bphttp.HandleWithCORS(
			bphttp.VerifyTokenHandler(conf.DebugToken, bphttp.HandleNeighbors(world))))
	})

	service.Handle("/stream", websocket.Server{
		Handshake: bphttp.VerifyTokenHandshake(conf.DebugToken),
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			var sh bpwebsocket.Handler = &bpwebsocket.StreamHandler{
				World:             world,
				ClientIdleTimeout: conf.ClientIdleTimeout,
				FeatureFlags:      featureFlags,
			}
			h := bpwebsocket.HandlerWithLogs(sh, conf.LogSummaryInterval)
			h = bpwebsocket.HandlerWithMetrics(h, conf.PublicEndpoint)
			defer h.Close()

			bpwebsocket.Handle(ctx, conn, h)
		},
	})

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", bphttp.HandleHealthCheck)
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))
	admin.HandleFunc("/ready", bphttp.HandleReadyCheck(readinessCheck))
	admin.HandleFunc("/tree", bphttp.HandleTreeDebug(world))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("endpoint", conf.PublicEndpoint).
		WithTag("scenario", sc.Name).
		WithTag("tick_rate", conf.TickRate).
		Info("starting broadphase server")

	bphttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
			bphttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)

	if corrected := world.Recount(); corrected != 0 {
		logs.WithTag("world", world.Name).
			WithTag("corrected_nodes", corrected).
			Warn(errors.New("world tree had inconsistent registration counts"))
	}
}

func loadScenario(conf config) (*scenario.Scenario, error) {
	if conf.Scenario == "" {
		return scenario.Default(), nil
	}

	sc, err := scenario.Load(conf.Scenario)
	if err != nil {
		return nil, errors.New("loading scenario failed").Wrap(err)
	}
	return sc, nil
}

func validateConfig(conf config) error {
	if conf.TickRate <= 0 {
		return errors.New("tick rate must be positive").
			WithTag("tick_rate", conf.TickRate)
	}

	if conf.LogSummaryInterval <= 0 {
		return errors.New("log summary interval must be positive").
			WithTag("log_summary_interval", conf.LogSummaryInterval)
	}

	return nil
}
