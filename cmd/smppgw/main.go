// Package main wires the SMPP gateway's shared resources, route table,
// connectors, and HTTP front into a single running process (spec §5).
// Grounded on the env.Parse / logger-init / errgroup shutdown shape every
// absmach-magistrala cmd/*/main.go follows (cmd/mqtt/main.go in
// particular), adapted to the gateway's own packages.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/relaysms/smppgw/internal/connector"
	"github.com/relaysms/smppgw/internal/gwconfig"
	"github.com/relaysms/smppgw/internal/gwlog"
	"github.com/relaysms/smppgw/internal/httpapi"
	"github.com/relaysms/smppgw/internal/kvstore"
	"github.com/relaysms/smppgw/internal/metrics"
	"github.com/relaysms/smppgw/internal/modlr"
	"github.com/relaysms/smppgw/internal/mtpipeline"
	"github.com/relaysms/smppgw/internal/queue"
	"github.com/relaysms/smppgw/internal/route"
	"github.com/relaysms/smppgw/internal/supervisor"
)

const svcName = "smppgw"

// topologyConfig is the connector/route list the external CLI/INI loader
// (spec §1 Non-goals) is responsible for producing. In lieu of that
// loader this process reads it as a JSON document from GW_TOPOLOGY_FILE
// -- plain JSON, not the INI format the Non-goal names, kept deliberately
// small since the loader itself is out of scope.
type topologyConfig struct {
	Connectors []gwconfig.ConnectorConfig `json:"connectors"`
	Routes     []gwconfig.RouteConfig     `json:"routes"`
}

func main() {
	cfg := gwconfig.Config{}
	if err := gwconfig.Load(&cfg); err != nil {
		log.Fatalf("%s: loading configuration: %s", svcName, err)
	}

	topology, err := loadTopology(os.Getenv("GW_TOPOLOGY_FILE"))
	if err != nil {
		log.Fatalf("%s: loading topology: %s", svcName, err)
	}
	cfg.Connectors = topology.Connectors
	cfg.Routes = topology.Routes

	zl, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("%s: building logger: %s", svcName, err)
	}
	defer zl.Sync()
	logger := gwlog.New(zl, logLevelFromString(cfg.LogLevel))

	if err := run(cfg, logger); err != nil {
		logger.ErrorF("%s: exited: %+v", svcName, err)
		os.Exit(1)
	}
}

func loadTopology(path string) (topologyConfig, error) {
	var tc topologyConfig
	if path == "" {
		return tc, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return tc, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(&tc); err != nil {
		return tc, fmt.Errorf("decoding %s: %w", path, err)
	}
	return tc, nil
}

func logLevelFromString(s string) gwlog.Level {
	switch s {
	case "debug":
		return gwlog.LevelDebug
	case "error":
		return gwlog.LevelError
	default:
		return gwlog.LevelInfo
	}
}

func run(cfg gwconfig.Config, logger *gwlog.Logger) error {
	store, err := kvstore.Dial(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("dialing redis: %w", err)
	}

	subjects := make([]string, 0, len(cfg.Connectors)+2)
	subjects = append(subjects, queue.DLRSubject(cfg.Queue.Prefix, cfg.Queue.Suffix), queue.MOSubject(cfg.Queue.Prefix, cfg.Queue.Suffix))
	for _, c := range cfg.Connectors {
		subjects = append(subjects, queue.ConnectorSubject(cfg.Queue.Prefix, c.Name, cfg.Queue.Suffix))
	}
	q, err := queue.DialNats(cfg.Queue.URL, subjects)
	if err != nil {
		return fmt.Errorf("dialing nats: %w", err)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	names := make([]string, 0, len(cfg.Connectors))
	connectorConfs := make(map[string]gwconfig.ConnectorConfig, len(cfg.Connectors))
	for _, c := range cfg.Connectors {
		names = append(names, c.Name)
		connectorConfs[c.Name] = c
	}
	status := route.NewConnectorStatus(names)

	segmentTTL := 300 * time.Second
	mode := modlr.Lenient
	if len(cfg.Connectors) > 0 {
		segmentTTL = cfg.Connectors[0].ReassemblyTTL
		if cfg.Connectors[0].ReassemblyMode == "strict" {
			mode = modlr.Strict
		}
	}
	reassembler := &modlr.Reassembler{
		Store:      store,
		Queue:      q,
		DLRPrefix:  cfg.Queue.Prefix,
		DLRSuffix:  cfg.Queue.Suffix,
		MOPrefix:   cfg.Queue.Prefix,
		MOSuffix:   cfg.Queue.Suffix,
		Mode:       mode,
		SegmentTTL: segmentTTL,
		Logger:     logger,
		Metrics:    m,
	}

	connectors := make([]*connector.Connector, 0, len(cfg.Connectors))
	for _, c := range cfg.Connectors {
		conn := connector.New(c, store, q, reassembler, status, logger, cfg.Queue.Prefix, cfg.Queue.Suffix).WithMetrics(m)
		connectors = append(connectors, conn)
	}

	routes := make([]*route.Route, 0, len(cfg.Routes))
	for _, rc := range cfg.Routes {
		routes = append(routes, buildRoute(rc))
	}
	table := route.NewTable(routes)

	pipeline := mtpipeline.New(table, status, connectorConfs, nil, q, cfg.Queue.Prefix, cfg.Queue.Suffix, logger)

	api := &httpapi.API{Pipeline: pipeline, Status: status, Metrics: m, Logger: logger}
	httpServer := &http.Server{
		Addr:    cfg.HTTP.Host + ":" + cfg.HTTP.Port,
		Handler: httpapi.NewHandler(api),
	}

	sup := supervisor.New(store, q, connectors, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		<-c
		logger.InfoF("%s: shutdown signal received", svcName)
		httpServer.Close()
		cancel()
	}()

	errCh := make(chan error, 2)
	go func() { errCh <- sup.Run(ctx) }()
	go func() {
		logger.InfoF("%s: http listening on %s", svcName, httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
			return
		}
		errCh <- nil
	}()

	var firstErr error
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func buildRoute(rc gwconfig.RouteConfig) *route.Route {
	filters := make([]route.Filter, 0, len(rc.Filters))
	for _, fc := range rc.Filters {
		filters = append(filters, buildFilter(fc))
	}
	return &route.Route{
		Priority: rc.Priority,
		Type:     route.Type(rc.Type),
		Targets:  rc.Targets,
		Filters:  filters,
	}
}

func buildFilter(fc gwconfig.FilterConfig) route.Filter {
	switch fc.Kind {
	case "connector":
		return route.ConnectorFilter{Name: fc.Value}
	case "source_addr":
		return route.NewSourceAddrFilter(fc.Pattern)
	case "dest_addr":
		return route.NewDestAddrFilter(fc.Pattern)
	case "short_message":
		return route.NewShortMessageFilter(fc.Pattern)
	case "tag":
		v, _ := strconv.Atoi(fc.Value)
		return route.TagFilter{Value: v}
	default:
		return route.TransparentFilter{}
	}
}
