package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"splitgraph/config"
	"splitgraph/graph"
	"splitgraph/metrics"
	"splitgraph/model"
	"splitgraph/store"
)

type shardStore = store.Store[*model.Node, model.Edge, model.EdgeType]

// env is what every command needs: config, logging, metrics and the store.
type env struct {
	cfg     *config.Config
	log     *zap.Logger
	reg     *prometheus.Registry
	metrics *metrics.Metrics
	db      *store.SQLiteStore
	codec   *store.Codec
	shards  *shardStore
}

func openEnv() (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if storePath != "" {
		cfg.StorePath = storePath
	}
	logger, err := cfg.Logger()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	db, err := store.OpenSQLite(cfg.StorePath)
	if err != nil {
		return nil, err
	}
	codec, err := store.NewCodec(cfg.Compression)
	if err != nil {
		db.Close()
		return nil, err
	}
	reg := prometheus.NewRegistry()
	return &env{
		cfg:     cfg,
		log:     logger,
		reg:     reg,
		metrics: metrics.New(reg),
		db:      db,
		codec:   codec,
		shards:  store.New[*model.Node, model.Edge, model.EdgeType](db, codec, logger),
	}, nil
}

func (e *env) graphOptions() []graph.Option {
	return []graph.Option{graph.WithLogger(e.log), graph.WithMetrics(e.metrics)}
}

func (e *env) load(ctx context.Context, rev string) (*model.Graph, error) {
	g, addr, err := e.shards.Open(ctx, rev, e.graphOptions()...)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", rev, err)
	}
	e.log.Debug("graph loaded", zap.String("rev", rev), zap.String("address", addr.Short()))
	return g, nil
}

func (e *env) close(w io.Writer) {
	if showMetrics {
		dumpMetrics(w, e.reg)
	}
	e.codec.Close()
	if err := e.db.Close(); err != nil {
		e.log.Warn("closing store", zap.Error(err))
	}
	_ = e.log.Sync()
}

// dumpMetrics prints every counter sample in the text exposition layout.
func dumpMetrics(w io.Writer, reg *prometheus.Registry) {
	families, err := reg.Gather()
	if err != nil {
		fmt.Fprintln(w, "gathering metrics:", err)
		return
	}
	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, l := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
			}
			name := mf.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			lines = append(lines, fmt.Sprintf("%s %g", name, m.GetCounter().GetValue()))
		}
	}
	sort.Strings(lines)
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
}
