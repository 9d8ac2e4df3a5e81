// Copyright (C) 2024-2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// marketd runs the auction marketplace with an HTTP API, a Prometheus
// endpoint, and a websocket event feed. State snapshots go to the
// configured store on an interval and on shutdown.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adxyz/marketplace/pkg/analytics"
	"github.com/adxyz/marketplace/pkg/api"
	"github.com/adxyz/marketplace/pkg/log"
	"github.com/adxyz/marketplace/pkg/market"
	"github.com/adxyz/marketplace/pkg/metric"
	"github.com/adxyz/marketplace/pkg/rtb"
	"github.com/adxyz/marketplace/pkg/storage"
	"github.com/adxyz/marketplace/pkg/token"
)

type config struct {
	apiAddr string
	opsAddr string

	dbType string
	dbPath string

	owner         string
	escrow        string
	feeBps        uint
	feeRecipients string

	gateEnabled     bool
	commitAuthority string
	shareAuthority  string

	currency         string
	snapshotInterval time.Duration
	logLevel         string

	fund      string
	mintItems string
}

func parseFlags() *config {
	cfg := &config{}
	flag.StringVar(&cfg.apiAddr, "api-addr", ":8080", "marketplace API listen address")
	flag.StringVar(&cfg.opsAddr, "ops-addr", ":9090", "metrics/health/events listen address")
	flag.StringVar(&cfg.dbType, "db-type", "memory", "snapshot store backend (memory|badger)")
	flag.StringVar(&cfg.dbPath, "db-path", "/tmp/marketd", "snapshot store path for the badger backend")
	flag.StringVar(&cfg.owner, "owner", "", "owner account (may change the protocol fee)")
	flag.StringVar(&cfg.escrow, "escrow", "market-escrow", "escrow account on the payment ledger")
	flag.UintVar(&cfg.feeBps, "fee-bps", 0, "protocol fee in basis points")
	flag.StringVar(&cfg.feeRecipients, "fee-recipients", "", "comma-separated fee recipients (one or two)")
	flag.BoolVar(&cfg.gateEnabled, "gate", false, "require the release gate before settlement withdrawals")
	flag.StringVar(&cfg.commitAuthority, "commit-authority", "", "account allowed to post release commitments")
	flag.StringVar(&cfg.shareAuthority, "share-authority", "", "account allowed to post attestation shares")
	flag.StringVar(&cfg.currency, "currency", "USD", "currency code for RTB export")
	flag.DurationVar(&cfg.snapshotInterval, "snapshot-interval", time.Minute, "state snapshot interval (0 disables)")
	flag.StringVar(&cfg.logLevel, "log-level", "info", "log level (debug|info|warn|error)")
	flag.StringVar(&cfg.fund, "fund", "", "dev ledger seeding, addr:amount pairs comma-separated")
	flag.StringVar(&cfg.mintItems, "mint-items", "", "dev inventory seeding, addr:tokenID pairs comma-separated")
	flag.Parse()
	return cfg
}

func main() {
	cfg := parseFlags()

	logger := log.NewWithLevel(cfg.logLevel)
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("marketd exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config, logger log.Logger) error {
	ledger := token.NewMemoryLedger()
	custodian := token.NewMemoryCustodian()
	if err := seedLedger(ledger, cfg.fund); err != nil {
		return fmt.Errorf("seed ledger: %w", err)
	}
	if err := seedCustodian(custodian, cfg.mintItems); err != nil {
		return fmt.Errorf("seed custodian: %w", err)
	}

	var recipients []market.Address
	for _, r := range strings.Split(cfg.feeRecipients, ",") {
		if r = strings.TrimSpace(r); r != "" {
			recipients = append(recipients, market.Address(r))
		}
	}

	mkt, err := market.New(market.Config{
		Owner:           market.Address(cfg.owner),
		Escrow:          market.Address(cfg.escrow),
		FeeBps:          uint32(cfg.feeBps),
		FeeRecipients:   recipients,
		GateEnabled:     cfg.gateEnabled,
		CommitAuthority: market.Address(cfg.commitAuthority),
		ShareAuthority:  market.Address(cfg.shareAuthority),
	}, ledger, custodian, market.WithLogger(logger.With("component", "market")))
	if err != nil {
		return fmt.Errorf("marketplace: %w", err)
	}

	store, err := storage.New(cfg.dbType, cfg.dbPath)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer store.Close()
	if err := mkt.Restore(store); err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	metrics, err := metric.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	go func() {
		for ev := range mkt.Subscribe(256) {
			metrics.Observe(ev)
		}
	}()

	tracker := analytics.NewTracker()
	go tracker.Run(mkt.Subscribe(256))

	feed := newEventFeed(logger.With("component", "feed"))
	go feed.run(mkt.Subscribe(256))

	apiSrv := &http.Server{
		Addr:    cfg.apiAddr,
		Handler: api.NewServer(mkt, tracker, rtb.NewExporter(mkt, cfg.currency), logger.With("component", "api")).Handler(),
	}

	ops := mux.NewRouter()
	ops.Handle("/metrics", promhttp.HandlerFor(metrics.GetGatherer(), promhttp.HandlerOpts{}))
	ops.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	ops.HandleFunc("/ws/events", feed.serve)
	opsSrv := &http.Server{Addr: cfg.opsAddr, Handler: ops}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("api listening", "addr", cfg.apiAddr)
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	go func() {
		logger.Info("ops listening", "addr", cfg.opsAddr)
		if err := opsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	snapshotDone := make(chan struct{})
	go func() {
		defer close(snapshotDone)
		if cfg.snapshotInterval <= 0 {
			<-ctx.Done()
			return
		}
		ticker := time.NewTicker(cfg.snapshotInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := mkt.Snapshot(store); err != nil {
					logger.Warn("snapshot failed", "error", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		logger.Error("server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = apiSrv.Shutdown(shutdownCtx)
	_ = opsSrv.Shutdown(shutdownCtx)
	<-snapshotDone

	if err := mkt.Snapshot(store); err != nil {
		return fmt.Errorf("final snapshot: %w", err)
	}
	logger.Info("state snapshotted", "backend", cfg.dbType)
	return nil
}

// seedLedger parses "alice:1000,bob:500" style pairs and mints balances.
func seedLedger(ledger *token.MemoryLedger, spec string) error {
	if spec == "" {
		return nil
	}
	for _, pair := range strings.Split(spec, ",") {
		addr, raw, ok := strings.Cut(pair, ":")
		if !ok {
			return fmt.Errorf("malformed fund entry %q", pair)
		}
		amount, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("fund entry %q: %w", pair, err)
		}
		ledger.Mint(token.Address(addr), amount)
	}
	return nil
}

func seedCustodian(custodian *token.MemoryCustodian, spec string) error {
	if spec == "" {
		return nil
	}
	for _, pair := range strings.Split(spec, ",") {
		addr, raw, ok := strings.Cut(pair, ":")
		if !ok {
			return fmt.Errorf("malformed mint entry %q", pair)
		}
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("mint entry %q: %w", pair, err)
		}
		custodian.MintItem(id, token.Address(addr))
	}
	return nil
}

// eventFeed fans marketplace events out to websocket subscribers.
type eventFeed struct {
	log      log.Logger
	upgrader websocket.Upgrader
	reg      chan chan market.Event
	unreg    chan chan market.Event
}

func newEventFeed(logger log.Logger) *eventFeed {
	return &eventFeed{
		log: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		reg:   make(chan chan market.Event),
		unreg: make(chan chan market.Event),
	}
}

func (f *eventFeed) run(events <-chan market.Event) {
	subs := make(map[chan market.Event]struct{})
	for {
		select {
		case sub := <-f.reg:
			subs[sub] = struct{}{}
		case sub := <-f.unreg:
			if _, ok := subs[sub]; ok {
				delete(subs, sub)
				close(sub)
			}
		case ev, ok := <-events:
			if !ok {
				for sub := range subs {
					close(sub)
				}
				return
			}
			for sub := range subs {
				select {
				case sub <- ev:
				default: // slow consumer, drop
				}
			}
		}
	}
}

func (f *eventFeed) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	sub := make(chan market.Event, 64)
	f.reg <- sub
	defer func() {
		f.unreg <- sub
		conn.Close()
	}()

	// Drain the read side so close frames are handled.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for ev := range sub {
		payload, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}
