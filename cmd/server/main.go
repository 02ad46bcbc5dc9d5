package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"basedfrenzy.com/internal/config"
	"basedfrenzy.com/internal/economy"
	"basedfrenzy.com/internal/game"
	"basedfrenzy.com/internal/hub"
	"basedfrenzy.com/internal/persistence/journal"
	"basedfrenzy.com/internal/persistence/store"
	"basedfrenzy.com/internal/transport/httpapi"
	"basedfrenzy.com/internal/transport/ws"
	"basedfrenzy.com/internal/web3"
)

func main() {
	var (
		addr       = flag.String("addr", "", "http listen address (overrides config)")
		configPath = flag.String("config", "./configs/server.yaml", "path to server.yaml")
		dataDir    = flag.String("data", "", "runtime data directory (overrides config)")
		seed       = flag.Int64("seed", 0, "loot rng seed (0 = time-based)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if strings.TrimSpace(*addr) != "" {
		cfg.Listen = strings.TrimSpace(*addr)
	}
	if strings.TrimSpace(*dataDir) != "" {
		cfg.DataDir = strings.TrimSpace(*dataDir)
	}
	if v := strings.TrimSpace(os.Getenv("FRENZY_RPC_URL")); v != "" {
		cfg.Rail.RPCURL = v
	}
	if v := strings.TrimSpace(os.Getenv("FRENZY_PAYOUT_WALLET")); v != "" {
		cfg.Rail.PayoutWallet = v
	}

	ctx, cancel := signalContext()
	defer cancel()

	st, err := store.Open(filepath.Join(cfg.DataDir, "frenzy.db"))
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}
	defer st.Close()

	jr := journal.New(cfg.DataDir)
	defer jr.Close()

	var rail web3.Rail = web3.Disabled{}
	if cfg.Rail.RPCURL != "" {
		client, err := web3.Dial(ctx, web3.Config{
			RPCURL:        cfg.Rail.RPCURL,
			TokenAddress:  cfg.Rail.TokenAddress,
			PrivateKeyHex: cfg.Rail.PrivateKey(),
			TokenDecimals: cfg.Rail.TokenDecimals,
			CallTimeout:   cfg.Rail.Timeout(),
			Retries:       cfg.Rail.Retries,
		}, logger)
		if err != nil {
			logger.Fatalf("dial rail: %v", err)
		}
		defer client.Close()
		rail = client
		if cfg.Rail.PayoutWallet == "" {
			cfg.Rail.PayoutWallet = client.PayoutAddress()
		}
		logger.Printf("payment rail connected: %s", cfg.Rail.RPCURL)
	} else {
		logger.Printf("payment rail disabled (no rpc_url); payouts and verification will fail closed")
	}

	var loot *game.LootEngine
	if *seed != 0 {
		loot = game.NewSeededLootEngine(*seed)
	} else {
		loot = game.NewSeededLootEngine(time.Now().UnixNano())
	}

	pipeline := economy.New(st, rail, jr, loot, cfg.Rail.PayoutWallet, logger)

	h := hub.New(
		hub.NewHistory(cfg.Chat.HistoryCap),
		hub.NewRateLimiter(cfg.Chat.RateWindow(), cfg.Chat.RateMax),
		logger,
	)

	mux := http.NewServeMux()
	httpapi.NewServer(st, rail, pipeline, logger).Routes(mux)
	mux.HandleFunc("/ws", ws.NewServer(h, st, logger).Handler())

	if envBool("FRENZY_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           cors(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", cfg.Listen)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

// cors is the permissive browser-facing policy for the game frontend.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func envBool(name string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
