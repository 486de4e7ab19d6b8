// Command synapsestrike is the operator-facing CLI: one-shot scans,
// the long-running paper/live orchestrator, and read-only diagnostics
// (SPEC_FULL.md §6, CLI surface).
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/poorman/synapsestrike-auto/api"
	"github.com/poorman/synapsestrike-auto/internal/config"
	"github.com/poorman/synapsestrike-auto/internal/engine"
	"github.com/poorman/synapsestrike-auto/internal/exec"
	"github.com/poorman/synapsestrike-auto/internal/gateway"
	"github.com/poorman/synapsestrike-auto/internal/logger"
	"github.com/poorman/synapsestrike-auto/internal/notify"
	"github.com/poorman/synapsestrike-auto/internal/risk"
	"github.com/poorman/synapsestrike-auto/internal/scanner"
	"github.com/poorman/synapsestrike-auto/internal/signals"
	"github.com/poorman/synapsestrike-auto/internal/timeutil"
	"github.com/poorman/synapsestrike-auto/metrics"
	"github.com/poorman/synapsestrike-auto/store"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 1
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "scan":
		return cmdScan(rest)
	case "run":
		return cmdRun(rest)
	case "status":
		return cmdStatus(rest)
	case "health":
		return cmdHealth(rest)
	case "monitor":
		return cmdMonitor(rest)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: synapsestrike <scan|run|status|health|monitor> [flags]")
}

// bootstrap loads the YAML config, environment secrets, and a logger
// shared by every subcommand.
func bootstrap(configPath string) (config.Config, config.EnvironmentConfig, *logger.Logger, error) {
	cfg := config.Defaults()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return cfg, config.EnvironmentConfig{}, nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		return cfg, config.EnvironmentConfig{}, nil, fmt.Errorf("invalid config: %w", err)
	}

	env, err := config.LoadEnvironment("")
	if err != nil {
		return cfg, env, nil, fmt.Errorf("load environment: %w", err)
	}

	level, err := zerolog.ParseLevel(env.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := logger.NewConsole(level)
	return cfg, env, log, nil
}

func buildGateway(cfg config.Config, env config.EnvironmentConfig, log *logger.Logger) gateway.Gateway {
	timeout := time.Duration(cfg.Exchange.TimeoutSeconds) * time.Second
	return gateway.NewREST(cfg.Exchange.BaseURL, env.UpbitAccessKey, env.UpbitSecretKey, timeout, cfg.Exchange.MaxRetries, cfg.Exchange.RetryBackoff, log)
}

func buildSignalManager(cfg config.Config) (*signals.Manager, error) {
	var strategies []signals.Strategy

	if cfg.Signals.ORB.Use {
		orb, err := signals.NewORB(cfg.Signals.ORB)
		if err != nil {
			return nil, fmt.Errorf("build orb strategy: %w", err)
		}
		strategies = append(strategies, orb)
	}
	if cfg.Signals.SVWAPPullback.Use {
		svwap, err := signals.NewSVWAPPullback(cfg.Signals.SVWAPPullback)
		if err != nil {
			return nil, fmt.Errorf("build svwap strategy: %w", err)
		}
		strategies = append(strategies, svwap)
	}
	if cfg.Signals.SweepReversal.Use {
		sweep, err := signals.NewSweep(cfg.Signals.SweepReversal)
		if err != nil {
			return nil, fmt.Errorf("build sweep strategy: %w", err)
		}
		strategies = append(strategies, sweep)
	}

	return signals.NewManager(strategies...), nil
}

func buildNotifier(env config.EnvironmentConfig) notify.Notifier {
	if env.TelegramBotToken == "" || env.TelegramChatID == "" {
		return notify.NoOp()
	}
	return notify.NewTelegram(env.TelegramBotToken, env.TelegramChatID)
}

func cmdScan(args []string) int {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config.yaml")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, env, log, err := bootstrap(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	gw := buildGateway(cfg, env, log)
	sc := scanner.New(cfg, gw, log)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result, err := sc.ScanMarkets(ctx, cfg.Scanner, timeutil.Now())
	if err != nil {
		log.Errorf("scan failed: %v", err)
		return 1
	}

	fmt.Printf("scanned %d markets, %d processed, %d passed filters, %d candidates (%s)\n",
		result.TotalMarkets, result.ProcessedMarkets, result.FilteredMarkets, len(result.Candidates), result.ScanDuration)
	for i, c := range result.Candidates {
		fmt.Printf("  %d. %-10s score=%.3f rvol_z=%.2f trend=%d depth=%.2f\n", i+1, c.Market, c.FinalScore, c.RVOLZ, c.Trend, c.DepthScore)
	}
	return 0
}

func cmdRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config.yaml")
	mode := fs.String("mode", "paper", "paper or live")
	durationMin := fs.Int("duration", 0, "run duration in minutes (0 = until interrupted)")
	stateDir := fs.String("state-dir", "runtime/state", "directory for persisted JSON state")
	journalPath := fs.String("journal", "runtime/trades.db", "path to the sqlite trade journal")
	httpAddr := fs.String("http", "127.0.0.1:8089", "status API bind address, empty to disable")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *mode != "paper" && *mode != "live" {
		fmt.Fprintf(os.Stderr, "mode must be paper or live, got %q\n", *mode)
		return 1
	}

	cfg, env, log, err := bootstrap(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if *mode == "live" && !confirmLiveTrading() {
		fmt.Fprintln(os.Stderr, "live trading not confirmed, aborting")
		return 1
	}

	gw := buildGateway(cfg, env, log)
	sc := scanner.New(cfg, gw, log)

	manager, err := buildSignalManager(cfg)
	if err != nil {
		log.Errorf("build signal manager: %v", err)
		return 1
	}

	notif := buildNotifier(env)
	guard := risk.NewGuard(cfg.Risk, log, notif)

	var executor exec.Executor
	isPaper := *mode == "paper"
	if isPaper {
		executor = exec.NewPaper(cfg.Orders, log)
	} else {
		executor = exec.NewLive(gw, cfg.Orders, log)
	}

	fileStore, err := store.NewFileStore(*stateDir, log)
	if err != nil {
		log.Errorf("open state store: %v", err)
		return 1
	}
	journal, err := store.OpenTradeJournal(*journalPath)
	if err != nil {
		log.Errorf("open trade journal: %v", err)
		return 1
	}
	defer journal.Close()

	sys := engine.New(cfg, gw, sc, manager, guard, executor, fileStore, journal, notif, log, isPaper)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *durationMin > 0 {
		go func() {
			timer := time.NewTimer(time.Duration(*durationMin) * time.Minute)
			defer timer.Stop()
			select {
			case <-timer.C:
				sys.Stop()
			case <-ctx.Done():
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Infof("shutdown signal received")
		sys.Stop()
	}()

	if *httpAddr != "" {
		metrics.Init()
		srv := api.NewServer(sys)
		go func() {
			if err := http.ListenAndServe(*httpAddr, srv.Handler()); err != nil {
				log.Warnf("status API exited: %v", err)
			}
		}()
	}

	if err := sys.Initialize(ctx); err != nil {
		log.Errorf("initialize: %v", err)
		return 1
	}

	if err := sys.RunTradingLoop(ctx); err != nil && ctx.Err() == nil {
		log.Errorf("trading loop exited with error: %v", err)
		return 1
	}
	return 0
}

// confirmLiveTrading requires the operator to type the literal phrase
// twice before trading with real funds begins.
func confirmLiveTrading() bool {
	const phrase = "I understand the risk"
	fmt.Printf("Live trading requires real funds. Type %q twice to continue.\n", phrase)
	reader := bufio.NewReader(os.Stdin)
	for i := 0; i < 2; i++ {
		fmt.Printf("[%d/2] > ", i+1)
		line, err := reader.ReadString('\n')
		if err != nil {
			return false
		}
		if trimNewline(line) != phrase {
			return false
		}
	}
	return true
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func cmdStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	addr := fs.String("addr", "http://127.0.0.1:8089", "status API base URL")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	return fetchAndPrint(*addr + "/status")
}

func cmdHealth(args []string) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	addr := fs.String("addr", "http://127.0.0.1:8089", "status API base URL")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	return fetchAndPrint(*addr + "/health")
}

func cmdMonitor(args []string) int {
	fs := flag.NewFlagSet("monitor", flag.ContinueOnError)
	addr := fs.String("addr", "http://127.0.0.1:8089", "status API base URL")
	interval := fs.Duration("interval", 30*time.Second, "poll interval")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		if code := fetchAndPrint(*addr + "/risk"); code != 0 {
			return code
		}
		select {
		case <-ticker.C:
		case <-sigCh:
			return 0
		}
	}
}

func fetchAndPrint(url string) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		fmt.Fprintf(os.Stderr, "request to %s failed: %s\n", url, resp.Status)
		return 1
	}
	if _, err := io.Copy(os.Stdout, resp.Body); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println()
	return 0
}
