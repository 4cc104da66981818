package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/shopspring/decimal"

	"pricenegotiator/internal/config"
	"pricenegotiator/internal/logging"
	"pricenegotiator/internal/negotiator"
	"pricenegotiator/internal/netx"
	"pricenegotiator/internal/quote"
	"pricenegotiator/internal/quote/cache"
	"pricenegotiator/internal/quote/ratelimit"
	"pricenegotiator/internal/wire"
)

const (
	exitOK    = 0
	exitFail  = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("negotiator", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var configPath, host, itemsCSV, budget, onMalformed string
	var port int
	var asJSON bool
	fs.StringVar(&configPath, "config", getenv("NEGOTIATOR_CONFIG", ""), "path to config file (.json, .toml, .yaml)")
	fs.StringVar(&host, "host", "", "pricing peer host (overrides config)")
	fs.IntVar(&port, "port", 0, "pricing peer port (overrides config)")
	fs.StringVar(&itemsCSV, "items", "", "comma-separated items to evaluate, in order")
	fs.StringVar(&budget, "budget", "", "total budget")
	fs.StringVar(&onMalformed, "on-malformed", "", "abort or skip on an unparseable price reply")
	fs.BoolVar(&asJSON, "json", false, "print the summary as JSON")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return exitFail
	}
	if host != "" {
		cfg.Peer.Host = host
	}
	if port != 0 {
		cfg.Peer.Port = port
	}
	if itemsCSV != "" {
		cfg.Shopping.Items = config.SplitCSV(itemsCSV)
	}
	if budget != "" {
		b, err := decimal.NewFromString(strings.TrimSpace(budget))
		if err != nil {
			fmt.Fprintf(stderr, "config: -budget %q: %v\n", budget, err)
			return exitFail
		}
		cfg.Shopping.Budget = b
	}
	if onMalformed != "" {
		cfg.Decision.OnMalformed = onMalformed
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return exitFail
	}

	logger, err := logging.New("negotiator", cfg.Log.Level, cfg.Log.Format, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return exitFail
	}

	// Validate has already checked the policy.
	policy, _ := cfg.MalformedPolicy()

	n := negotiator.New(cfg.Addr(),
		negotiator.WithDialer(netx.New(cfg.DialTimeout())),
		negotiator.WithRule(cfg.Rule()),
		negotiator.WithMalformedPolicy(policy),
		negotiator.WithIOTimeout(cfg.IOTimeout()),
		negotiator.WithLogger(logger),
		negotiator.WithSourceWrapper(pacing(cfg)),
	)

	summary, err := n.Run(ctx, cfg.Shopping.Items, cfg.Shopping.Budget)
	if err != nil {
		var cerr *wire.ConnectionError
		if errors.As(err, &cerr) {
			fmt.Fprintf(stderr, "error: could not connect to pricing peer at %s: %v\n", cerr.Addr, cerr.Err)
		} else {
			fmt.Fprintf(stderr, "error: run aborted: %v\n", err)
		}
		return exitFail
	}

	if asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		err = enc.Encode(summary)
	} else {
		err = summary.WriteText(stdout, cfg.Shopping.Currency)
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: writing summary: %v\n", err)
		return exitFail
	}
	return exitOK
}

// pacing decorates the wire sources. Both tags share one query limiter since
// they share the stream; only the reference source is paced and cached.
func pacing(cfg config.Config) negotiator.SourceWrapper {
	var limiter *ratelimit.QueryLimiter
	if cfg.Pacing.MaxQueriesPerMinute > 0 {
		limiter = ratelimit.PerMinute(cfg.Pacing.MaxQueriesPerMinute, cfg.Pacing.Burst)
	}
	return func(tag wire.Tag, s quote.Source) quote.Source {
		if limiter != nil {
			s = &ratelimit.Limited{P: s, L: limiter}
		}
		if tag != wire.Static {
			return s
		}
		if ttl := cfg.StaticCacheTTL(); ttl > 0 {
			s = &cache.Source{P: s, TTL: ttl, MaxItems: cfg.StaticCache.MaxItems}
		}
		if pause := cfg.Pause(); pause > 0 {
			s = &ratelimit.MinInterval{P: s, Interval: pause}
		}
		return s
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
