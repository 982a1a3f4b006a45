// Command resolve is a CLI front end for internal/resolver: by default it
// runs a single lookup and prints the answer, in the spirit of a
// dig/dnsquery-style diagnostic tool; with -serve it instead starts a
// long-lived resolver plus its optional status API, run until signaled.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jroosing/goresolv/internal/agent"
	"github.com/jroosing/goresolv/internal/config"
	"github.com/jroosing/goresolv/internal/logging"
	"github.com/jroosing/goresolv/internal/resolver"
	"github.com/jroosing/goresolv/internal/statusapi"
	"github.com/jroosing/goresolv/internal/wire"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "resolve: %v\n", err)
		os.Exit(1)
	}
}

// cliFlags holds parsed command-line flag values.
type cliFlags struct {
	configPath string
	servers    string
	name       string
	qtype      string
	timeout    time.Duration
	recursive  bool
	jsonLogs   bool
	debug      bool
	serve      bool
}

func parseFlags() cliFlags {
	var f cliFlags
	flag.StringVar(&f.configPath, "config", "", "Path to YAML config file")
	flag.StringVar(&f.servers, "servers", "", "Comma-separated HOST:PORT upstreams (empty = recursive mode)")
	flag.StringVar(&f.name, "name", "example.com", "Query name")
	flag.StringVar(&f.qtype, "qtype", "A", "Query type (A, AAAA, NS, CNAME, MX, TXT, SOA, or numeric)")
	flag.DurationVar(&f.timeout, "timeout", 5*time.Second, "Per-query timeout")
	flag.BoolVar(&f.recursive, "recursive", false, "Force recursive mode even with -servers set")
	flag.BoolVar(&f.jsonLogs, "json-logs", false, "Enable JSON structured logging")
	flag.BoolVar(&f.debug, "debug", false, "Enable debug logging")
	flag.BoolVar(&f.serve, "serve", false, "Run as a long-lived resolver with the status API, instead of one lookup")
	flag.Parse()
	return f
}

func applyCLIOverrides(cfg *config.Config, f cliFlags) {
	if f.servers != "" {
		cfg.Upstreams = splitAndTrim(f.servers)
	}
	if f.jsonLogs {
		cfg.Logging.Structured = true
		cfg.Logging.StructuredFormat = "json"
	}
	if f.debug {
		cfg.Logging.Level = "DEBUG"
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func run() error {
	flags := parseFlags()

	cfg, err := config.Load(config.ResolveConfigPath(flags.configPath))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyCLIOverrides(cfg, flags)

	logger := logging.Configure(logging.Config{
		Level:            cfg.Logging.Level,
		Structured:       cfg.Logging.Structured,
		StructuredFormat: cfg.Logging.StructuredFormat,
		IncludePID:       cfg.Logging.IncludePID,
		ExtraFields:      cfg.Logging.ExtraFields,
	})

	upstreams := upstreamParams(cfg.Upstreams, cfg.DNSPort, flags.timeout)

	res := resolver.New(resolver.Config{
		Upstreams:         upstreams,
		RootHintsPath:     cfg.RootHintsPath,
		WorkerThreads:     cfg.WorkerThreads,
		UDPBufferBytes:    cfg.UDPBufferBytes,
		PositiveCacheCapS: cfg.PositiveCacheCapS,
		NegativeCacheCapS: cfg.NegativeCacheCapS,
		MaxCNAMEChain:     cfg.MaxCNAMEChain,
		UseIPv4:           cfg.UseIPv4,
		UseIPv6:           cfg.UseIPv6,
		QueryTimeout:      time.Duration(cfg.QueryTimeoutMS) * time.Millisecond,
		DNSPort:           cfg.DNSPort,
		Logger:            logger,
	})
	defer res.Close()

	if flags.serve {
		return serve(res, cfg, logger)
	}
	return lookupOnce(res, flags)
}

func serve(res *resolver.Resolver, cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if !cfg.StatusAPI.Enabled {
		logger.Info("resolver running without status API", "upstreams", len(cfg.Upstreams))
		<-ctx.Done()
		return nil
	}

	srv := statusapi.New(statusapi.Config{
		Host:   cfg.StatusAPI.Host,
		Port:   cfg.StatusAPI.Port,
		APIKey: cfg.StatusAPI.APIKey,
	}, res, logger)

	logger.Info("status api starting", "addr", srv.Addr())
	go func() {
		if serveErr := srv.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
			logger.Error("status api error", "err", serveErr)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Info("status api stopped")
	return nil
}

func lookupOnce(res *resolver.Resolver, f cliFlags) error {
	name, err := wire.NewName(f.name)
	if err != nil {
		return fmt.Errorf("invalid name %q: %w", f.name, err)
	}
	qtype, err := parseQType(f.qtype)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.timeout+time.Second)
	defer cancel()

	o := res.Resolve(ctx, wire.Question{Name: name, Type: qtype, Class: wire.ClassIN}, resolver.Options{
		Recursive: f.recursive,
		Timeout:   f.timeout,
	})

	if !o.Ok() {
		return fmt.Errorf("resolution failed: %s", o.Err.Kind)
	}

	rows := make([]string, 0, len(o.Answers))
	for _, rr := range o.Answers {
		rows = append(rows, formatRR(rr))
	}
	sort.Strings(rows)
	fmt.Printf("; answers=%d authorities=%d additionals=%d\n", len(o.Answers), len(o.Authorities), len(o.Additional))
	for _, row := range rows {
		fmt.Println(row)
	}
	return nil
}

func upstreamParams(servers []string, port string, timeout time.Duration) []agent.Params {
	if len(servers) == 0 {
		return nil
	}
	params := make([]agent.Params, 0, len(servers))
	for i, s := range servers {
		addr := s
		if !strings.Contains(addr, ":") {
			addr = addr + ":" + port
		}
		params = append(params, agent.Params{Addr: addr, Timeout: timeout, Priority: i})
	}
	return params
}

func parseQType(s string) (wire.RecordType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "A":
		return wire.TypeA, nil
	case "AAAA":
		return wire.TypeAAAA, nil
	case "NS":
		return wire.TypeNS, nil
	case "CNAME":
		return wire.TypeCNAME, nil
	case "MX":
		return wire.TypeMX, nil
	case "TXT":
		return wire.TypeTXT, nil
	case "SOA":
		return wire.TypeSOA, nil
	case "PTR":
		return wire.TypePTR, nil
	default:
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("unrecognized query type %q", s)
		}
		return wire.RecordType(n), nil
	}
}

func formatRR(rr wire.RR) string {
	h := rr.Header()
	switch r := rr.(type) {
	case wire.IPRecord:
		return r.String()
	case wire.NameRecord:
		return fmt.Sprintf("%s %d IN %v %s", h.Name, h.TTL, r.T, r.Target)
	case wire.MXRecord:
		return fmt.Sprintf("%s %d IN MX %d %s", h.Name, h.TTL, r.Preference, r.Exchange)
	case wire.TXTRecord:
		return fmt.Sprintf("%s %d IN TXT %q", h.Name, h.TTL, strings.Join(r.Strings, ""))
	case wire.SOARecord:
		return fmt.Sprintf("%s %d IN SOA %s %s %d %d %d %d %d",
			h.Name, h.TTL, r.MName, r.RName, r.Serial, r.Refresh, r.Retry, r.Expire, r.Minimum)
	default:
		return fmt.Sprintf("%s %d IN %v (unformatted)", h.Name, h.TTL, rr.Type())
	}
}
