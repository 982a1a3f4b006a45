// Command bench load-tests a resolver.Resolver: it fires a fixed number
// of lookups across a fixed number of concurrent callers and reports
// throughput and latency percentiles, exercising the concurrency model
// spec.md section 5 describes (reactor dispatch, worker pool, timeout
// wheel) under concurrent load instead of a single request at a time.
package main

import (
	"context"
	"flag"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jroosing/goresolv/internal/agent"
	"github.com/jroosing/goresolv/internal/resolver"
	"github.com/jroosing/goresolv/internal/wire"
)

func main() {
	var (
		server      = flag.String("server", "", "Upstream HOST:PORT (empty = recursive mode)")
		name        = flag.String("name", "example.com", "Query name")
		qtype       = flag.String("qtype", "A", "Query type (A or AAAA)")
		concurrency = flag.Int("concurrency", 200, "Number of concurrent callers")
		requests    = flag.Int("requests", 20000, "Total number of lookups")
		timeout     = flag.Duration("timeout", 2*time.Second, "Per-lookup timeout")
	)
	flag.Parse()

	qt := wire.TypeA
	if *qtype == "AAAA" {
		qt = wire.TypeAAAA
	}

	var upstreams []agent.Params
	if *server != "" {
		upstreams = []agent.Params{{Addr: *server, Timeout: *timeout}}
	}

	res := resolver.New(resolver.Config{
		Upstreams:     upstreams,
		WorkerThreads: *concurrency,
		QueryTimeout:  *timeout,
	})
	defer res.Close()

	n, err := wire.NewName(*name)
	if err != nil {
		panic(err)
	}
	question := wire.Question{Name: n, Type: qt, Class: wire.ClassIN}

	conc := *concurrency
	if conc < 1 {
		conc = 1
	}
	total := *requests
	if total < 1 {
		total = 1
	}
	per := total / conc
	rem := total % conc

	lat := make([]float64, 0, total)
	var latMu sync.Mutex
	var failures int64

	t0 := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < conc; i++ {
		n := per
		if i < rem {
			n++
		}
		if n <= 0 {
			continue
		}
		wg.Add(1)
		go func(num int) {
			defer wg.Done()
			for j := 0; j < num; j++ {
				start := time.Now()
				ctx, cancel := context.WithTimeout(context.Background(), *timeout)
				o := res.Resolve(ctx, question, resolver.Options{CacheBypass: true})
				cancel()
				if !o.Ok() {
					latMu.Lock()
					failures++
					latMu.Unlock()
					continue
				}
				ms := float64(time.Since(start).Microseconds()) / 1000.0
				latMu.Lock()
				lat = append(lat, ms)
				latMu.Unlock()
			}
		}(n)
	}
	wg.Wait()
	elapsed := time.Since(t0).Seconds()

	if len(lat) == 0 {
		fmt.Printf("no successful requests (failures=%d)\n", failures)
		return
	}
	sort.Float64s(lat)
	p50 := percentile(lat, 50)
	p95 := percentile(lat, 95)
	p99 := percentile(lat, 99)
	qps := float64(len(lat)) / elapsed

	fmt.Printf("name=%q qtype=%s concurrency=%d requests=%d failures=%d\n", *name, *qtype, conc, len(lat), failures)
	fmt.Printf("elapsed_s=%.3f qps=%.1f\n", elapsed, qps)
	fmt.Printf("latency_ms p50=%.3f p95=%.3f p99=%.3f min=%.3f max=%.3f\n", p50, p95, p99, lat[0], lat[len(lat)-1])
}

func percentile(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	idx := int(float64(len(sorted))*float64(p)/100.0) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
