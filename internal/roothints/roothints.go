// Package roothints loads the set of upstreams a recursive Query Engine
// bootstraps from when it has no cached delegation for a name: either the
// compiled-in IANA root server list, or a "name IP" text file supplied at
// startup, grounded on the teacher's internal/zone line-oriented file
// loading (read whole file, split into logical lines, parse each field,
// skip blank/comment lines) reworked for a two-column format instead of
// zone-file syntax.
package roothints

import (
	"bufio"
	"fmt"
	"net"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/jroosing/goresolv/internal/agent"
)

const defaultPort = "53"

// dnsRoot pairs a root server's hostname with its IPv4 and IPv6 literal,
// taken from the IANA root server list.
type dnsRoot struct {
	name string
	ipv4 string
	ipv6 string
}

// compiledIn is the 13 lettered root servers (A-M), compiled in so
// recursive mode works with zero external configuration.
var compiledIn = []dnsRoot{
	{"a.root-servers.net", "198.41.0.4", "2001:503:ba3e::2:30"},
	{"b.root-servers.net", "170.247.170.2", "2801:1b8:10::b"},
	{"c.root-servers.net", "192.33.4.12", "2001:500:2::c"},
	{"d.root-servers.net", "199.7.91.13", "2001:500:2d::d"},
	{"e.root-servers.net", "192.203.230.10", "2001:500:a8::e"},
	{"f.root-servers.net", "192.5.5.241", "2001:500:2f::f"},
	{"g.root-servers.net", "192.112.36.4", "2001:500:12::d0d"},
	{"h.root-servers.net", "198.97.190.53", "2001:500:1::53"},
	{"i.root-servers.net", "192.36.148.17", "2001:7fe::53"},
	{"j.root-servers.net", "192.58.128.30", "2001:503:c27::2:30"},
	{"k.root-servers.net", "193.0.14.129", "2001:7fd::1"},
	{"l.root-servers.net", "199.7.83.42", "2001:500:9f::42"},
	{"m.root-servers.net", "202.12.27.33", "2001:dc3::35"},
}

// Options configures how hints are built.
type Options struct {
	Port    string        // "53" if empty
	Timeout time.Duration // per-upstream dial/query timeout
	UseIPv4 bool
	UseIPv6 bool
}

func (o Options) normalized() Options {
	if o.Port == "" {
		o.Port = defaultPort
	}
	if !o.UseIPv4 && !o.UseIPv6 {
		o.UseIPv4 = true
	}
	return o
}

// Compiled returns the compiled-in IANA root server list as dialable
// upstreams, in the fixed A-M priority order.
func Compiled(opts Options) []agent.Params {
	opts = opts.normalized()
	var out []agent.Params
	for i, r := range compiledIn {
		if opts.UseIPv4 && r.ipv4 != "" {
			out = append(out, agent.Params{
				Addr:     net.JoinHostPort(r.ipv4, opts.Port),
				Timeout:  opts.Timeout,
				Priority: i,
				Name:     r.name,
			})
		}
		if opts.UseIPv6 && r.ipv6 != "" {
			out = append(out, agent.Params{
				Addr:     net.JoinHostPort(r.ipv6, opts.Port),
				Timeout:  opts.Timeout,
				Priority: i,
				Name:     r.name,
			})
		}
	}
	return out
}

// LoadFile reads a "name IP" hints file, one pair per line, and returns
// the entries as dialable upstreams ordered by their line number. Blank
// lines and lines starting with '#' or ';' are ignored.
func LoadFile(path string, opts Options) ([]agent.Params, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseText(string(b), opts)
}

// ParseText parses the "name IP" hints format directly from text, used by
// LoadFile and exercised directly by tests without touching the
// filesystem.
func ParseText(text string, opts Options) ([]agent.Params, error) {
	opts = opts.normalized()

	var out []agent.Params
	scanner := bufio.NewScanner(strings.NewReader(text))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(stripComment(scanner.Text()))
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("roothints: line %d: expected \"name ip\", got %q", lineNo, line)
		}
		name, rawIP := fields[0], fields[1]
		addr, err := netip.ParseAddr(rawIP)
		if err != nil {
			return nil, fmt.Errorf("roothints: line %d: invalid IP %q: %w", lineNo, rawIP, err)
		}
		if addr.Is4() && !opts.UseIPv4 {
			continue
		}
		if addr.Is6() && !opts.UseIPv6 {
			continue
		}
		out = append(out, agent.Params{
			Addr:     net.JoinHostPort(addr.String(), opts.Port),
			Timeout:  opts.Timeout,
			Priority: lineNo,
			Name:     strings.TrimSuffix(name, "."),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func stripComment(line string) string {
	if i := strings.IndexAny(line, "#;"); i >= 0 {
		return line[:i]
	}
	return line
}

// LoadOrCompiled loads hints from path if it is non-empty, falling back to
// the compiled-in root server list if path is empty or the file cannot be
// read. This is the entry point most callers want: a best-effort external
// override with a working default.
func LoadOrCompiled(path string, opts Options) []agent.Params {
	if path == "" {
		return Compiled(opts)
	}
	hints, err := LoadFile(path, opts)
	if err != nil || len(hints) == 0 {
		return Compiled(opts)
	}
	return hints
}
