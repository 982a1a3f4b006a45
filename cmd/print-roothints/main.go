// Command print-roothints loads a root hints file (or the compiled-in
// IANA root server list, if no path is given) and prints it sorted by
// name, for inspecting what a resolver would start a recursive walk
// from.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/jroosing/goresolv/internal/roothints"
)

func main() {
	var (
		port    = flag.String("port", "53", "Port to pair with each root address")
		useIPv4 = flag.Bool("ipv4", true, "Include IPv4 root addresses")
		useIPv6 = flag.Bool("ipv6", false, "Include IPv6 root addresses")
	)
	flag.Parse()

	opts := roothints.Options{Port: *port, Timeout: 5 * time.Second, UseIPv4: *useIPv4, UseIPv6: *useIPv6}

	var path string
	if flag.NArg() == 1 {
		path = flag.Arg(0)
	}

	params := roothints.LoadOrCompiled(path, opts)
	sort.Slice(params, func(i, j int) bool {
		if params[i].Name != params[j].Name {
			return params[i].Name < params[j].Name
		}
		return params[i].Addr < params[j].Addr
	})

	for _, p := range params {
		fmt.Printf("%-20s %-22s priority=%d timeout=%s\n", p.Name, p.Addr, p.Priority, p.Timeout)
	}
	if len(params) == 0 {
		fmt.Fprintln(os.Stderr, "no root hints loaded")
		os.Exit(1)
	}
}
