package query

import (
	"net"
	"sort"
	"time"

	"github.com/jroosing/goresolv/internal/agent"
	"github.com/jroosing/goresolv/internal/wire"
)

func sortByPriority(params []agent.Params) {
	sort.SliceStable(params, func(i, j int) bool { return params[i].Priority < params[j].Priority })
}

// filterRR returns the subset of rrs owned by name with the given type.
func filterRR(rrs []wire.RR, name wire.Name, rtype wire.RecordType) []wire.RR {
	var out []wire.RR
	for _, rr := range rrs {
		if rr.Header().Name == name && rr.Type() == rtype {
			out = append(out, rr)
		}
	}
	return out
}

// findCNAME returns the CNAME record owned by name, if any.
func findCNAME(rrs []wire.RR, name wire.Name) *wire.NameRecord {
	for _, rr := range rrs {
		if rr.Type() == wire.TypeCNAME && rr.Header().Name == name {
			if nr, ok := rr.(wire.NameRecord); ok {
				return &nr
			}
		}
	}
	return nil
}

// findNS collects the distinct NS target names carried in an authority
// section (a referral).
func findNS(rrs []wire.RR) []wire.Name {
	seen := map[wire.Name]bool{}
	var out []wire.Name
	for _, rr := range rrs {
		if rr.Type() != wire.TypeNS {
			continue
		}
		nr, ok := rr.(wire.NameRecord)
		if !ok {
			continue
		}
		if !seen[nr.Target] {
			seen[nr.Target] = true
			out = append(out, nr.Target)
		}
	}
	return out
}

// findGlue builds AgentParams for every A/AAAA record in the additional
// section whose owner is one of names (the NS targets from a referral).
func findGlue(rrs []wire.RR, names []wire.Name, port string, timeout time.Duration) []agent.Params {
	wanted := map[wire.Name]bool{}
	for _, n := range names {
		wanted[n] = true
	}
	var out []agent.Params
	for _, rr := range rrs {
		ip, ok := rr.(wire.IPRecord)
		if !ok || !wanted[ip.Header().Name] {
			continue
		}
		out = append(out, agent.Params{
			Addr:    net.JoinHostPort(ip.Addr.String(), port),
			Timeout: timeout,
			Name:    string(ip.Header().Name),
		})
	}
	return out
}

// extractSOAMinimum reads the SOA Minimum field from an authority section,
// which per RFC 2308 caps how long a NAME_ERROR may be negatively cached.
// Returns ok=false if no SOA record is present.
func extractSOAMinimum(rrs []wire.RR) (time.Duration, bool) {
	for _, rr := range rrs {
		if soa, ok := rr.(wire.SOARecord); ok {
			return time.Duration(soa.Minimum) * time.Second, true
		}
	}
	return 0, false
}

// ipAgentParams turns resolved A/AAAA records into dialable upstreams.
func ipAgentParams(rrs []wire.RR, name string, port string, timeout time.Duration) []agent.Params {
	var out []agent.Params
	for _, rr := range rrs {
		ip, ok := rr.(wire.IPRecord)
		if !ok {
			continue
		}
		out = append(out, agent.Params{
			Addr:    net.JoinHostPort(ip.Addr.String(), port),
			Timeout: timeout,
			Name:    name,
		})
	}
	return out
}
