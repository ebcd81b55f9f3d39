package probe

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"
)

// DNS classes appended to failed probes as "dns=<class>".
const (
	DNSResolves     = "RESOLVES"
	DNSNXDomain     = "NXDOMAIN"
	DNSNoARecord    = "NO_A_RECORD"
	DNSServFail     = "SERVFAIL_or_TIMEOUT"
	DNSInvalidName  = "INVALID_NAME"
	dnsLookupBudget = 3 * time.Second
)

// Resolver is the subset of *net.Resolver used for diagnosis.
type Resolver interface {
	LookupIP(ctx context.Context, network, host string) ([]net.IP, error)
	LookupCNAME(ctx context.Context, host string) (string, error)
	LookupNS(ctx context.Context, name string) ([]*net.NS, error)
}

type DNSStatus struct {
	Domain        string
	IPs           []net.IP
	CNAME         string
	Nameservers   []string
	Class         string
	ResolverError string
}

// CheckDNS diagnoses host with the system resolver.
func CheckDNS(ctx context.Context, host string) DNSStatus {
	return Diagnose(ctx, net.DefaultResolver, host)
}

// Diagnose explains why host might be unreachable. IP literals always
// resolve. A name with nameservers but no addresses is NO_A_RECORD.
func Diagnose(ctx context.Context, r Resolver, host string) DNSStatus {
	st := DNSStatus{Domain: strings.TrimSpace(host)}
	if st.Domain == "" || strings.Contains(st.Domain, "://") {
		st.Class = DNSInvalidName
		return st
	}
	if ip := net.ParseIP(st.Domain); ip != nil {
		st.IPs, st.Class = []net.IP{ip}, DNSResolves
		return st
	}

	ctx, cancel := context.WithTimeout(ctx, dnsLookupBudget)
	defer cancel()

	ips, ipErr := r.LookupIP(ctx, "ip", st.Domain)
	if ipErr != nil {
		st.ResolverError = ipErr.Error()
	}
	st.IPs = ips

	if cname, err := r.LookupCNAME(ctx, st.Domain); err == nil {
		if c := strings.TrimSuffix(cname, "."); !strings.EqualFold(c, st.Domain) {
			st.CNAME = c
		}
	}
	if ns, err := r.LookupNS(ctx, st.Domain); err == nil {
		for _, n := range ns {
			st.Nameservers = append(st.Nameservers, strings.TrimSuffix(n.Host, "."))
		}
	}

	st.Class = classify(len(st.IPs) > 0, len(st.Nameservers) > 0, ipErr)
	return st
}

func classify(hasAddr, hasNS bool, err error) string {
	if hasAddr {
		return DNSResolves
	}
	if hasNS {
		return DNSNoARecord
	}
	var de *net.DNSError
	switch {
	case err == nil:
		return DNSNXDomain
	case errors.As(err, &de) && de.IsNotFound:
		return DNSNXDomain
	default:
		return DNSServFail
	}
}

// HostOf pulls the hostname from a URL string.
func HostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return u.Hostname()
}
