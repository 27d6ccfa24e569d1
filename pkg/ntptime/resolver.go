package ntptime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/miekg/dns"
)

var ErrNoAddress = errors.New("no IPv4 address for host")

// Resolver turns a host name into an IPv4 address. A lookup waits for any
// lookup already running on the same resolver to finish first.
type Resolver interface {
	LookupIPv4(ctx context.Context, host string) (net.IP, error)
}

// SystemResolver resolves through the Go resolver (and therefore
// /etc/hosts and the system's nameservers).
type SystemResolver struct {
	lock     sync.Mutex
	Resolver *net.Resolver
}

func NewSystemResolver() *SystemResolver {
	return &SystemResolver{Resolver: net.DefaultResolver}
}

func (r *SystemResolver) LookupIPv4(ctx context.Context, host string) (net.IP, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if ip := net.ParseIP(host).To4(); ip != nil {
		return ip, nil
	}

	ips, err := r.Resolver.LookupIP(ctx, "ip4", host)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", host, err)
	}
	for _, ip := range ips {
		if ip4 := ip.To4(); ip4 != nil && !ip4.IsUnspecified() {
			return ip4, nil
		}
	}
	return nil, fmt.Errorf("resolve %s: %w", host, ErrNoAddress)
}

// DNSResolver sends A queries straight to one nameserver, bypassing the
// system configuration.
type DNSResolver struct {
	lock       sync.Mutex
	client     *dns.Client
	nameserver string
}

const defaultDNSTimeout = 5 * time.Second

// NewDNSResolver queries nameserver ("host" or "host:port", port 53 when
// omitted).
func NewDNSResolver(nameserver string) *DNSResolver {
	if _, _, err := net.SplitHostPort(nameserver); err != nil {
		nameserver = net.JoinHostPort(nameserver, "53")
	}
	return &DNSResolver{
		client:     &dns.Client{Net: "udp", Timeout: defaultDNSTimeout},
		nameserver: nameserver,
	}
}

func (r *DNSResolver) LookupIPv4(ctx context.Context, host string) (net.IP, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if ip := net.ParseIP(host).To4(); ip != nil {
		return ip, nil
	}

	query := new(dns.Msg)
	query.SetQuestion(dns.Fqdn(host), dns.TypeA)
	query.RecursionDesired = true

	response, _, err := r.client.ExchangeContext(ctx, query, r.nameserver)
	if err != nil {
		return nil, fmt.Errorf("resolve %s via %s: %w", host, r.nameserver, err)
	}
	if response.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("resolve %s via %s: %s: %w", host, r.nameserver, dns.RcodeToString[response.Rcode], ErrNoAddress)
	}

	for _, answer := range response.Answer {
		if a, ok := answer.(*dns.A); ok && !a.A.IsUnspecified() {
			debug("resolved", host, "to", a.A, "via", r.nameserver)
			return a.A.To4(), nil
		}
	}
	return nil, fmt.Errorf("resolve %s via %s: %w", host, r.nameserver, ErrNoAddress)
}
