// Package source discovers the machine's current public IPv4 address.
// It asks resolver services that echo the caller's address back over
// DNS, which works from behind NAT without any HTTP dependency.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// Source yields the externally-visible address, or an error as the
// absence signal: the sync loop then skips the cycle.
type Source interface {
	PublicIP(ctx context.Context) (netip.Addr, error)
}

// exchanger abstracts dns.Client.ExchangeContext for testability.
type exchanger interface {
	ExchangeContext(ctx context.Context, m *dns.Msg, addr string) (*dns.Msg, time.Duration, error)
}

// query is one resolver service that reports the caller's address.
type query struct {
	name    string
	server  string
	build   func() *dns.Msg
	extract func(*dns.Msg) (netip.Addr, bool)
}

// defaultQueries are tried in order; the first IPv4 answer wins.
func defaultQueries() []query {
	return []query{
		{
			name:   "cloudflare",
			server: "1.1.1.1:53",
			build: func() *dns.Msg {
				m := new(dns.Msg)
				m.SetQuestion("whoami.cloudflare.", dns.TypeTXT)
				m.Question[0].Qclass = dns.ClassCHAOS
				return m
			},
			extract: extractTXT,
		},
		{
			name:   "opendns",
			server: "208.67.222.222:53",
			build: func() *dns.Msg {
				m := new(dns.Msg)
				m.SetQuestion("myip.opendns.com.", dns.TypeA)
				return m
			},
			extract: extractA,
		},
	}
}

// DNSSource resolves the public address through echo resolvers.
type DNSSource struct {
	exchanger exchanger
	queries   []query
	log       *slog.Logger
}

// NewDNSSource returns a Source backed by the default resolver set.
func NewDNSSource(log *slog.Logger) *DNSSource {
	if log == nil {
		log = slog.Default()
	}
	return &DNSSource{
		exchanger: &dns.Client{Timeout: 5 * time.Second},
		queries:   defaultQueries(),
		log:       log,
	}
}

// PublicIP queries the resolvers in order and returns the first IPv4
// answer. All resolvers failing is the absence signal.
func (s *DNSSource) PublicIP(ctx context.Context) (netip.Addr, error) {
	var errs []error
	for _, q := range s.queries {
		addr, err := s.ask(ctx, q)
		if err != nil {
			s.log.Debug("public IP query failed", "resolver", q.name, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", q.name, err))
			continue
		}
		return addr, nil
	}
	return netip.Addr{}, fmt.Errorf("source: no public IPv4 address: %w", errors.Join(errs...))
}

// ask runs a single resolver query.
func (s *DNSSource) ask(ctx context.Context, q query) (netip.Addr, error) {
	resp, _, err := s.exchanger.ExchangeContext(ctx, q.build(), q.server)
	if err != nil {
		return netip.Addr{}, err
	}
	if resp.Rcode != dns.RcodeSuccess {
		return netip.Addr{}, fmt.Errorf("rcode %s", dns.RcodeToString[resp.Rcode])
	}
	addr, ok := q.extract(resp)
	if !ok {
		return netip.Addr{}, errors.New("no IPv4 answer")
	}
	return addr, nil
}

// extractTXT parses the first TXT answer as an IPv4 literal.
func extractTXT(m *dns.Msg) (netip.Addr, bool) {
	for _, rr := range m.Answer {
		txt, ok := rr.(*dns.TXT)
		if !ok {
			continue
		}
		addr, err := netip.ParseAddr(strings.Join(txt.Txt, ""))
		if err == nil && addr.Is4() {
			return addr, true
		}
	}
	return netip.Addr{}, false
}

// extractA returns the first A answer.
func extractA(m *dns.Msg) (netip.Addr, bool) {
	for _, rr := range m.Answer {
		a, ok := rr.(*dns.A)
		if !ok {
			continue
		}
		v4 := a.A.To4()
		if v4 == nil {
			continue
		}
		addr, ok := netip.AddrFromSlice(v4)
		if ok {
			return addr, true
		}
	}
	return netip.Addr{}, false
}
