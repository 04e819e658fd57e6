package source

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
)

// fakeExchanger answers per server address.
type fakeExchanger struct {
	responses map[string]*dns.Msg
	errs      map[string]error
	asked     []string
}

func (f *fakeExchanger) ExchangeContext(_ context.Context, _ *dns.Msg, addr string) (*dns.Msg, time.Duration, error) {
	f.asked = append(f.asked, addr)
	if err := f.errs[addr]; err != nil {
		return nil, 0, err
	}
	return f.responses[addr], 0, nil
}

func testSource(ex exchanger) *DNSSource {
	s := NewDNSSource(nil)
	s.exchanger = ex
	return s
}

func txtAnswer(parts ...string) *dns.Msg {
	m := new(dns.Msg)
	m.Rcode = dns.RcodeSuccess
	m.Answer = []dns.RR{&dns.TXT{
		Hdr: dns.RR_Header{Name: "whoami.cloudflare.", Rrtype: dns.TypeTXT, Class: dns.ClassCHAOS},
		Txt: parts,
	}}
	return m
}

func aAnswer(ip string) *dns.Msg {
	m := new(dns.Msg)
	m.Rcode = dns.RcodeSuccess
	m.Answer = []dns.RR{&dns.A{
		Hdr: dns.RR_Header{Name: "myip.opendns.com.", Rrtype: dns.TypeA, Class: dns.ClassINET},
		A:   net.ParseIP(ip),
	}}
	return m
}

func TestPublicIP_FirstResolverAnswers(t *testing.T) {
	ex := &fakeExchanger{responses: map[string]*dns.Msg{
		"1.1.1.1:53": txtAnswer("203.0.113.7"),
	}}
	addr, err := testSource(ex).PublicIP(context.Background())
	if err != nil {
		t.Fatalf("PublicIP: %v", err)
	}
	if addr.String() != "203.0.113.7" {
		t.Errorf("addr = %s", addr)
	}
	if len(ex.asked) != 1 {
		t.Errorf("asked %v, want only the first resolver", ex.asked)
	}
}

func TestPublicIP_FirstResolverFails_FallsBack(t *testing.T) {
	ex := &fakeExchanger{
		errs:      map[string]error{"1.1.1.1:53": errors.New("timeout")},
		responses: map[string]*dns.Msg{"208.67.222.222:53": aAnswer("198.51.100.4")},
	}
	addr, err := testSource(ex).PublicIP(context.Background())
	if err != nil {
		t.Fatalf("PublicIP: %v", err)
	}
	if addr.String() != "198.51.100.4" {
		t.Errorf("addr = %s", addr)
	}
	if len(ex.asked) != 2 {
		t.Errorf("asked %v, want both resolvers", ex.asked)
	}
}

func TestPublicIP_AllResolversFail_Error(t *testing.T) {
	ex := &fakeExchanger{errs: map[string]error{
		"1.1.1.1:53":        errors.New("timeout"),
		"208.67.222.222:53": errors.New("refused"),
	}}
	_, err := testSource(ex).PublicIP(context.Background())
	if err == nil {
		t.Fatal("expected error when every resolver fails")
	}
}

func TestPublicIP_ServFail_TreatedAsFailure(t *testing.T) {
	servfail := new(dns.Msg)
	servfail.Rcode = dns.RcodeServerFailure
	ex := &fakeExchanger{responses: map[string]*dns.Msg{
		"1.1.1.1:53":        servfail,
		"208.67.222.222:53": aAnswer("198.51.100.4"),
	}}
	addr, err := testSource(ex).PublicIP(context.Background())
	if err != nil {
		t.Fatalf("PublicIP: %v", err)
	}
	if addr.String() != "198.51.100.4" {
		t.Errorf("addr = %s", addr)
	}
}

func TestPublicIP_IPv6Answer_Rejected(t *testing.T) {
	ex := &fakeExchanger{
		responses: map[string]*dns.Msg{"1.1.1.1:53": txtAnswer("2001:db8::1")},
		errs:      map[string]error{"208.67.222.222:53": errors.New("refused")},
	}
	_, err := testSource(ex).PublicIP(context.Background())
	if err == nil {
		t.Fatal("an IPv6 answer must not satisfy the IPv4 lookup")
	}
}

func TestExtractTXT_JoinsChunks(t *testing.T) {
	addr, ok := extractTXT(txtAnswer("203.0.", "113.7"))
	if !ok || addr.String() != "203.0.113.7" {
		t.Errorf("got %v %v", addr, ok)
	}
}

func TestExtractTXT_NonAddressText_NotOK(t *testing.T) {
	if _, ok := extractTXT(txtAnswer("not an address")); ok {
		t.Error("expected no address")
	}
}
