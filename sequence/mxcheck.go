package sequence

import (
	"context"
	"fmt"

	"github.com/miekg/dns"
)

// DNSMXChecker implements MXChecker against a resolver address using
// miekg/dns directly, rather than net.LookupMX, so the lookup can carry a
// deadline derived from ctx instead of the stdlib resolver's own timeout.
type DNSMXChecker struct {
	Resolver string // e.g. "1.1.1.1:53"
}

func (c *DNSMXChecker) HasMX(ctx context.Context, domain string) (bool, error) {
	resolver := c.Resolver
	if resolver == "" {
		resolver = "1.1.1.1:53"
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domain), dns.TypeMX)

	client := new(dns.Client)
	reply, _, err := client.ExchangeContext(ctx, msg, resolver)
	if err != nil {
		return false, fmt.Errorf("dns exchange: %w", err)
	}
	if reply == nil || reply.Rcode != dns.RcodeSuccess {
		return false, nil
	}

	for _, rr := range reply.Answer {
		if _, ok := rr.(*dns.MX); ok {
			return true, nil
		}
	}
	return false, nil
}
