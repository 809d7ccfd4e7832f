package reputation

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/straja-ai/adaware/internal/scoring"
	"github.com/straja-ai/adaware/internal/signals"
)

// Flags reported by Check.
const (
	FlagNotHTTPS       = "Not HTTPS"
	FlagLongDomain     = "Very long domain name"
	FlagManyHyphens    = "Excessive hyphens in domain"
	FlagPunycode       = "Punycode domain (possible spoofing)"
	suspiciousTLDFlagF = "Suspicious TLD (%s)"
)

const (
	maxDomainLen  = 30
	maxHyphens    = 3
	punycodeLabel = "xn--"
)

var (
	spammyTLDs    = []string{".xyz", ".top", ".club", ".info", ".biz"}
	internalHosts = map[string]bool{"WebDashboard": true, "localhost": true, "127.0.0.1": true}
)

// Check derives reputation facts from the page URL. An empty URL yields a
// reputation with no domain and no flags.
func Check(rawURL string) signals.DomainReputation {
	rep := signals.DomainReputation{}
	target := strings.TrimSpace(rawURL)
	if target == "" {
		return rep
	}

	rep.Domain = domainOf(target)
	switch {
	case strings.HasPrefix(strings.ToLower(target), "https"):
		rep.HTTPS = true
	case internalHosts[rep.Domain]:
		rep.HTTPS = true
	default:
		rep.Flags = append(rep.Flags, FlagNotHTTPS)
	}

	if rep.Domain == "" {
		return rep
	}
	lower := strings.ToLower(rep.Domain)
	if len(rep.Domain) > maxDomainLen {
		rep.Flags = append(rep.Flags, FlagLongDomain)
	}
	if strings.Count(rep.Domain, "-") > maxHyphens {
		rep.Flags = append(rep.Flags, FlagManyHyphens)
	}
	for _, tld := range spammyTLDs {
		if strings.HasSuffix(lower, tld) {
			rep.Flags = append(rep.Flags, fmt.Sprintf(suspiciousTLDFlagF, tld))
			break
		}
	}
	if strings.Contains(lower, punycodeLabel) {
		rep.Flags = append(rep.Flags, FlagPunycode)
	}
	return rep
}

func domainOf(target string) string {
	if !strings.HasPrefix(target, "http") {
		if internalHosts[target] || strings.Contains(target, "extension") {
			return target
		}
		target = "http://" + target
	}
	u, err := url.Parse(target)
	if err != nil {
		return ""
	}
	return u.Host
}

// Trust grades a reputation. Configured trusted domains and their
// subdomains are trusted, any flag makes the domain suspicious, otherwise
// it is neutral. A nil reputation is neutral.
func Trust(rep *signals.DomainReputation, trusted []string) scoring.DomainTrust {
	if rep == nil {
		return scoring.DomainNeutral
	}
	host := strings.ToLower(rep.Domain)
	if i := strings.LastIndex(host, ":"); i > 0 && !strings.Contains(host[i:], "]") {
		host = host[:i]
	}
	for _, d := range trusted {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" && host != "" && (host == d || strings.HasSuffix(host, "."+d)) {
			return scoring.DomainTrusted
		}
	}
	if len(rep.Flags) > 0 {
		return scoring.DomainSuspicious
	}
	return scoring.DomainNeutral
}
