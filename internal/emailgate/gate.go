// Package emailgate restricts sign-up to institutional email domains.
package emailgate

import "strings"

var DefaultDomains = []string{"@uwo.ca"}

// Gate holds a normalized allow-list of email suffixes such as "@uwo.ca".
type Gate struct {
	domains []string
}

func NewGate(domains []string) *Gate {
	g := &Gate{}
	seen := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" || d == "@" {
			continue
		}
		if !strings.HasPrefix(d, "@") {
			d = "@" + d
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		g.domains = append(g.domains, d)
	}
	return g
}

// IsValidSchoolEmail reports whether the trimmed, lower-cased email ends with
// an allowed suffix. It never touches the network.
func (g *Gate) IsValidSchoolEmail(email string) bool {
	if g == nil {
		return false
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	for _, d := range g.domains {
		if strings.HasSuffix(email, d) {
			return true
		}
	}
	return false
}

func (g *Gate) Domains() []string {
	if g == nil {
		return nil
	}
	out := make([]string, len(g.domains))
	copy(out, g.domains)
	return out
}

// EmailDomain returns "@" plus the text after the first "@", or "" when the
// email has no "@".
func EmailDomain(email string) string {
	_, after, ok := strings.Cut(email, "@")
	if !ok {
		return ""
	}
	if i := strings.IndexByte(after, '@'); i >= 0 {
		after = after[:i]
	}
	return "@" + after
}
