package acquire

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/samber/lo"
)

const (
	ProxyModeOff       = "off"
	ProxyModePerWorker = "per_worker"
)

func NormalizeProxyMode(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", ProxyModeOff:
		return ProxyModeOff, nil
	case ProxyModePerWorker, "per-worker":
		return ProxyModePerWorker, nil
	default:
		return "", fmt.Errorf("invalid proxy mode %q (expected off or per_worker)", raw)
	}
}

// NormalizeProxyList trims, drops blanks and duplicates, and rejects entries
// that are not absolute URLs.
func NormalizeProxyList(raw []string) ([]string, error) {
	out := lo.Uniq(lo.Filter(lo.Map(raw, func(p string, _ int) string {
		return strings.TrimSpace(p)
	}), func(p string, _ int) bool {
		return p != ""
	}))
	for _, p := range out {
		u, err := url.Parse(p)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid proxy %q (expected scheme://host:port)", p)
		}
	}
	return out, nil
}

// proxyForWorker pins worker N to proxy N. Workers beyond the list go direct.
func proxyForWorker(workerID int, mode string, proxies []string) string {
	if mode != ProxyModePerWorker {
		return ""
	}
	if workerID <= 0 || workerID > len(proxies) {
		return ""
	}
	return proxies[workerID-1]
}
