package acquire

import (
	"slices"
	"testing"
)

func TestProxyForWorker(t *testing.T) {
	proxies := []string{"http://p1:8080", "http://p2:8080"}
	if got := proxyForWorker(1, ProxyModePerWorker, proxies); got != proxies[0] {
		t.Fatalf("worker 1 proxy mismatch: got %q want %q", got, proxies[0])
	}
	if got := proxyForWorker(2, ProxyModePerWorker, proxies); got != proxies[1] {
		t.Fatalf("worker 2 proxy mismatch: got %q want %q", got, proxies[1])
	}
	if got := proxyForWorker(3, ProxyModePerWorker, proxies); got != "" {
		t.Fatalf("expected direct connection beyond proxy list, got %q", got)
	}
	if got := proxyForWorker(1, ProxyModeOff, proxies); got != "" {
		t.Fatalf("expected empty proxy for off mode, got %q", got)
	}
}

func TestNormalizeProxyList(t *testing.T) {
	got, err := NormalizeProxyList([]string{" http://p1:8080 ", "", "http://p1:8080", "socks5://p2:1080"})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"http://p1:8080", "socks5://p2:1080"}
	if !slices.Equal(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}
