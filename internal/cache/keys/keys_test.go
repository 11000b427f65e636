package keys

import (
	"regexp"
	"strings"
	"testing"
	"unicode"
)

func TestDeterminism_SameInputsSameKey(t *testing.T) {
	k1 := Response("/api/v1/viirs-active-fires/admin/BRA/1", "period=2020-04-22,2020-04-23")
	k2 := Response("/api/v1/viirs-active-fires/admin/BRA/1", "period=2020-04-22,2020-04-23")
	if k1 != k2 {
		t.Fatalf("determinism failed:\n k1=%s\n k2=%s", k1, k2)
	}
	if !strings.HasPrefix(k1, Prefix+"api:v1:viirs-active-fires:admin:BRA:1:h=") {
		t.Fatalf("unexpected key shape: %s", k1)
	}
}

func TestNormalization_QueryOrderIgnored(t *testing.T) {
	k1 := Response("/api/v2/viirs-active-fires", "geostore=abc&period=2020-04-22,2020-04-29")
	k2 := Response("/api/v2/viirs-active-fires", "period=2020-04-22,2020-04-29&geostore=abc")
	if k1 != k2 {
		t.Fatalf("normalized keys differ:\n k1=%s\n k2=%s", k1, k2)
	}
	if !regexp.MustCompile(`^[A-Za-z0-9:_=.\-]+$`).MatchString(k1) {
		t.Fatalf("key contains disallowed characters: %s", k1)
	}
}

func TestDifference_DifferentQueriesAreDifferent(t *testing.T) {
	k1 := Response("/api/v1/viirs-active-fires/wdpa/10", "period=2020-04-22,2020-04-23")
	k2 := Response("/api/v1/viirs-active-fires/wdpa/10", "period=2020-04-22,2020-04-24")
	k3 := Response("/api/v2/viirs-active-fires/wdpa/10", "period=2020-04-22,2020-04-23")
	if k1 == k2 || k1 == k3 {
		t.Fatalf("different requests must produce different keys")
	}
}

func TestUnicodeSafety_NoPanicAndHashSuffixPresent(t *testing.T) {
	k := Response("/api/v1/viirs-active-fires/use/Göteborg/雪", "")
	for _, r := range k {
		if r > unicode.MaxASCII {
			t.Fatalf("non-ASCII rune leaked into key: %q in %s", r, k)
		}
	}
	if !regexp.MustCompile(`:h=[0-9a-f]{16}$`).MatchString(k) {
		t.Fatalf("missing or invalid :h=<hex64> suffix in key: %s", k)
	}
}
