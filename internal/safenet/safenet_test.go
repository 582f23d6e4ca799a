package safenet

import (
	"net"
	"testing"
)

func TestIsBlockedIP(t *testing.T) {
	blocked := []string{
		"0.1.2.3", "10.0.0.1", "100.64.0.1", "127.0.0.1", "169.254.1.1",
		"172.16.0.1", "172.31.255.255", "192.0.2.10", "192.168.1.1",
		"198.18.0.1", "198.19.255.255", "224.0.0.1", "240.0.0.1",
		"::", "::1", "fe80::1", "fc00::1", "fd12:3456::1",
	}
	for _, s := range blocked {
		if !IsBlockedIP(net.ParseIP(s)) {
			t.Errorf("IsBlockedIP(%s) = false, want true", s)
		}
	}

	allowed := []string{"1.1.1.1", "8.8.8.8", "93.184.216.34", "172.32.0.1", "2606:4700::1111"}
	for _, s := range allowed {
		if IsBlockedIP(net.ParseIP(s)) {
			t.Errorf("IsBlockedIP(%s) = true, want false", s)
		}
	}
}

func TestAllowedPort(t *testing.T) {
	for _, p := range []int{80, 443, 1024, 8080, 65535} {
		if !AllowedPort(p) {
			t.Errorf("AllowedPort(%d) = false", p)
		}
	}
	for _, p := range []int{0, 22, 25, 1023, 65536} {
		if AllowedPort(p) {
			t.Errorf("AllowedPort(%d) = true", p)
		}
	}
}

func TestValidateHost(t *testing.T) {
	if err := ValidateHost("localhost"); err == nil {
		t.Error("localhost accepted")
	}
	if err := ValidateHost("LOCALHOST"); err == nil {
		t.Error("LOCALHOST accepted")
	}
	if err := ValidateHost("127.0.0.1"); err == nil {
		t.Error("loopback literal accepted")
	}
	if err := ValidateHost(""); err == nil {
		t.Error("empty host accepted")
	}
	if err := ValidateHost("example.com"); err != nil {
		t.Errorf("example.com rejected: %v", err)
	}
	// Hostnames resolving to blocked addresses pass here; DialControl
	// catches them post-DNS.
	if err := ValidateHost("internal.corp"); err != nil {
		t.Errorf("hostname rejected at literal stage: %v", err)
	}
}

func TestSplitHostPort(t *testing.T) {
	host, port, err := SplitHostPort("example.com:8080")
	if err != nil || host != "example.com" || port != 8080 {
		t.Fatalf("SplitHostPort = %q, %d, %v", host, port, err)
	}

	host, port, err = SplitHostPort("[2606:4700::1111]:443")
	if err != nil || host != "2606:4700::1111" || port != 443 {
		t.Fatalf("v6 SplitHostPort = %q, %d, %v", host, port, err)
	}

	for _, target := range []string{
		"example.com",       // no port
		"example.com:0",     // port out of range
		"example.com:22",    // privileged, not allowed
		"10.0.0.1:8080",     // blocked range
		"localhost:8080",    // blocked name
		"example.com:99999", // not a port
	} {
		if _, _, err := SplitHostPort(target); err == nil {
			t.Errorf("SplitHostPort(%q) accepted", target)
		}
	}
}

func TestDialControl(t *testing.T) {
	if err := DialControl("tcp", "93.184.216.34:443", nil); err != nil {
		t.Errorf("public address blocked: %v", err)
	}
	if err := DialControl("tcp", "10.1.2.3:8080", nil); err == nil {
		t.Error("private address allowed")
	}
	if err := DialControl("tcp", "93.184.216.34:22", nil); err == nil {
		t.Error("disallowed port allowed")
	}
	if err := DialControl("tcp", "[::1]:8080", nil); err == nil {
		t.Error("v6 loopback allowed")
	}
}
