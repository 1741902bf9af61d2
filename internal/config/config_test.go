package config

import "testing"

func TestValidateAcceptsLoopbackHost(t *testing.T) {
	c := &Config{Host: "127.0.0.1", Port: 8756}
	if err := c.Validate(); err != nil {
		t.Errorf("expected loopback host to validate, got %v", err)
	}
}

func TestValidateRejectsNonLoopbackHost(t *testing.T) {
	c := &Config{Host: "0.0.0.0", Port: 8756}
	if err := c.Validate(); err == nil {
		t.Error("expected a non-loopback host to be rejected")
	}
}

func TestValidateRejectsOutOfRangePort(t *testing.T) {
	c := &Config{Host: "127.0.0.1", Port: 70000}
	if err := c.Validate(); err == nil {
		t.Error("expected an out-of-range port to be rejected")
	}
}

func TestAddrFormatsHostPort(t *testing.T) {
	c := &Config{Host: "127.0.0.1", Port: 8756}
	if got := c.Addr(); got != "127.0.0.1:8756" {
		t.Errorf("got %q want %q", got, "127.0.0.1:8756")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	c := Load()
	if c.Host != defaultHost {
		t.Errorf("got host %q want %q", c.Host, defaultHost)
	}
	if c.Port != defaultPort {
		t.Errorf("got port %d want %d", c.Port, defaultPort)
	}
	if c.Mode != ModeProd {
		t.Errorf("expected production mode by default, got %q", c.Mode)
	}
}

func TestIsDev(t *testing.T) {
	c := &Config{Mode: ModeDev}
	if !c.IsDev() {
		t.Error("expected IsDev to be true for ModeDev")
	}
	c.Mode = ModeProd
	if c.IsDev() {
		t.Error("expected IsDev to be false for ModeProd")
	}
}
