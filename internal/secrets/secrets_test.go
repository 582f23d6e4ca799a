package secrets

import "testing"

func TestResolveStatic(t *testing.T) {
	r := NewResolver(map[string]string{"ops-hook": "hunter2"})
	got, err := r.Resolve("ops-hook")
	if err != nil {
		t.Fatal(err)
	}
	if got != "hunter2" {
		t.Errorf("got %q", got)
	}
}

func TestResolveEnvFallback(t *testing.T) {
	t.Setenv("SECRET_OPS_HOOK", "from-env")

	r := NewResolver(nil)
	got, err := r.Resolve("ops-hook")
	if err != nil {
		t.Fatal(err)
	}
	if got != "from-env" {
		t.Errorf("got %q", got)
	}
}

func TestResolveStaticShadowsEnv(t *testing.T) {
	t.Setenv("SECRET_OPS_HOOK", "from-env")

	r := NewResolver(map[string]string{"ops-hook": "from-map"})
	got, err := r.Resolve("ops-hook")
	if err != nil {
		t.Fatal(err)
	}
	if got != "from-map" {
		t.Errorf("got %q", got)
	}
}

func TestResolveErrors(t *testing.T) {
	r := NewResolver(nil)
	if _, err := r.Resolve(""); err == nil {
		t.Error("empty reference accepted")
	}
	if _, err := r.Resolve("no-such-secret"); err == nil {
		t.Error("missing secret resolved")
	}
}
