package env

import "testing"

func TestPlatformConfigDefaultsToDebug(t *testing.T) {
	if got, want := PlatformConfig("amd64", ""), "amd64-debug"; got != want {
		t.Fatalf("PlatformConfig = %q, want %q", got, want)
	}
}

func TestPlatformConfigHonoursExplicitConfig(t *testing.T) {
	if got, want := PlatformConfig("amd64", "release"), "amd64-release"; got != want {
		t.Fatalf("PlatformConfig = %q, want %q", got, want)
	}
}

func TestDerivedPathsAreRootedAtRoot(t *testing.T) {
	orig := Root
	Root = "/tmp/bakeroot-test"
	defer func() { Root = orig }()

	if got, want := InstallDir(), "/tmp/bakeroot-test/install"; got != want {
		t.Fatalf("InstallDir() = %q, want %q", got, want)
	}
	if got, want := BinDir(), "/tmp/bakeroot-test/bin"; got != want {
		t.Fatalf("BinDir() = %q, want %q", got, want)
	}
	if got, want := CacheDir(), "/tmp/bakeroot-test/cache"; got != want {
		t.Fatalf("CacheDir() = %q, want %q", got, want)
	}
}
