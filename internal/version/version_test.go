package version_test

import (
	"testing"

	v "github.com/keithlinneman/titiler-go/internal/version"
)

func TestVCSDirtyFromLdflagsWins(t *testing.T) {
	t.Cleanup(func() { v.VCSDirty = nil })

	trueVal := true
	v.VCSDirty = &trueVal
	info := v.Get()
	if info.VCSDirty == nil || *info.VCSDirty != true {
		t.Fatalf("VCSDirty = %v, want true", info.VCSDirty)
	}

	falseVal := false
	v.VCSDirty = &falseVal
	info = v.Get()
	if info.VCSDirty == nil || *info.VCSDirty != false {
		t.Fatalf("VCSDirty = %v, want false", info.VCSDirty)
	}
}

func TestGet_AppName(t *testing.T) {
	if got := v.Get().AppName; got != v.AppName {
		t.Fatalf("AppName = %q, want %q", got, v.AppName)
	}
}

func TestGet_VersionFromLdflags(t *testing.T) {
	prev := v.Version
	t.Cleanup(func() { v.Version = prev })

	v.Version = "1.2.3"
	if got := v.Get().Version; got != "1.2.3" {
		t.Fatalf("Version = %q, want 1.2.3", got)
	}
}
