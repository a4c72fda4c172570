package domain

import (
	"errors"
	"testing"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Target
		wantErr bool
	}{
		{
			name: "Simple",
			raw:  "app:service",
			want: Target{Module: "app", Attribute: "service"},
		},
		{
			name: "Dotted Module",
			raw:  "pkg.app.main:service",
			want: Target{Module: "pkg.app.main", Attribute: "service"},
		},
		{
			name:    "No Separator",
			raw:     "pkg.app.service",
			wantErr: true,
		},
		{
			name:    "Two Separators",
			raw:     "pkg:app:service",
			wantErr: true,
		},
		{
			name:    "Empty Module",
			raw:     ":service",
			wantErr: true,
		},
		{
			name:    "Empty Attribute",
			raw:     "pkg.app:",
			wantErr: true,
		},
		{
			name:    "Empty String",
			raw:     "",
			wantErr: true,
		},
		{
			name:    "Separator Only",
			raw:     ":",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTarget(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseTarget(%q) = %v, want error", tt.raw, got)
				}
				var malformed *MalformedTargetError
				if !errors.As(err, &malformed) {
					t.Fatalf("ParseTarget(%q) error = %T, want *MalformedTargetError", tt.raw, err)
				}
				if malformed.Raw != tt.raw {
					t.Errorf("MalformedTargetError.Raw = %q, want %q", malformed.Raw, tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTarget(%q) unexpected error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("ParseTarget(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestTargetString(t *testing.T) {
	raw := "pkg.app:service"
	target, err := ParseTarget(raw)
	if err != nil {
		t.Fatalf("ParseTarget(%q) unexpected error: %v", raw, err)
	}
	if target.String() != raw {
		t.Errorf("String() = %q, want %q", target.String(), raw)
	}
}

func TestTargetNamespace(t *testing.T) {
	tests := []struct {
		module string
		want   string
	}{
		{"pkg.app.main", "pkg"},
		{"pkg.app", "pkg"},
		{"app", "app"},
	}

	for _, tt := range tests {
		target := Target{Module: tt.module, Attribute: "service"}
		if got := target.Namespace(); got != tt.want {
			t.Errorf("Namespace() for module %q = %q, want %q", tt.module, got, tt.want)
		}
	}
}

func TestTargetIsZero(t *testing.T) {
	if !(Target{}).IsZero() {
		t.Error("zero Target should report IsZero")
	}
	if (Target{Module: "pkg", Attribute: "app"}).IsZero() {
		t.Error("populated Target should not report IsZero")
	}
}
