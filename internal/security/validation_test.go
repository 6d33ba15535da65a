package security

import (
	"strings"
	"testing"
)

func TestValidatePackageName(t *testing.T) {
	tests := []struct {
		name    string
		pkgName string
		wantErr bool
	}{
		{
			name:    "valid simple name",
			pkgName: "busybox",
			wantErr: false,
		},
		{
			name:    "valid with dashes",
			pkgName: "luci-app-firewall",
			wantErr: false,
		},
		{
			name:    "valid with plus",
			pkgName: "libstdc++",
			wantErr: false,
		},
		{
			name:    "valid with dots",
			pkgName: "kmod-fs-ext4.debug",
			wantErr: false,
		},
		{
			name:    "valid single character",
			pkgName: "r",
			wantErr: false,
		},
		{
			name:    "empty name",
			pkgName: "",
			wantErr: true,
		},
		{
			name:    "uppercase rejected",
			pkgName: "BusyBox",
			wantErr: true,
		},
		{
			name:    "underscore rejected",
			pkgName: "my_app",
			wantErr: true,
		},
		{
			name:    "name with spaces",
			pkgName: "app name",
			wantErr: true,
		},
		{
			name:    "name with path traversal",
			pkgName: "../../../etc/passwd",
			wantErr: true,
		},
		{
			name:    "name with absolute path",
			pkgName: "/usr/bin/app",
			wantErr: true,
		},
		{
			name:    "null byte injection",
			pkgName: "app\x00bad",
			wantErr: true,
		},
		{
			name:    "leading dash",
			pkgName: "-app",
			wantErr: true,
		},
		{
			name:    "too long",
			pkgName: strings.Repeat("a", 256),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePackageName(tt.pkgName)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePackageName(%q) error = %v, wantErr %v", tt.pkgName, err, tt.wantErr)
			}
		})
	}
}

func TestValidateVersion(t *testing.T) {
	tests := []struct {
		name    string
		version string
		wantErr bool
	}{
		{
			name:    "simple version",
			version: "1.0",
			wantErr: false,
		},
		{
			name:    "version with revision",
			version: "1.2.3-r4",
			wantErr: false,
		},
		{
			name:    "version with epoch",
			version: "2:1.0-1",
			wantErr: false,
		},
		{
			name:    "version with tilde",
			version: "1.0~rc1",
			wantErr: false,
		},
		{
			name:    "version with plus",
			version: "1.0+git20250101",
			wantErr: false,
		},
		{
			name:    "empty version",
			version: "",
			wantErr: true,
		},
		{
			name:    "version with spaces",
			version: "1.0 beta",
			wantErr: true,
		},
		{
			name:    "version with slash",
			version: "1.0/2",
			wantErr: true,
		},
		{
			name:    "null byte injection",
			version: "1.0\x00",
			wantErr: true,
		},
		{
			name:    "too long",
			version: strings.Repeat("1", 100),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVersion(tt.version)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateVersion(%q) error = %v, wantErr %v", tt.version, err, tt.wantErr)
			}
		})
	}
}

func TestValidateFeedName(t *testing.T) {
	tests := []struct {
		name     string
		feedName string
		wantErr  bool
	}{
		{
			name:     "simple name",
			feedName: "main",
			wantErr:  false,
		},
		{
			name:     "name with separators",
			feedName: "openwrt_core-23.05",
			wantErr:  false,
		},
		{
			name:     "empty name",
			feedName: "",
			wantErr:  true,
		},
		{
			name:     "name with slash",
			feedName: "feeds/main",
			wantErr:  true,
		},
		{
			name:     "name with spaces",
			feedName: "my feed",
			wantErr:  true,
		},
		{
			name:     "too long",
			feedName: strings.Repeat("f", 65),
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFeedName(tt.feedName)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFeedName(%q) error = %v, wantErr %v", tt.feedName, err, tt.wantErr)
			}
		})
	}
}

func TestValidateExtractPath(t *testing.T) {
	tests := []struct {
		name    string
		entry   string
		wantErr bool
	}{
		{
			name:    "plain relative path",
			entry:   "usr/bin/hello",
			wantErr: false,
		},
		{
			name:    "dot-prefixed path",
			entry:   "./etc/config",
			wantErr: false,
		},
		{
			name:    "parent traversal",
			entry:   "../escape",
			wantErr: true,
		},
		{
			name:    "nested traversal",
			entry:   "usr/../../escape",
			wantErr: true,
		},
		{
			name:    "absolute path",
			entry:   "/etc/passwd",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateExtractPath("/tmp/extract", tt.entry)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateExtractPath(%q) error = %v, wantErr %v", tt.entry, err, tt.wantErr)
			}
		})
	}
}

func TestValidateSymlink(t *testing.T) {
	tests := []struct {
		name    string
		link    string
		target  string
		wantErr bool
	}{
		{
			name:    "relative target inside",
			link:    "/root/bin/sh",
			target:  "busybox",
			wantErr: false,
		},
		{
			name:    "target climbs within root",
			link:    "/root/usr/bin/vi",
			target:  "../../bin/busybox",
			wantErr: false,
		},
		{
			name:    "absolute target resolved against link directory",
			link:    "/root/usr/bin/vi",
			target:  "/bin/busybox",
			wantErr: false,
		},
		{
			name:    "target escapes root",
			link:    "/root/bin/evil",
			target:  "../../etc/passwd",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSymlink("/root", tt.link, tt.target)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSymlink(%q -> %q) error = %v, wantErr %v", tt.link, tt.target, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	if err := ValidatePath("/usr/bin/hello"); err != nil {
		t.Errorf("ValidatePath() error = %v", err)
	}
	if err := ValidatePath("bad\x00path"); err == nil {
		t.Error("expected error for null byte")
	}
	if err := ValidatePath(strings.Repeat("p", 4097)); err == nil {
		t.Error("expected error for overlong path")
	}
}
