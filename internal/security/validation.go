package security

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// ValidPackageNameRegex follows dpkg naming rules: lowercase
	// alphanumerics plus '+', '-' and '.', starting with an alphanumeric.
	// Underscore is excluded; it separates fields in archive filenames.
	ValidPackageNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9+.-]*$`)

	// ValidVersionRegex allows exactly the characters version comparison
	// is defined over, including the epoch colon and the tilde marker.
	ValidVersionRegex = regexp.MustCompile(`^[A-Za-z0-9.+~:-]+$`)

	// ValidFeedNameRegex constrains feed names; they become cache bucket
	// names and log fields.
	ValidFeedNameRegex = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
)

// ValidatePackageName validates a package name argument
func ValidatePackageName(name string) error {
	if name == "" {
		return fmt.Errorf("package name cannot be empty")
	}

	if len(name) > 255 {
		return fmt.Errorf("package name too long (max 255 characters)")
	}

	if !ValidPackageNameRegex.MatchString(name) {
		return fmt.Errorf("invalid package name %q: must be lowercase alphanumerics plus '+', '-', '.'", name)
	}

	return nil
}

// ValidateVersion validates a version string
func ValidateVersion(version string) error {
	if version == "" {
		return fmt.Errorf("invalid version: version cannot be empty")
	}

	if len(version) >= 100 {
		return fmt.Errorf("version string too long (max 100 characters)")
	}

	if strings.Contains(version, "\x00") {
		return fmt.Errorf("invalid version: contains null byte")
	}

	if !ValidVersionRegex.MatchString(version) {
		return fmt.Errorf("invalid version %q: must be alphanumerics plus '.', '+', '~', ':', '-'", version)
	}

	return nil
}

// ValidateFeedName validates a configured feed name
func ValidateFeedName(name string) error {
	if name == "" {
		return fmt.Errorf("feed name cannot be empty")
	}

	if len(name) > 64 {
		return fmt.Errorf("feed name too long (max 64 characters)")
	}

	if !ValidFeedNameRegex.MatchString(name) {
		return fmt.Errorf("invalid feed name %q: must be alphanumerics plus '.', '_', '-'", name)
	}

	return nil
}
