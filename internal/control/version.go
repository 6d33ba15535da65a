package control

import "strings"

// CompareVersions implements the package version total order: an optional
// numeric epoch before ':', the upstream version, and an optional revision
// after the last '-'. Within each part, runs of digits compare numerically
// and runs of non-digits compare by a modified ASCII order in which letters
// sort before non-letters and '~' sorts before everything, including the end
// of the string. Returns <0, 0 or >0.
func CompareVersions(a, b string) int {
	aEpoch, aRest := splitEpoch(a)
	bEpoch, bRest := splitEpoch(b)
	if aEpoch != bEpoch {
		if aEpoch < bEpoch {
			return -1
		}
		return 1
	}

	aUpstream, aRevision := splitRevision(aRest)
	bUpstream, bRevision := splitRevision(bRest)
	if c := verrevcmp(aUpstream, bUpstream); c != 0 {
		return c
	}
	return verrevcmp(aRevision, bRevision)
}

// splitEpoch strips a leading all-digit epoch. An absent epoch equals 0, so
// "1.0" and "0:1.0" compare equal. A colon with a non-numeric prefix is left
// in place and compared as ordinary version text.
func splitEpoch(v string) (int, string) {
	i := strings.IndexByte(v, ':')
	if i <= 0 {
		return 0, v
	}
	epoch := 0
	for _, c := range []byte(v[:i]) {
		if c < '0' || c > '9' {
			return 0, v
		}
		epoch = epoch*10 + int(c-'0')
	}
	return epoch, v[i+1:]
}

func splitRevision(v string) (string, string) {
	if i := strings.LastIndexByte(v, '-'); i >= 0 {
		return v[:i], v[i+1:]
	}
	return v, ""
}

// verrevcmp compares one version part. The algorithm alternates between
// comparing maximal non-digit prefixes and maximal digit runs, with leading
// zeros stripped before the numeric comparison.
func verrevcmp(a, b string) int {
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		for (i < len(a) && !isDigit(a[i])) || (j < len(b) && !isDigit(b[j])) {
			ac := charOrder(a, i)
			bc := charOrder(b, j)
			if ac != bc {
				if ac < bc {
					return -1
				}
				return 1
			}
			i++
			j++
		}

		for i < len(a) && a[i] == '0' {
			i++
		}
		for j < len(b) && b[j] == '0' {
			j++
		}

		firstDiff := 0
		for i < len(a) && j < len(b) && isDigit(a[i]) && isDigit(b[j]) {
			if firstDiff == 0 {
				firstDiff = int(a[i]) - int(b[j])
			}
			i++
			j++
		}
		// The longer digit run is the larger number.
		if i < len(a) && isDigit(a[i]) {
			return 1
		}
		if j < len(b) && isDigit(b[j]) {
			return -1
		}
		if firstDiff != 0 {
			if firstDiff < 0 {
				return -1
			}
			return 1
		}
	}
	return 0
}

// charOrder ranks one byte for the non-digit comparison. End of string ranks
// 0, so '~' (rank -1) sorts before an ended string and "1.0~rc1" precedes
// "1.0".
func charOrder(s string, i int) int {
	if i >= len(s) {
		return 0
	}
	c := s[i]
	switch {
	case isDigit(c):
		return 0
	case isAlpha(c):
		return int(c)
	case c == '~':
		return -1
	default:
		return int(c) + 256
	}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
