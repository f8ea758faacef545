package cli

import (
	"math"
	"strconv"
	"strings"

	"github.com/unkn0wn-root/rendercache"
)

// ParseParts turns command-line arguments into a fingerprint. Unless raw is
// set, integers, floats, true/false and null are typed so that
// "rendercachectl get carat 3" matches rendercache.Of("carat", 3).
// A leading "s:" forces a string ("s:3" is the string "3").
func ParseParts(args []string, raw bool) rendercache.Fingerprint {
	fp := make(rendercache.Fingerprint, 0, len(args))
	for _, a := range args {
		fp = append(fp, parsePart(a, raw))
	}
	return fp
}

func parsePart(a string, raw bool) any {
	if raw {
		return a
	}
	if s, ok := strings.CutPrefix(a, "s:"); ok {
		return s
	}
	switch a {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if i, err := strconv.ParseInt(a, 10, 64); err == nil {
		return i
	}
	if u, err := strconv.ParseUint(a, 10, 64); err == nil {
		return u
	}
	if f, err := strconv.ParseFloat(a, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return f
	}
	return a
}
