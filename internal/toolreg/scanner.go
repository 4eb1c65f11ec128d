package toolreg

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// maxPackageSize is the largest package the scanner will accept
	// without penalty.
	maxPackageSize = 100 * 1024 * 1024

	// DefaultSafetyThreshold is the minimum score a package needs to
	// be installable.
	DefaultSafetyThreshold = 50
)

var dangerousCalls = []string{
	"os.system",
	"subprocess.call",
	"eval",
	"exec",
	"open",
	"__import__",
	"compile",
}

var suspiciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)rm\s+-rf`),
	regexp.MustCompile(`(?i)del\s+/`),
	regexp.MustCompile(`(?i)format\s+c:`),
	regexp.MustCompile(`(?i)curl.*\|.*sh`),
	regexp.MustCompile(`(?i)wget.*\|.*sh`),
}

var networkIndicators = []string{
	"http://",
	"https://",
	"socket",
	"urllib",
	"requests",
}

var filesystemIndicators = []string{
	"open(",
	"file(",
	"pathlib",
	"os.path",
	"shutil",
}

// ScanReport is the outcome of one safety scan.
type ScanReport struct {
	Score    int      `json:"score"`
	Warnings []string `json:"warnings,omitempty"`
}

// Scanner scores tool packages before installation. Scoring starts at
// 100 and each finding subtracts; anything below the threshold is
// rejected by the registry.
type Scanner struct {
	threshold int
}

// NewScanner creates a scanner with the given rejection threshold.
// A threshold of 0 falls back to the default.
func NewScanner(threshold int) *Scanner {
	if threshold <= 0 {
		threshold = DefaultSafetyThreshold
	}
	return &Scanner{threshold: threshold}
}

// Threshold returns the minimum acceptable score.
func (s *Scanner) Threshold() int { return s.threshold }

// Accepts reports whether the score clears the threshold.
func (s *Scanner) Accepts(score int) bool { return score >= s.threshold }

// Scan scores one package payload. Binary payloads stop scanning after
// the encoding penalty since pattern matching on them is meaningless.
func (s *Scanner) Scan(payload []byte) ScanReport {
	score := 100
	var warnings []string

	if len(payload) > maxPackageSize {
		score -= 20
		warnings = append(warnings, fmt.Sprintf("package is unusually large (%d bytes)", len(payload)))
	}

	if !utf8.Valid(payload) {
		score -= 10
		warnings = append(warnings, "package contains binary content, skipping pattern analysis")
		return ScanReport{Score: clampScore(score), Warnings: warnings}
	}

	content := string(payload)

	for _, call := range dangerousCalls {
		if strings.Contains(content, call) {
			score -= 15
			warnings = append(warnings, fmt.Sprintf("dangerous call detected: %s", call))
		}
	}

	for _, pattern := range suspiciousPatterns {
		if pattern.MatchString(content) {
			score -= 25
			warnings = append(warnings, fmt.Sprintf("suspicious pattern detected: %s", pattern.String()))
		}
	}

	for _, indicator := range networkIndicators {
		if strings.Contains(content, indicator) {
			score -= 5
			warnings = append(warnings, "package performs network access")
			break
		}
	}

	for _, indicator := range filesystemIndicators {
		if strings.Contains(content, indicator) {
			score -= 5
			warnings = append(warnings, "package performs filesystem access")
			break
		}
	}

	return ScanReport{Score: clampScore(score), Warnings: warnings}
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	return score
}
