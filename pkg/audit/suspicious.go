package audit

import "strings"

// Indicator names for suspicious-request detection.
const (
	IndicatorAuthFailure     = "REPEATED_AUTH_FAILURE"
	IndicatorAttackPattern   = "ATTACK_PATTERN_DETECTED"
	IndicatorSuspiciousAgent = "SUSPICIOUS_USER_AGENT"
)

var sensitivePaths = []string{"/auth/", "/admin/", "/user/", "/password"}

var attackPatterns = []string{
	"admin", "wp-admin", "login.php", ".env", "config",
	"phpmyadmin", "sql", "database", ".git", "backup",
	"../", "..\\", "<script", "union select", "drop table",
}

var scannerAgents = []string{
	"bot", "crawler", "spider", "scraper", "curl", "wget",
	"postman", "insomnia", "burp", "sqlmap", "nikto",
}

// Suspicious reports whether a failed request looks like probing: an
// auth failure on a sensitive path, a 404 on a known attack-probe path,
// or a scanner user-agent.
func Suspicious(status int, path, userAgent string) bool {
	if (status == 401 || status == 403) && isSensitivePath(path) {
		return true
	}
	if status == 404 && hasAttackPattern(path) {
		return true
	}
	return isScannerAgent(userAgent)
}

// Indicators lists which heuristics fired, for the SECURITY_ALERT entry.
func Indicators(status int, path, userAgent string) []string {
	var out []string
	if (status == 401 || status == 403) && isSensitivePath(path) {
		out = append(out, IndicatorAuthFailure)
	}
	if hasAttackPattern(path) {
		out = append(out, IndicatorAttackPattern)
	}
	if isScannerAgent(userAgent) {
		out = append(out, IndicatorSuspiciousAgent)
	}
	return out
}

func isSensitivePath(path string) bool {
	for _, p := range sensitivePaths {
		if strings.Contains(path, p) {
			return true
		}
	}
	return false
}

func hasAttackPattern(path string) bool {
	lower := strings.ToLower(path)
	for _, p := range attackPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func isScannerAgent(userAgent string) bool {
	lower := strings.ToLower(userAgent)
	if lower == "" {
		return false
	}
	for _, p := range scannerAgents {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
