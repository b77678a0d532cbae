// Package ingest implements the file-ingestion pipeline: safety checks
// (deny-list, secret detection, PII redaction), LLM summarisation and
// entry extraction, and the orchestration that stores the results.
package ingest

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// denyPatterns are file names that must never be ingested, matched with
// fnmatch-style globs against the base name.
var denyPatterns = []string{
	// Private keys and certificates
	"*.pem", "*.key", "*.p12", "*.pfx", "*.crt", "*.cer",
	// SSH keys
	"id_rsa", "id_rsa.*", "id_ed25519", "id_ed25519.*", "id_dsa", "id_ecdsa",
	// Environment / secrets
	".env", ".env.*", "*.env",
	// VPN / WireGuard
	"wg*.conf",
	// Password / credential files
	"*.keychain", "*.keychain-db", "credentials.json", "token.json",
	// Binary / archive (not useful text)
	"*.zip", "*.tar", "*.tar.gz", "*.tgz", "*.gz", "*.bz2", "*.xz", "*.7z", "*.rar",
	"*.exe", "*.dll", "*.so", "*.dylib", "*.bin", "*.o", "*.a", "*.class", "*.jar",
	"*.pyc", "*.wasm",
	// Images / media
	"*.png", "*.jpg", "*.jpeg", "*.gif", "*.bmp", "*.ico", "*.svg", "*.webp",
	"*.mp3", "*.mp4", "*.wav", "*.avi", "*.mov",
	// Database files
	"*.sqlite", "*.sqlite3", "*.db",
}

// secretPatterns flag content that should not enter the knowledge base.
var secretPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"private key", regexp.MustCompile(`-----BEGIN (?:RSA |EC |OPENSSH |DSA |PGP )?PRIVATE KEY`)},
	{"aws access key", regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)},
	{"api key assignment", regexp.MustCompile(`(?i)\b(?:api[_-]?key|secret[_-]?key|access[_-]?token|auth[_-]?token)\b\s*[:=]\s*['"][^'"]{16,}['"]`)},
	{"bearer token", regexp.MustCompile(`(?i)\bbearer\s+[a-z0-9._\-]{20,}`)},
	{"anthropic key", regexp.MustCompile(`\bsk-ant-[a-zA-Z0-9_-]{20,}\b`)},
}

// piiPatterns are redacted (not blocking): the content is cleaned and
// the redaction types recorded.
var piiPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"EMAIL", regexp.MustCompile(`\b[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}\b`)},
	{"PHONE", regexp.MustCompile(`\b\+?\d{1,3}[-. (]?\d{3}[-. )]?\d{3}[-. ]?\d{4}\b`)},
	{"SSN", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
}

// CheckDenyList returns the matching deny pattern for a file name, or
// "" when the file is allowed.
func CheckDenyList(path string) string {
	name := filepath.Base(path)
	lower := strings.ToLower(name)
	for _, pattern := range denyPatterns {
		if ok, _ := filepath.Match(pattern, name); ok {
			return pattern
		}
		if ok, _ := filepath.Match(pattern, lower); ok {
			return pattern
		}
	}
	return ""
}

// DetectSecrets scans content for secret material and returns the types
// found.
func DetectSecrets(content string) []string {
	var found []string
	for _, p := range secretPatterns {
		if p.re.MatchString(content) {
			found = append(found, p.name)
		}
	}
	return found
}

// RedactPII replaces personally identifiable information with
// {{TYPE}} markers. Returns the cleaned content and the types redacted.
func RedactPII(content string) (string, []string) {
	var types []string
	for _, p := range piiPatterns {
		if !p.re.MatchString(content) {
			continue
		}
		content = p.re.ReplaceAllString(content, "{{"+p.name+"}}")
		types = append(types, p.name)
	}
	return content, types
}

// SafetyResult is the outcome of the safety pipeline for one file.
type SafetyResult struct {
	Action     string // "allow", "skip", "flag"
	Content    string
	Reason     string
	Redactions []string
}

// RunSafetyPipeline applies deny-list, secret detection and PII
// redaction in that order. Secrets flag the file (it is not ingested);
// PII is redacted in place and ingestion continues.
func RunSafetyPipeline(path, content string) SafetyResult {
	if pattern := CheckDenyList(path); pattern != "" {
		return SafetyResult{
			Action: "skip",
			Reason: fmt.Sprintf("matches deny-list pattern: %s", pattern),
		}
	}

	if secrets := DetectSecrets(content); len(secrets) > 0 {
		return SafetyResult{
			Action: "flag",
			Reason: fmt.Sprintf("content contains potential secrets: %s", strings.Join(secrets, ", ")),
		}
	}

	cleaned, redactions := RedactPII(content)
	return SafetyResult{
		Action:     "allow",
		Content:    cleaned,
		Redactions: redactions,
	}
}
