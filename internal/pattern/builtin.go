package pattern

import "fmt"

// ruleDef is a single built-in pattern definition.
type ruleDef struct {
	category  Category
	priority  int
	expr      string
	validator Validator
	guard     func(enabled Enabled) bool
}

// Enabled mirrors the boolean toggles of config.RedactorConfig; the
// redactor maps one onto the other, so this package imports neither.
type Enabled struct {
	Emails            bool
	Phones            bool
	SSN               bool
	CreditCards       bool
	APIKeys           bool
	GithubTokens      bool
	AWSKeys           bool
	PrivateKeys       bool
	JWTs              bool
	IPv4              bool
	IPv6              bool
	URLs              bool
	FilePaths         bool
	ConnectionStrings bool
}

// ipv6Expr matches candidate IPv6 shapes (no embedded IPv4 suffix),
// expressed without lookahead/backreferences so it compiles under Go's
// RE2-backed regexp package. Alternatives are ordered longest-shape first
// because Go's matching is leftmost-first, and word boundaries are placed
// per-alternative — a \b adjacent to ':' can never match, so the forms
// that start or end with "::" carry a boundary only on their hex side.
// The alternation deliberately over-admits (e.g. "1:2:3"); ipv6Valid
// confirms every candidate with net.ParseIP before it is redacted.
const ipv6Expr = `(?:` +
	`\b(?:[A-Fa-f0-9]{1,4}:){7}[A-Fa-f0-9]{1,4}\b|` +
	`\b(?:[A-Fa-f0-9]{1,4}:){1,7}(?::[A-Fa-f0-9]{1,4}){1,7}\b|` +
	`\b(?:[A-Fa-f0-9]{1,4}:){1,7}:|` +
	`::[A-Fa-f0-9]{1,4}(?::[A-Fa-f0-9]{1,4}){0,6}\b` +
	`)`

const ipv4Expr = `\b(?:(?:25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)\.){3}(?:25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)\b`

func defs() []ruleDef {
	return []ruleDef{
		{CategoryAPIKey, 150, `\bsk-[A-Za-z0-9_-]{10,}\b`, nil, func(e Enabled) bool { return e.APIKeys }},
		{CategoryGithubToken, 140, `\bgh[pousr]_[A-Za-z0-9]{36}\b`, nil, func(e Enabled) bool { return e.GithubTokens }},
		{CategoryAWSAccessKey, 130, `\bAKIA[0-9A-Z]{16}\b`, nil, func(e Enabled) bool { return e.AWSKeys }},
		{CategoryAWSSecret, 120, `\b[A-Za-z0-9/+=]{40}\b`, awsSecretShapeValid, func(e Enabled) bool { return e.AWSKeys }},
		{CategoryConnectionString, 115,
			`\b[a-zA-Z][a-zA-Z0-9+.-]*://[^:/\s]+:[^@\s]+@[^\s]+|(?i)\b(?:password|pwd)\s*=\s*\S+`,
			nil, func(e Enabled) bool { return e.ConnectionStrings }},
		{CategoryPrivateKey, 110, `-----BEGIN (?:RSA |EC |DSA |OPENSSH |ENCRYPTED )?PRIVATE KEY-----`, nil,
			func(e Enabled) bool { return e.PrivateKeys }},
		{CategoryJWT, 100, `\bey[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\b`, nil,
			func(e Enabled) bool { return e.JWTs }},
		{CategoryBearerToken, 90, `\bBearer\s+[A-Za-z0-9\-._~+/]+=*`, nil, func(e Enabled) bool { return e.APIKeys }},
		{CategoryEmail, 80, `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`, nil, func(e Enabled) bool { return e.Emails }},
		{CategoryPhone, 70, `\+[1-9]\d{7,14}|\(\d{3}\)[ -]?\d{3}-\d{4}|\b\d{3}-\d{3}-\d{4}\b`, nil,
			func(e Enabled) bool { return e.Phones }},
		{CategoryIPv6, 60, ipv6Expr, ipv6Valid, func(e Enabled) bool { return e.IPv6 }},
		{CategoryIPv4, 50, ipv4Expr, nil, func(e Enabled) bool { return e.IPv4 }},
		{CategoryURL, 40, `\b[a-zA-Z][a-zA-Z0-9+.-]*://[^\s<>"']+`, nil, func(e Enabled) bool { return e.URLs }},
		{CategoryFilePath, 30, `(?:/(?:[\w.\-]+/)+[\w.\-]+)|(?:[A-Za-z]:\\(?:[\w.\- ]+\\?)+)`, nil,
			func(e Enabled) bool { return e.FilePaths }},
		{CategoryCreditCard, 20, `\b\d(?:[ -]?\d){12,18}\b`, luhnValid, func(e Enabled) bool { return e.CreditCards }},
		{CategorySSN, 10, `\b\d{3}-\d{2}-\d{4}\b`, ssnValid, func(e Enabled) bool { return e.SSN }},
	}
}

// awsSecretShapeValid reduces false positives on the generic 40-char
// AwsSecret shape by requiring a mix of cases and at least one digit —
// plain 40-char lowercase words or hex digests don't qualify.
func awsSecretShapeValid(s string) bool {
	var hasUpper, hasLower, hasDigit bool
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
	}
	return hasUpper && hasLower && hasDigit
}

// BuildLibrary compiles the built-in pattern set, applying enabled toggles,
// and returns an immutable Library. Returns *PatternCompileError on a
// malformed built-in expression (should never happen for the fixed table,
// but New is not bypassed so a future addition is still checked).
func BuildLibrary(enabled Enabled) (*Library, error) {
	var patterns []Pattern
	for _, d := range defs() {
		p, err := New(d.category, d.priority, d.expr, d.validator)
		if err != nil {
			return nil, fmt.Errorf("build library: %w", err)
		}
		p.Enabled = d.guard(enabled)
		patterns = append(patterns, p)
	}
	return NewLibrary(patterns), nil
}

// AllEnabled returns an Enabled with every pattern family turned on,
// matching the redactor defaults in config.Default().
func AllEnabled() Enabled {
	return Enabled{
		Emails: true, Phones: true, SSN: true, CreditCards: true,
		APIKeys: true, GithubTokens: true, AWSKeys: true, PrivateKeys: true,
		JWTs: true, IPv4: true, IPv6: true, URLs: true, FilePaths: true,
		ConnectionStrings: true,
	}
}
