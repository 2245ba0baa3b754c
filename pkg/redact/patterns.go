package redact

// DefaultPatterns is the built-in high-precision rule set. Patterns here
// favor precision over recall: a false redaction corrupts an export, a
// missed secret is what review is for.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{
			Name:    "Anthropic API Key",
			Pattern: `sk-ant-api\d{2}-[A-Za-z0-9_-]{95}`,
			Type:    "api_key",
		},
		{
			Name:    "OpenAI API Key",
			Pattern: `sk-[A-Za-z0-9]{48}`,
			Type:    "api_key",
		},
		{
			Name:    "AWS Access Key",
			Pattern: `AKIA[0-9A-Z]{16}`,
			Type:    "aws_key",
		},
		{
			Name:         "AWS Secret Key",
			Pattern:      `aws_secret_access_key\s*=\s*([A-Za-z0-9/+=]{40})`,
			Type:         "aws_secret",
			CaptureGroup: 1,
		},
		{
			Name:    "GitHub Personal Access Token",
			Pattern: `ghp_[A-Za-z0-9]{36}`,
			Type:    "github_token",
		},
		{
			Name:    "GitHub OAuth Token",
			Pattern: `gho_[A-Za-z0-9]{36}`,
			Type:    "github_token",
		},
		{
			Name:    "JWT Token",
			Pattern: `eyJ[A-Za-z0-9_-]+\.eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`,
			Type:    "jwt",
		},
		{
			Name:    "Private Key Header",
			Pattern: `-----BEGIN (?:RSA|EC|OPENSSH) PRIVATE KEY-----`,
			Type:    "private_key",
		},
		{
			Name:         "URL Password",
			Pattern:      `(://[^:/@\s]+:)([^@\s]+)(@)`,
			Type:         "password",
			CaptureGroup: 2,
		},
		{
			Name:    "Slack Token",
			Pattern: `xox[baprs]-[0-9a-zA-Z-]{10,72}`,
			Type:    "slack_token",
		},
		{
			Name:    "Stripe Live API Key",
			Pattern: `sk_live_[0-9a-zA-Z]{24,}`,
			Type:    "stripe_key",
		},
		{
			Name:    "Google API Key",
			Pattern: `AIza[0-9A-Za-z_-]{35}`,
			Type:    "google_api_key",
		},
		{
			Name:    "npm Access Token",
			Pattern: `npm_[A-Za-z0-9]{36}`,
			Type:    "npm_token",
		},
	}
}
