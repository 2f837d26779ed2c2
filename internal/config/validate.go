package config

import (
	"fmt"
	"net/url"
	"strings"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// NormalizeAndValidate returns a normalized copy of cfg and what is wrong with it.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	trimList := func(xs []string) []string {
		seen := map[string]bool{}
		var ys []string
		for _, x := range xs {
			x = strings.TrimSpace(x)
			if x == "" {
				continue
			}
			key := strings.ToLower(x)
			if seen[key] {
				continue
			}
			seen[key] = true
			ys = append(ys, x)
		}
		return ys
	}

	out.Inbox.Provider = strings.ToLower(strings.TrimSpace(out.Inbox.Provider))
	out.AI.Provider = strings.ToLower(strings.TrimSpace(out.AI.Provider))
	out.Classifier.Keywords.OA = trimList(out.Classifier.Keywords.OA)
	out.Classifier.Keywords.Rejection = trimList(out.Classifier.Keywords.Rejection)
	out.Classifier.Keywords.Status = trimList(out.Classifier.Keywords.Status)

	// ---- Validation rules ----

	if out.App.Port <= 0 || out.App.Port > 65535 {
		res.addErr("app.port must be 1..65535")
	}
	var origins []string
	for _, o := range trimList(out.App.AllowedOrigins) {
		norm, err := NormalizeOrigin(o)
		if err != nil {
			res.addErr("app.allowed_origins: %v", err)
			continue
		}
		origins = append(origins, norm)
	}
	origins = trimList(origins)
	out.App.AllowedOrigins = origins

	switch out.Inbox.Provider {
	case ProviderIMAP:
		// password not required here; it lives in the keychain
		if strings.TrimSpace(out.Inbox.IMAP.Host) == "" {
			res.addErr("inbox.imap.host is required when inbox.provider=imap")
		}
		if out.Inbox.IMAP.Port <= 0 || out.Inbox.IMAP.Port > 65535 {
			res.addErr("inbox.imap.port must be 1..65535")
		}
		if strings.TrimSpace(out.Inbox.IMAP.Username) == "" {
			res.addErr("inbox.imap.username is required when inbox.provider=imap")
		}
		if strings.TrimSpace(out.Inbox.IMAP.Mailbox) == "" {
			res.addErr("inbox.imap.mailbox is required when inbox.provider=imap")
		}
		if out.Inbox.IMAP.MaxRows > 500 {
			res.addWarn("inbox.imap.max_rows is %d; every scan fetches that many full messages.", out.Inbox.IMAP.MaxRows)
		}
	case ProviderGmail:
		if strings.TrimSpace(out.Inbox.Gmail.CredentialsPath) == "" {
			res.addErr("inbox.gmail.credentials_path is required when inbox.provider=gmail")
		}
		if strings.TrimSpace(out.Inbox.Gmail.TokenPath) == "" {
			res.addErr("inbox.gmail.token_path is required when inbox.provider=gmail")
		}
		if out.Inbox.Gmail.PollSeconds > 0 && out.Inbox.Gmail.PollSeconds < 10 {
			res.addWarn("inbox.gmail.poll_seconds is very low (%d) and may hit API quotas.", out.Inbox.Gmail.PollSeconds)
		}
	default:
		res.addErr("inbox.provider must be imap or gmail, got %q", out.Inbox.Provider)
	}

	if out.Scan.StaggerMS < 0 {
		res.addErr("scan.stagger_ms must be >= 0")
	} else if out.Scan.StaggerMS == 0 {
		res.addWarn("scan.stagger_ms is 0; all rows hit the classifier at once.")
	}
	if out.Scan.DebounceMS <= 0 {
		res.addErr("scan.debounce_ms must be > 0")
	}
	if out.Scan.PollSeconds <= 0 {
		res.addErr("scan.poll_seconds must be > 0")
	}

	switch out.AI.Provider {
	case "", "none":
	case "ollama":
		if strings.TrimSpace(out.AI.Model) == "" {
			res.addErr("ai.model is required when ai.provider=ollama")
		}
	case "bedrock":
		if strings.TrimSpace(out.AI.Model) == "" {
			res.addErr("ai.model is required when ai.provider=bedrock")
		}
		if strings.TrimSpace(out.AI.Region) == "" {
			res.addWarn("ai.region is empty; the AWS default region will be used.")
		}
	default:
		res.addErr("ai.provider must be none, ollama or bedrock, got %q", out.AI.Provider)
	}
	if out.AI.TimeoutSeconds < 0 {
		res.addErr("ai.timeout_seconds must be >= 0")
	}

	if len(out.Classifier.Keywords.OA) == 0 {
		res.addErr("classifier.keywords.oa must have at least 1 phrase")
	}
	if len(out.Classifier.Keywords.Rejection) == 0 && len(out.Classifier.Keywords.Status) == 0 {
		res.addWarn("classifier has no rejection or status phrases; everything that is not an OA becomes OTHER.")
	}
	oaSet := map[string]bool{}
	for _, k := range out.Classifier.Keywords.OA {
		oaSet[strings.ToLower(k)] = true
	}
	for _, k := range out.Classifier.Keywords.Rejection {
		if oaSet[strings.ToLower(k)] {
			res.addWarn("phrase appears in both oa and rejection keywords: %q", k)
		}
	}

	return out, res
}

// NormalizeOrigin lower-cases an origin and strips a trailing slash. Only
// scheme://host[:port] is accepted; wildcards are rejected.
func NormalizeOrigin(o string) (string, error) {
	o = strings.TrimSuffix(strings.TrimSpace(o), "/")
	u, err := url.Parse(o)
	if err != nil || u.Host == "" || strings.Contains(o, "*") {
		return "", fmt.Errorf("%q is not an origin like http://localhost:5173", o)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%q must use http or https", o)
	}
	if (u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.Fragment != "" || u.User != nil {
		return "", fmt.Errorf("%q must not carry a path, query or credentials", o)
	}
	return strings.ToLower(u.Scheme + "://" + u.Host), nil
}
