package main

import (
	"io"
	"net/url"
	"os"
	"regexp"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/grant-scraper/internal/config"
)

const redacted = "REDACTED"

// dsnPassword matches the password in a keyword/value connection string.
var dsnPassword = regexp.MustCompile(`(?i)(\bpassword\s*=\s*)('(?:[^'\\]|\\.)*'|\S+)`)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Long:  "Print the configuration after merging config.yaml, environment variables and defaults. Secrets are redacted.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return writeConfig(os.Stdout, cfg)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func writeConfig(out io.Writer, c *config.Config) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(redact(*c)); err != nil {
		return eris.Wrap(err, "config: encode yaml")
	}
	return eris.Wrap(enc.Close(), "config: encode yaml")
}

// redact blanks the remote key and any password embedded in the remote URL,
// whether it is a URL or a keyword/value connection string.
func redact(c config.Config) config.Config {
	if c.Remote.Key != "" {
		c.Remote.Key = redacted
	}
	if u, err := url.Parse(c.Remote.URL); err == nil && u.Scheme != "" {
		changed := false
		if u.User != nil {
			if _, ok := u.User.Password(); ok {
				u.User = url.UserPassword(u.User.Username(), redacted)
				changed = true
			}
		}
		if q := u.Query(); q.Has("password") {
			q.Set("password", redacted)
			u.RawQuery = q.Encode()
			changed = true
		}
		if changed {
			c.Remote.URL = u.String()
		}
		return c
	}
	c.Remote.URL = dsnPassword.ReplaceAllString(c.Remote.URL, "${1}"+redacted)
	return c
}
