package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const minRoomTimeout = time.Second

type Config struct {
	bind        string
	hostURL     string
	jwtSecret   string
	port        int
	prefix      string
	profile     bool
	rateBurst   int
	rateLimit   float64
	roomTimeout time.Duration
	tlsCert     string
	tlsKey      string
	tokenTTL    time.Duration
	verbose     bool
	version     bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.jwtSecret == "" {
		return errors.New("--jwt-secret must not be empty")
	}
	if c.tokenTTL <= 0 {
		return fmt.Errorf("invalid token ttl (must be positive): %s", c.tokenTTL)
	}
	if c.roomTimeout < 0 || (c.roomTimeout > 0 && c.roomTimeout < minRoomTimeout) {
		return fmt.Errorf("invalid room timeout (must be 0 or at least %s): %s", minRoomTimeout, c.roomTimeout)
	}
	if c.rateLimit <= 0 || c.rateBurst < 1 {
		return fmt.Errorf("invalid rate limit (must be positive): %v/s, burst %d", c.rateLimit, c.rateBurst)
	}

	u, err := url.Parse(c.hostURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid host url (must be absolute): %q", c.hostURL)
	}
	c.hostURL = strings.TrimSuffix(c.hostURL, "/")

	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("PROMPTPARTY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "promptparty",
		Short:         "Room and round coordination server for a multiplayer improv prompt game.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			configureLogging(cfg)
			return ServePage(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: PROMPTPARTY_BIND)")
	fs.StringVar(&cfg.hostURL, "host-url", "http://localhost:8080", "public base url used in join links and qr codes (env: PROMPTPARTY_HOST_URL)")
	fs.StringVar(&cfg.jwtSecret, "jwt-secret", "dev-secret", "secret used to sign player tokens (env: PROMPTPARTY_JWT_SECRET)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: PROMPTPARTY_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: PROMPTPARTY_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: PROMPTPARTY_PROFILE)")
	fs.IntVar(&cfg.rateBurst, "rate-burst", 10, "burst of websocket messages allowed per connection (env: PROMPTPARTY_RATE_BURST)")
	fs.Float64Var(&cfg.rateLimit, "rate-limit", 5, "sustained websocket messages per second allowed per connection (env: PROMPTPARTY_RATE_LIMIT)")
	fs.DurationVar(&cfg.roomTimeout, "room-timeout", 0, "time before idle rooms are torn down, 0 to keep rooms forever (env: PROMPTPARTY_ROOM_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: PROMPTPARTY_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: PROMPTPARTY_TLS_KEY)")
	fs.DurationVar(&cfg.tokenTTL, "token-ttl", 24*time.Hour, "lifetime of issued player tokens (env: PROMPTPARTY_TOKEN_TTL)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: PROMPTPARTY_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: PROMPTPARTY_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("promptparty v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
