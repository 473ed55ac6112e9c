package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/adbshell/adapter"
	"github.com/pithecene-io/adbshell/adapter/redis"
	"github.com/pithecene-io/adbshell/adapter/webhook"
	"github.com/pithecene-io/adbshell/archive"
	"github.com/pithecene-io/adbshell/cli/config"
	"github.com/pithecene-io/adbshell/shell"
	"github.com/pithecene-io/adbshell/shell/codec"
)

// Receiver names accepted by --receiver.
const (
	receiverLines     = "lines"
	receiverBytes     = "bytes"
	receiverGetProp   = "getprop"
	receiverEnv       = "env"
	receiverPackages  = "packages"
	receiverInstall   = "install"
	receiverProcesses = "processes"
	receiverVersion   = "versioninfo"
)

var receiverNames = []string{
	receiverLines, receiverBytes, receiverGetProp, receiverEnv,
	receiverPackages, receiverInstall, receiverProcesses, receiverVersion,
}

// adapterChoice holds resolved adapter configuration.
type adapterChoice struct {
	kind    string // "webhook" or "redis"
	url     string
	channel string
	headers map[string]string
	timeout time.Duration
	retries *int
}

// archiveChoice holds resolved archive configuration.
type archiveChoice struct {
	backend     string // "fs" or "s3"
	path        string // fs: directory, s3: bucket/prefix
	region      string
	endpoint    string
	s3PathStyle bool
}

// frameChoice is the merged result of the config file and flags.
type frameChoice struct {
	encoding  string
	chunkSize int
	receiver  string
	sensor    *shell.Sensor
	sentinels *[]string
	logLevel  string
	quiet     bool
	adapter   adapterChoice
	archive   archiveChoice
}

// resolveChoice loads the optional config file and applies flag overrides.
// CLI flags always override config values.
func resolveChoice(c *cli.Context) (*frameChoice, error) {
	cfg := &config.Config{}
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	sensor, err := cfg.Sensor()
	if err != nil {
		return nil, err
	}

	ch := &frameChoice{
		encoding:  cfg.Encoding,
		chunkSize: cfg.ChunkSize,
		receiver:  cfg.Receiver,
		sensor:    sensor,
		sentinels: cfg.Sentinels,
		logLevel:  cfg.LogLevel,
		quiet:     c.Bool("quiet"),
		adapter: adapterChoice{
			kind:    cfg.Adapter.Type,
			url:     cfg.Adapter.URL,
			channel: cfg.Adapter.Channel,
			headers: cfg.Adapter.Headers,
			timeout: cfg.Adapter.Timeout.Duration,
			retries: cfg.Adapter.Retries,
		},
		archive: archiveChoice{
			backend:     cfg.Archive.Backend,
			path:        cfg.Archive.Path,
			region:      cfg.Archive.Region,
			endpoint:    cfg.Archive.Endpoint,
			s3PathStyle: cfg.Archive.S3PathStyle,
		},
	}

	if c.IsSet("encoding") {
		ch.encoding = c.String("encoding")
	}
	if c.IsSet("chunk-size") {
		ch.chunkSize = c.Int("chunk-size")
	}
	if c.IsSet("receiver") {
		ch.receiver = c.String("receiver")
	}
	if c.Bool("sense-errors") && ch.sensor == nil {
		ch.sensor = shell.DefaultSensor()
	}
	if c.IsSet("sentinel") {
		s := c.StringSlice("sentinel")
		ch.sentinels = &s
	}
	if c.Bool("no-sentinels") {
		ch.sentinels = &[]string{}
	}
	if c.IsSet("log-level") {
		ch.logLevel = c.String("log-level")
	}
	if ch.logLevel == "" {
		ch.logLevel = "info"
		if isStderrTTY() {
			ch.logLevel = "warn"
		}
	}

	if c.IsSet("adapter") {
		ch.adapter.kind = c.String("adapter")
	}
	if c.IsSet("adapter-url") {
		ch.adapter.url = c.String("adapter-url")
	}
	if c.IsSet("adapter-channel") {
		ch.adapter.channel = c.String("adapter-channel")
	}
	if c.IsSet("adapter-header") {
		headers, err := parseHeaders(c.StringSlice("adapter-header"))
		if err != nil {
			return nil, err
		}
		ch.adapter.headers = headers
	}
	if c.IsSet("adapter-timeout") {
		ch.adapter.timeout = c.Duration("adapter-timeout")
	}
	if c.IsSet("adapter-retries") {
		r := c.Int("adapter-retries")
		ch.adapter.retries = &r
	}

	if c.IsSet("archive-backend") {
		ch.archive.backend = c.String("archive-backend")
	}
	if c.IsSet("archive-path") {
		ch.archive.path = c.String("archive-path")
	}
	if c.IsSet("archive-s3-region") {
		ch.archive.region = c.String("archive-s3-region")
	}
	if c.IsSet("archive-s3-endpoint") {
		ch.archive.endpoint = c.String("archive-s3-endpoint")
	}
	if c.IsSet("archive-s3-path-style") {
		ch.archive.s3PathStyle = c.Bool("archive-s3-path-style")
	}

	if err := ch.validate(); err != nil {
		return nil, err
	}
	return ch, nil
}

func (ch *frameChoice) validate() error {
	if ch.receiver == "" {
		ch.receiver = receiverLines
	}
	known := false
	for _, name := range receiverNames {
		if ch.receiver == name {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("invalid receiver: %s (must be one of %s)", ch.receiver, strings.Join(receiverNames, ", "))
	}
	if ch.chunkSize < 0 {
		return fmt.Errorf("chunk size must be >= 0, got %d", ch.chunkSize)
	}
	if ch.adapter.kind != "" && ch.adapter.url == "" {
		return fmt.Errorf("--adapter-url is required when --adapter is set")
	}
	if ch.adapter.url != "" && ch.adapter.kind == "" {
		return fmt.Errorf("--adapter is required when --adapter-url is set")
	}
	if ch.archive.backend != "" && ch.archive.path == "" {
		return fmt.Errorf("--archive-path is required when --archive-backend is set")
	}
	return nil
}

// codec resolves the configured encoding. An empty name selects the
// process default.
func (ch *frameChoice) codec() (*codec.Codec, error) {
	if ch.encoding == "" {
		return codec.Default(), nil
	}
	return codec.Lookup(ch.encoding)
}

func parseHeaders(kvs []string) (map[string]string, error) {
	headers := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid header %q (want Key=Value)", kv)
		}
		headers[strings.TrimSpace(k)] = v
	}
	return headers, nil
}

// buildAdapter creates the configured adapter, or nil when none is set.
func buildAdapter(ac adapterChoice) (adapter.Adapter, error) {
	switch ac.kind {
	case "":
		return nil, nil
	case "webhook":
		cfg := webhook.Config{
			URL:     ac.url,
			Headers: ac.headers,
			Timeout: ac.timeout,
			Retries: webhook.DefaultRetries,
		}
		if ac.retries != nil {
			cfg.Retries = *ac.retries
		}
		return webhook.New(cfg)
	case "redis":
		cfg := redis.Config{
			URL:     ac.url,
			Channel: ac.channel,
			Timeout: ac.timeout,
			Retries: redis.DefaultRetries,
		}
		if ac.retries != nil {
			cfg.Retries = *ac.retries
		}
		return redis.New(cfg)
	default:
		return nil, fmt.Errorf("unknown adapter: %s (must be webhook or redis)", ac.kind)
	}
}

// buildArchive creates the configured archive sink, or nil when none is set.
func buildArchive(ctx context.Context, ac archiveChoice) (archive.Sink, error) {
	if ac.path == "" {
		return nil, nil
	}
	switch ac.backend {
	case "fs", "":
		return archive.NewFileSink(ac.path)
	case "s3":
		bucket, prefix := archive.ParseS3Path(ac.path)
		return archive.NewS3Sink(ctx, archive.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       ac.region,
			Endpoint:     ac.endpoint,
			UsePathStyle: ac.s3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown archive backend: %s (must be fs or s3)", ac.backend)
	}
}
