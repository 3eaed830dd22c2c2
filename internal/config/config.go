// Package config defines the CLI surface for the lanpaste serve command,
// parsed with jessevdk/go-flags the same way the teacher's cmd/main.go
// parses its options, generalized from go-pb's web/db/auth group split to
// the single flat namespace spec.md §6 calls for.
package config

import (
	"time"

	"github.com/zhengpenghou/lanpaste/internal/store"
)

// Options is the full set of "serve" flags. Each flag can also be set from
// the environment variable named by its env tag (DIR, BIND, TOKEN, ...);
// these names carry no LANPASTE_ prefix, since no env namespace is set.
type Options struct {
	Dir             string        `long:"dir" env:"DIR" required:"true" description:"base directory for the repository and run state"`
	Bind            string        `long:"bind" env:"BIND" default:"0.0.0.0:8090" description:"address to listen on"`
	Token           string        `long:"token" env:"TOKEN" default:"" description:"shared token required via X-Paste-Token when no API keys file is configured"`
	APIKeysFile     string        `long:"api-keys-file" env:"API_KEYS_FILE" default:"" description:"path to a JSON file of API keys, scopes and rate limits"`
	MaxBytes        int64         `long:"max-bytes" env:"MAX_BYTES" default:"1048576" description:"maximum accepted request body size in bytes"`
	Push            string        `long:"push" env:"PUSH" default:"off" choice:"off" choice:"best_effort" choice:"strict" description:"push policy after each commit"`
	Remote          string        `long:"remote" env:"REMOTE" default:"origin" description:"git remote name used when push is not off"`
	AllowCIDR       []string      `long:"allow-cidr" env:"ALLOW_CIDR" env-delim:"," description:"CIDR allowed to reach the create route; repeatable"`
	GitAuthorName   string        `long:"git-author-name" env:"GIT_AUTHOR_NAME" default:"LAN Paste" description:"git author/committer name used for every commit"`
	GitAuthorEmail  string        `long:"git-author-email" env:"GIT_AUTHOR_EMAIL" default:"paste@lan" description:"git author/committer email used for every commit"`
	ShutdownTimeout time.Duration `long:"shutdown-timeout" env:"SHUTDOWN_TIMEOUT" default:"10s" description:"graceful shutdown timeout"`
	ReadTimeout     time.Duration `long:"http-read" env:"HTTP_READ" default:"15s" description:"duration for reading the entire request"`
	WriteTimeout    time.Duration `long:"http-write" env:"HTTP_WRITE" default:"15s" description:"duration before timing out writes of the response"`
	IdleTimeout     time.Duration `long:"http-idle" env:"HTTP_IDLE" default:"60s" description:"amount of time to wait for the next request"`
	LogMode         string        `long:"log-mode" env:"LOG_MODE" default:"production" choice:"debug" choice:"production" description:"log mode, 'debug' or 'production'"`
	Debug           bool          `long:"debug" env:"DEBUG" description:"debug mode"`
}

// PushMode converts the validated --push flag value into a store.PushMode.
func (o *Options) PushMode() store.PushMode {
	return store.PushMode(o.Push)
}
