package sdk

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/evervolv/evsettings/internal/engine"
)

// EnvAddr names the environment variable consulted when Config.Addr is empty.
const EnvAddr = "EVSETTINGS_ADDR"

// Config selects and configures the backend New returns.
type Config struct {
	// Addr of a running daemon. Falls back to $EVSETTINGS_ADDR.
	Addr       string
	Token      string
	DisableTLS bool

	// DataDir and Resources configure the embedded fallback.
	DataDir   string
	Resources engine.Resources

	Logger zerolog.Logger
}

// New initializes the store based on the environment.
// It returns the Interface, so the app doesn't care if it's local or remote.
func New(cfg Config) (Store, error) {
	// 1. Check if a remote daemon is configured
	remoteAddr := cfg.Addr
	if remoteAddr == "" {
		remoteAddr = os.Getenv(EnvAddr)
	}

	if remoteAddr != "" {
		client, err := Connect(remoteAddr, ClientOptions{
			Token:      cfg.Token,
			DisableTLS: cfg.DisableTLS,
			Logger:     cfg.Logger,
		})
		if err == nil {
			return client, nil
		}
		cfg.Logger.Warn().Err(err).Str("addr", remoteAddr).Msg("settings daemon unreachable, using embedded store")
	}

	// 2. Fallback to embedded mode
	// This uses the same engine the daemon uses, but inside the app process.
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}
	return engine.NewProvider(engine.Options{
		DataDir:   cfg.DataDir,
		Resources: cfg.Resources,
		Logger:    cfg.Logger,
	}), nil
}
