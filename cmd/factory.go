package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/darmiel/insurelink/internal/cliconfig"
	"github.com/darmiel/insurelink/internal/config"
	"github.com/darmiel/insurelink/pkg/client"
)

type Factory struct {
	// RemoteAddr is the address of the insurelink server to connect to.
	RemoteAddr    string
	CorrelationID string

	// ConfigPath is the server configuration (providers, audit, retry, compliance).
	ConfigPath string
}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) serverAddr() string {
	if f.RemoteAddr != "" { // prio 1: command-line flag
		return f.RemoteAddr
	}
	return viper.GetString(ServerAddrKey) // prio 2: config/env
}

// GetClient returns an HTTP client for remote operations. The admin token is taken
// from INSURELINK_TOKEN or from the credentials saved by 'insurelink login'.
func (f *Factory) GetClient() (*client.Client, error) {
	server := f.serverAddr()
	if server == "" {
		return nil, fmt.Errorf("server address not configured (use --server or set INSURELINK_ADDR)")
	}

	var token string
	if cfg, err := cliconfig.Load(); err == nil {
		cred, err := cfg.GetCredential(server)
		switch {
		case err == nil: // token prio 1: saved credential
			token = cred.Token
		case !errors.Is(err, cliconfig.ErrCredentialNotFound):
			return nil, err
		}
	}
	if envToken := viper.GetString(TokenKey); envToken != "" { // token prio 2: env var
		token = envToken
	}

	opts := []client.Option{client.WithAuthToken(token)}
	if f.CorrelationID != "" {
		opts = append(opts, client.WithCorrelationID(f.CorrelationID))
	}
	return client.New(server, opts...), nil
}

func (f *Factory) configPath() string {
	if f.ConfigPath != "" {
		return f.ConfigPath
	}
	return viper.GetString(ConfigKey)
}

func (f *Factory) LoadConfig() (*config.Config, error) {
	path := f.configPath()
	if path == "" {
		return nil, fmt.Errorf("config file not specified (use --config or set INSURELINK_CONFIG)")
	}
	return config.Load(path)
}

func (f *Factory) bindConfigFlag(flags *pflag.FlagSet) {
	flags.StringVarP(&f.ConfigPath, "config", "c", "", "The insurelink server config file to use")
}
