package internal

import "time"

// Config is loaded from the environment at startup.
type Config struct {
	Host string `env:"HOST,default=0.0.0.0"`
	Port int    `env:"PORT,default=8080"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	LogLevel       string `env:"LOG_LEVEL,default=INFO"`

	// ConnectionBufferSize bounds each connection's event sink; a slow
	// client drops events past this depth instead of stalling fan-out.
	ConnectionBufferSize int `env:"CONNECTION_BUFFER_SIZE,default=64"`

	// IdentityProviderURL points at the external identity provider. When
	// empty, tokens issued by the local credential store are accepted
	// instead.
	IdentityProviderURL     string        `env:"IDENTITY_PROVIDER_URL"`
	IdentityProviderTimeout time.Duration `env:"IDENTITY_PROVIDER_TIMEOUT,default=5s"`

	JWTSecret            string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration    time.Duration `env:"AUTH_TOKEN_DURATION,default=15m"`
	RefreshTokenDuration time.Duration `env:"REFRESH_TOKEN_DURATION,default=168h"`

	CensoredWordsPath string `env:"CENSORED_WORDS_PATH"`
	CharReplacement   string `env:"CHARACTER_REPLACEMENT,default=*"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}
