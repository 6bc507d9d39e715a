package config

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	BaseURL     string `env:"BASE_URL"`

	Database Database `envPrefix:"DB_"`
	Auth     Auth     `envPrefix:"AUTH_"`

	Paypal    Paypal    `envPrefix:"PAYPAL_"`
	Braintree Braintree `envPrefix:"BRAINTREE_"`
	Gateway   Gateway   `envPrefix:"GATEWAY_"`
	Billing   Billing   `envPrefix:"BILLING_"`

	Shipping Shipping `envPrefix:"SHIPPING_"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}

type Database struct {
	// mysql in production, sqlite for local runs
	Driver string `env:"DRIVER" envDefault:"mysql"`
	URL    string `env:"URL"`
	// sqlite file path when Driver=sqlite
	Path string `env:"PATH" envDefault:"checkout.db"`
}

type Auth struct {
	JWTSecret string `env:"JWT_SECRET"`
}

type Paypal struct {
	BaseApiURL   string `env:"BASE_API_URL"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	WebhookID    string `env:"WEBHOOK_ID"`
}

type Braintree struct {
	Environment string `env:"ENVIRONMENT"`
	MerchantID  string `env:"MERCHANT_ID"`
	PublicKey   string `env:"PUBLIC_KEY"`
	PrivateKey  string `env:"PRIVATE_KEY"`
}

type Gateway struct {
	// bounded timeout on every provider call; a timed-out intent creation
	// leaves the payment PENDING
	TimeoutSeconds int `env:"TIMEOUT_SECONDS" envDefault:"30"`
}

type Billing struct {
	// cron spec for the daily subscription expiry sweep
	ExpiryCron string `env:"EXPIRY_CRON" envDefault:"0 9 * * *"`
}

type Shipping struct {
	FlatRate string `env:"FLAT_RATE" envDefault:"0"`
	Currency string `env:"CURRENCY" envDefault:"EUR"`
}
