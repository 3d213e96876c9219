package config

// Config deposit-service 的全量配置，config/deposit-service.yaml 映射到这里
type Config struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"logLevel"`

	HTTP struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"http"`

	Mysql struct {
		DataSource  string `mapstructure:"datasource"`
		MaxIdle     int    `mapstructure:"maxIdle"`
		MaxOpen     int    `mapstructure:"maxOpen"`
		MaxLifetime int    `mapstructure:"maxLifetime"` // 秒
	} `mapstructure:"mysql"`

	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Worker struct {
		ConsumerCount int `mapstructure:"consumerCount"`
		QueueSize     int `mapstructure:"queueSize"`
	} `mapstructure:"worker"`

	RateLimit struct {
		QPS   float64 `mapstructure:"qps"`
		Burst int     `mapstructure:"burst"`
	} `mapstructure:"rateLimit"`

	Trace struct {
		Enabled bool   `mapstructure:"enabled"`
		Host    string `mapstructure:"host"` // OTLP gRPC endpoint
	} `mapstructure:"trace"`
}
