package config

// Config 配置主体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Socket   SocketConfig   `mapstructure:"socket"`
	Wishlist WishlistConfig `mapstructure:"wishlist"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Logstash LogstashConfig `mapstructure:"logstash"`
	Security SecurityConfig `mapstructure:"security"`
}

// ServerConfig 本地视图接口
type ServerConfig struct {
	Port         int      `mapstructure:"port"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// BackendConfig 后端 REST 服务
type BackendConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	Timeout    int    `mapstructure:"timeout"`
	RetryCount int    `mapstructure:"retry_count"`
	RetryWait  int    `mapstructure:"retry_wait"`
	PageSize   int    `mapstructure:"page_size"`
}

// SocketConfig 推送长连接
type SocketConfig struct {
	URL              string `mapstructure:"url"`
	HandshakeTimeout int    `mapstructure:"handshake_timeout"`
	WriteTimeout     int    `mapstructure:"write_timeout"`
	Heartbeat        int    `mapstructure:"heartbeat"`
	ReconnectMin     int    `mapstructure:"reconnect_min"`
	ReconnectMax     int    `mapstructure:"reconnect_max"`
}

// WishlistConfig 收藏批量查询，单位毫秒
type WishlistConfig struct {
	DebounceMs int `mapstructure:"debounce_ms"`
}

// SyncConfig 后台同步任务
type SyncConfig struct {
	RefetchSpec  string `mapstructure:"refetch_spec"`
	SnapshotSpec string `mapstructure:"snapshot_spec"`
	SnapshotTTL  int    `mapstructure:"snapshot_ttl"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type LogstashConfig struct {
	Address string `mapstructure:"address"`
	Index   string `mapstructure:"index"`
	Token   string `mapstructure:"token"`
}

// SecurityConfig 会话令牌校验
type SecurityConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}
