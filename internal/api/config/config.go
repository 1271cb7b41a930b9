package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Cfg 全局可访问的配置实例
var Cfg *Config

// LoadConfig 从文件加载配置并填充到 Cfg，环境变量 STOREFRONT_* 可覆盖文件中的值
func LoadConfig() error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.SetEnvPrefix("storefront")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	Cfg = &cfg

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8765)
	v.SetDefault("backend.timeout", 10)
	v.SetDefault("backend.retry_count", 2)
	v.SetDefault("backend.retry_wait", 200)
	v.SetDefault("backend.page_size", 30)
	v.SetDefault("socket.handshake_timeout", 10)
	v.SetDefault("socket.write_timeout", 10)
	v.SetDefault("socket.heartbeat", 25)
	v.SetDefault("socket.reconnect_min", 1)
	v.SetDefault("socket.reconnect_max", 30)
	v.SetDefault("wishlist.debounce_ms", 50)
	v.SetDefault("sync.refetch_spec", "@every 2m")
	v.SetDefault("sync.snapshot_spec", "@every 1m")
	v.SetDefault("sync.snapshot_ttl", 86400)
}
