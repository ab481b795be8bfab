package config

import (
	"fmt"
	"time"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host            string        `env:"DB_HOST,default=localhost"`
	Port            int           `env:"DB_PORT,default=5432"`
	User            string        `env:"DB_USER,default=postgres"`
	Password        string        `env:"DB_PASSWORD,default=postgres"`
	Database        string        `env:"DB_NAME,default=envdata"`
	SSLMode         string        `env:"DB_SSLMODE,default=disable"`
	MaxConns        int           `env:"DB_MAX_CONNS,default=20"`
	MaxIdle         int           `env:"DB_MAX_IDLE,default=5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME,default=30m"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,default=0"`
	PoolSize int    `env:"REDIS_POOL_SIZE,default=10"`

	DialTimeout time.Duration `env:"REDIS_DIAL_TIMEOUT,default=3s"`
	// 广播在请求路径上同步执行，超时不宜过长
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT,default=2s"`
}

// MQTTConfig MQTT配置
type MQTTConfig struct {
	Broker   string `env:"MQTT_BROKER,default=tcp://localhost:1883"`
	ClientID string `env:"MQTT_CLIENT_ID,default=envdata-user-layers"`
	Username string `env:"MQTT_USERNAME"`
	Password string `env:"MQTT_PASSWORD"`
	QoS      int    `env:"MQTT_QOS,default=1"`
}

// GetDSN returns the lib/pq key/value connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}
