package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config 全局配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Device   DeviceConfig   `mapstructure:"device"`
	Printer  PrinterConfig  `mapstructure:"printer"`
	Issuer   IssuerConfig   `mapstructure:"issuer"`
	Gate     GateConfig     `mapstructure:"gate"`
	Fee      FeeConfig      `mapstructure:"fee"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Log      LogConfig      `mapstructure:"log"`
	Security SecurityConfig `mapstructure:"security"`
}

// ServerConfig 操作员API服务配置
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DeviceConfig 触发设备配置
type DeviceConfig struct {
	// Source 信号源类型：serial / keyboard / mock
	Source        string          `mapstructure:"source"`
	Port          string          `mapstructure:"port"`
	PortPattern   string          `mapstructure:"port_pattern"` // 设备名称模式（如 "ttyUSB" 或 "ttyACM"）
	BaudRate      int             `mapstructure:"baud_rate"`
	ReadTimeout   time.Duration   `mapstructure:"read_timeout"`
	RetryDelays   []time.Duration `mapstructure:"retry_delays"`   // 重连退避序列，最后一项为上限
	StatusTokens  []string        `mapstructure:"status_tokens"`  // 状态/保活令牌，不视为触发
	TriggerTokens []string        `mapstructure:"trigger_tokens"` // 显式触发令牌
}

// PrinterConfig 打印机配置
type PrinterConfig struct {
	// Sink 输出方式：serial / spool / mock
	Sink         string        `mapstructure:"sink"`
	Device       string        `mapstructure:"device"` // spool设备路径（如 /dev/usb/lp0）
	Port         string        `mapstructure:"port"`   // 串口打印时的端口
	BaudRate     int           `mapstructure:"baud_rate"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	RetryDelay   time.Duration `mapstructure:"retry_delay"` // Busy等瞬时错误的重试间隔
	Header       string        `mapstructure:"header"`
	Footer       []string      `mapstructure:"footer"`
	FeedLines    int           `mapstructure:"feed_lines"`
	FullCut      bool          `mapstructure:"full_cut"`
	Barcode      BarcodeConfig `mapstructure:"barcode"`
}

// BarcodeConfig 条码配置
type BarcodeConfig struct {
	Symbology string `mapstructure:"symbology"` // code39 / code128
	MaxLength int    `mapstructure:"max_length"` // 超长票号取尾部N位
}

// IssuerConfig 远程签发服务配置
type IssuerConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
	OfflinePrefix string       `mapstructure:"offline_prefix"` // 离线票号前缀
	OfflineDigits int          `mapstructure:"offline_digits"` // 离线票号补零位数
}

// GateConfig 闸口行为配置
type GateConfig struct {
	ID             string        `mapstructure:"id"`
	Debounce       time.Duration `mapstructure:"debounce"`
	MinPlateLength int           `mapstructure:"min_plate_length"` // 低于此长度的令牌视为按钮信号
	MaxPlateLength int           `mapstructure:"max_plate_length"`
	DefaultVehicle string        `mapstructure:"default_vehicle"` // 默认车辆类型
	FlushInterval  time.Duration `mapstructure:"flush_interval"`  // 离线队列同步周期
	MaxRetryAge    time.Duration `mapstructure:"max_retry_age"`   // 超龄条目告警阈值
}

// FeeConfig 计费配置
type FeeConfig struct {
	BaseRate int64 `mapstructure:"base_rate"` // 每小时基础费率（小汽车）
}

// StorageConfig 本地持久化配置
type StorageConfig struct {
	CounterFile string `mapstructure:"counter_file"`
	QueueFile   string `mapstructure:"queue_file"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level   string            `mapstructure:"level"`
	Format  string            `mapstructure:"format"`
	Output  string            `mapstructure:"output"`
	File    LogFileConfig     `mapstructure:"file"`
	Modules map[string]string `mapstructure:"modules"`
}

// LogFileConfig 日志文件配置
type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	JWT JWTConfig `mapstructure:"jwt"`
}

// JWTConfig JWT配置
type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

var (
	cfg  *Config
	once sync.Once
	mu   sync.RWMutex
	v    *viper.Viper
)

// Init 初始化配置
func Init(configPath string) error {
	var err error
	once.Do(func() {
		v = viper.New()

		// 设置配置文件路径
		if configPath != "" {
			v.SetConfigFile(configPath)
		} else {
			v.SetConfigName("config")
			v.SetConfigType("yaml")
			v.AddConfigPath("./config")
			v.AddConfigPath(".")
		}

		// 设置环境变量前缀
		v.SetEnvPrefix("PARKING_GATE")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()

		// 设置默认值
		setDefaults(v)

		// 读取配置文件
		if err = v.ReadInConfig(); err != nil {
			// 如果配置文件不存在，使用默认配置
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return
			}
			err = nil
		}

		// 解析配置到结构体
		cfg = &Config{}
		err = v.Unmarshal(cfg)
	})

	return err
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 操作员API默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// 数据库默认配置
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/parking-gate.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.auto_migrate", true)

	// 触发设备默认配置
	v.SetDefault("device.source", "serial")
	v.SetDefault("device.port", "")
	v.SetDefault("device.port_pattern", "ttyUSB")
	v.SetDefault("device.baud_rate", 9600)
	v.SetDefault("device.read_timeout", "500ms")
	v.SetDefault("device.retry_delays", []string{"1s", "2s", "5s"})
	v.SetDefault("device.status_tokens", []string{"READY", "STATUS", "PRESS"})
	v.SetDefault("device.trigger_tokens", []string{"1", "BUTTON_PRESSED"})

	// 打印机默认配置
	v.SetDefault("printer.sink", "spool")
	v.SetDefault("printer.device", "/dev/usb/lp0")
	v.SetDefault("printer.baud_rate", 9600)
	v.SetDefault("printer.write_timeout", "5s")
	v.SetDefault("printer.retry_delay", "500ms")
	v.SetDefault("printer.header", "PARKIR RSI BNA")
	v.SetDefault("printer.footer", []string{"Terima kasih", "Jangan hilangkan tiket ini"})
	v.SetDefault("printer.feed_lines", 3)
	v.SetDefault("printer.full_cut", false)
	v.SetDefault("printer.barcode.symbology", "code39")
	v.SetDefault("printer.barcode.max_length", 10)

	// 远程签发默认配置
	v.SetDefault("issuer.base_url", "http://192.168.2.6:5051/api")
	v.SetDefault("issuer.timeout", "3s")
	v.SetDefault("issuer.max_retries", 1)
	v.SetDefault("issuer.offline_prefix", "OFF")
	v.SetDefault("issuer.offline_digits", 6)

	// 闸口行为默认配置
	v.SetDefault("gate.id", "gate-1")
	v.SetDefault("gate.debounce", "500ms")
	v.SetDefault("gate.min_plate_length", 4)
	v.SetDefault("gate.max_plate_length", 10)
	v.SetDefault("gate.default_vehicle", "motorcycle")
	v.SetDefault("gate.flush_interval", "30s")
	v.SetDefault("gate.max_retry_age", "24h")

	// 计费默认配置
	v.SetDefault("fee.base_rate", 5000)

	// 本地持久化默认配置
	v.SetDefault("storage.counter_file", "./data/counter.txt")
	v.SetDefault("storage.queue_file", "./data/offline_queue.json")

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "both")
	v.SetDefault("log.file.path", "./logs")
	v.SetDefault("log.file.filename", "parking-gate.log")
	v.SetDefault("log.file.max_size", 100)
	v.SetDefault("log.file.max_age", 30)
	v.SetDefault("log.file.max_backups", 7)
	v.SetDefault("log.file.compress", true)

	// 安全默认配置
	v.SetDefault("security.jwt.secret", "")
	v.SetDefault("security.jwt.expire_hours", 24)
}

// Get 获取配置实例
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// Watch 监听配置文件变化
func Watch(callback func(*Config)) {
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		mu.Lock()
		defer mu.Unlock()

		newCfg := &Config{}
		if err := v.Unmarshal(newCfg); err != nil {
			fmt.Printf("配置重载失败: %v\n", err)
			return
		}

		cfg = newCfg

		if callback != nil {
			callback(cfg)
		}

		fmt.Println("配置已重新加载")
	})
}

// GetString 获取字符串配置
func GetString(key string) string {
	return v.GetString(key)
}

// GetInt 获取整数配置
func GetInt(key string) int {
	return v.GetInt(key)
}

// GetBool 获取布尔配置
func GetBool(key string) bool {
	return v.GetBool(key)
}

// GetDuration 获取时间间隔配置
func GetDuration(key string) time.Duration {
	return v.GetDuration(key)
}

// IsSet 检查配置项是否存在
func IsSet(key string) bool {
	return v.IsSet(key)
}

// Set 动态设置配置值
func Set(key string, value interface{}) {
	v.Set(key, value)
}
