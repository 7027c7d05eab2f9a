package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，例如 RBDMIG_MIGRATOR_HOST
const EnvPrefix = "RBDMIG"

type Config struct {
	Migrator MigratorConfig `mapstructure:"migrator" yaml:"migrator"`
	Ceph     CephConfig     `mapstructure:"ceph"     yaml:"ceph"`

	// MigrateVolumeSnapshots 为 true 时使用深拷贝脚本，镜像上的快照一起迁移
	MigrateVolumeSnapshots bool `mapstructure:"migrate_volume_snapshots" yaml:"migrate_volume_snapshots"`

	// DestinationNamePrefix 目标端卷名前缀
	DestinationNamePrefix string `mapstructure:"destination_name_prefix" yaml:"destination_name_prefix"`

	// ExceptionTraceFile 迁移失败时写入的诊断文件
	ExceptionTraceFile string `mapstructure:"exception_trace_file" yaml:"exception_trace_file"`

	Journal JournalConfig `mapstructure:"journal" yaml:"journal"`
	Log     LogConfig     `mapstructure:"log"     yaml:"log"`
}

// MigratorConfig 管理主机配置，所有 ceph 脚本都在这台主机上执行
type MigratorConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
	User string `mapstructure:"user" yaml:"user"`
	// SSHKeyFile 登录管理主机的私钥
	SSHKeyFile string `mapstructure:"ssh_key_file" yaml:"ssh_key_file"`
	// KnownHostsFile 为空时不校验主机公钥
	KnownHostsFile string        `mapstructure:"known_hosts_file" yaml:"known_hosts_file"`
	BaseDir        string        `mapstructure:"base_dir"         yaml:"base_dir"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"     yaml:"dial_timeout"`
}

type CephConfig struct {
	SourceCinderPool         string `mapstructure:"source_cinder_pool"         yaml:"source_cinder_pool"`
	SourceEphemeralPool      string `mapstructure:"source_ephemeral_pool"      yaml:"source_ephemeral_pool"`
	DestinationCinderPool    string `mapstructure:"destination_cinder_pool"    yaml:"destination_cinder_pool"`
	DestinationEphemeralPool string `mapstructure:"destination_ephemeral_pool" yaml:"destination_ephemeral_pool"`
	PrivilegedClient         string `mapstructure:"privileged_client"          yaml:"privileged_client"`
	MigratorClient           string `mapstructure:"migrator_client"            yaml:"migrator_client"`
}

// JournalConfig 迁移记录配置，Path 为空时不落盘
type JournalConfig struct {
	Path   string `mapstructure:"path"   yaml:"path"`
	Listen string `mapstructure:"listen" yaml:"listen"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

var defaults = map[string]any{
	"migrator.host":                   "controller-ostack.stage.cloud.muni.cz",
	"migrator.port":                   22,
	"migrator.user":                   "root",
	"migrator.ssh_key_file":           "",
	"migrator.known_hosts_file":       "",
	"migrator.base_dir":               "/root/migrator",
	"migrator.dial_timeout":           30 * time.Second,
	"ceph.source_cinder_pool":         "prod-cinder-volumes",
	"ceph.source_ephemeral_pool":      "prod-ephemeral-vms",
	"ceph.destination_cinder_pool":    "cloud-cinder-volumes-prod-brno",
	"ceph.destination_ephemeral_pool": "cloud-ephemeral-volumes-prod-brno",
	"ceph.privileged_client":          "client.cinder",
	"ceph.migrator_client":            "client.migrator",
	"migrate_volume_snapshots":        false,
	"destination_name_prefix":         "",
	"exception_trace_file":            "rbdmig.dump",
	"journal.path":                    "",
	"journal.listen":                  ":7780",
	"log.level":                       "info",
	"log.format":                      "json",
}

// Load 按 默认值 -> 配置文件 -> 环境变量 -> 命令行参数 的顺序加载配置
// path 为空时不读取配置文件；flags 的 key 是配置项名称
func Load(path string, flags map[string]*pflag.Flag) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, flag := range flags {
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", key, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default 返回只包含默认值的配置
func Default() *Config {
	cfg, err := Load("", nil)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Validate 检查配置是否完整
func (c *Config) Validate() error {
	var errs []error
	required := []struct {
		key   string
		value string
	}{
		{"migrator.base_dir", c.Migrator.BaseDir},
		{"ceph.source_cinder_pool", c.Ceph.SourceCinderPool},
		{"ceph.source_ephemeral_pool", c.Ceph.SourceEphemeralPool},
		{"ceph.destination_cinder_pool", c.Ceph.DestinationCinderPool},
		{"ceph.destination_ephemeral_pool", c.Ceph.DestinationEphemeralPool},
		{"ceph.privileged_client", c.Ceph.PrivilegedClient},
		{"ceph.migrator_client", c.Ceph.MigratorClient},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, fmt.Errorf("%s must not be empty", r.key))
		}
	}
	if c.Migrator.Port <= 0 || c.Migrator.Port > 65535 {
		errs = append(errs, fmt.Errorf("migrator.port %d out of range", c.Migrator.Port))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be json or console", c.Log.Format))
	}
	return errors.Join(errs...)
}

// SourcePools 由特权身份管理的源端存储池
func (c *Config) SourcePools() []string {
	return []string{c.Ceph.SourceCinderPool, c.Ceph.SourceEphemeralPool}
}

// JournalEnabled 是否记录迁移过程
func (c *Config) JournalEnabled() bool {
	return c.Journal.Path != ""
}
