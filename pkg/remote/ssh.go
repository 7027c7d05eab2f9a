package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SSHConfig SSH 执行器配置
type SSHConfig struct {
	Host string
	Port int
	User string
	// KeyFile 私钥文件路径
	KeyFile string
	// KnownHostsFile 为空时不校验主机密钥
	KnownHostsFile string
	DialTimeout    time.Duration
}

func (c SSHConfig) addr() string {
	port := c.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// SSHExecutor 基于 SSH 的 Executor 实现
// 复用同一个 SSH 连接，命令串行执行
type SSHExecutor struct {
	cfg          SSHConfig
	clientConfig *ssh.ClientConfig

	mu     sync.Mutex
	client *ssh.Client
}

// NewSSHExecutor 从私钥文件创建 SSHExecutor
func NewSSHExecutor(cfg SSHConfig) (*SSHExecutor, error) {
	if cfg.KeyFile == "" {
		return nil, errors.New("ssh key file is required")
	}
	keyData, err := os.ReadFile(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("read ssh key file: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(keyData)
	if err != nil {
		return nil, fmt.Errorf("parse ssh key file %s: %w", cfg.KeyFile, err)
	}
	return NewSSHExecutorWithSigner(cfg, signer)
}

// NewSSHExecutorWithSigner 使用已有的 signer 创建 SSHExecutor
func NewSSHExecutorWithSigner(cfg SSHConfig, signer ssh.Signer) (*SSHExecutor, error) {
	if cfg.Host == "" {
		return nil, errors.New("ssh host is required")
	}
	if cfg.User == "" {
		return nil, errors.New("ssh user is required")
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 30 * time.Second
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if cfg.KnownHostsFile != "" {
		cb, err := knownhosts.New(cfg.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("load known hosts file: %w", err)
		}
		hostKeyCallback = cb
	}

	return &SSHExecutor{
		cfg: cfg,
		clientConfig: &ssh.ClientConfig{
			User:            cfg.User,
			Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
			HostKeyCallback: hostKeyCallback,
			Timeout:         cfg.DialTimeout,
		},
	}, nil
}

// Execute 实现 Executor 接口
func (e *SSHExecutor) Execute(ctx context.Context, command string) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	logger := zerolog.Ctx(ctx)

	client, err := e.connect(ctx)
	if err != nil {
		return nil, err
	}

	session, err := client.NewSession()
	if err != nil {
		// 连接可能已经断开，重连一次
		logger.Debug().Err(err).Str("host", e.cfg.Host).Msg("SSH session failed, reconnecting")
		e.closeClient()
		client, err = e.connect(ctx)
		if err != nil {
			return nil, err
		}
		session, err = client.NewSession()
		if err != nil {
			return nil, fmt.Errorf("open ssh session on %s: %w", e.cfg.Host, err)
		}
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = session.Close()
		case <-done:
		}
	}()

	logger.Debug().Str("host", e.cfg.Host).Str("command", command).Msg("Executing remote command")
	err = session.Run(command)

	result := &Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	var exitErr *ssh.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		result.ExitStatus = exitErr.ExitStatus()
	case ctx.Err() != nil:
		return nil, fmt.Errorf("run remote command on %s: %w", e.cfg.Host, ctx.Err())
	default:
		return nil, fmt.Errorf("run remote command on %s: %w", e.cfg.Host, err)
	}

	logger.Debug().
		Str("host", e.cfg.Host).
		Int("exit_status", result.ExitStatus).
		Msg("Remote command finished")

	return result, nil
}

// connect 返回已有连接，没有时新建
func (e *SSHExecutor) connect(ctx context.Context) (*ssh.Client, error) {
	if e.client != nil {
		return e.client, nil
	}

	addr := e.cfg.addr()
	dialer := net.Dialer{Timeout: e.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, e.clientConfig)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	e.client = ssh.NewClient(c, chans, reqs)
	return e.client, nil
}

func (e *SSHExecutor) closeClient() {
	if e.client != nil {
		_ = e.client.Close()
		e.client = nil
	}
}

// Close 关闭 SSH 连接
func (e *SSHExecutor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closeClient()
	return nil
}

var _ Executor = (*SSHExecutor)(nil)
