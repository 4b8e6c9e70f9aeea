package core

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env          string // DEV (local; default), TEST, QA, PROD
		Build        string
		Debug        bool
		TestMode     bool
		AppName      string
		SecretKey    string
		RollbarToken string

		Server    ServerConfig
		Backend   BackendConfig
		Dashboard DashboardConfig
		Tickets   TicketsConfig
	}

	ServerConfig struct {
		Host            string
		Address         string
		DebugHost       string
		DisableReqLogs  bool
		ShutdownTimeout time.Duration
	}

	// BackendConfig locates the Masomo REST API the dashboard reads from and writes to.
	BackendConfig struct {
		BaseURL    string
		Timeout    time.Duration
		RetryCount int
	}

	DashboardConfig struct {
		PageSize int
	}

	TicketsConfig struct {
		Transport    string // "poll" or "socket"
		PollInterval time.Duration
		SocketURL    string
	}
)

const (
	TicketTransportPoll   = "poll"
	TicketTransportSocket = "socket"
)

// NewConfig loads the configuration from defaults, the optional `config/.env.<env>` file and the environment.
// Environment variables are prefixed with the upper-cased env name, e.g. DEV_BACKEND_BASEURL.
func NewConfig() (*Config, error) {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Masomo Dashboard")
	v.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.disableReqLogs", false)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("backend.baseURL", "http://localhost:8000/v1")
	v.SetDefault("backend.timeout", 10*time.Second)
	v.SetDefault("backend.retryCount", 2)
	v.SetDefault("dashboard.pageSize", 10)
	v.SetDefault("tickets.transport", TicketTransportPoll)
	v.SetDefault("tickets.pollInterval", 5*time.Second)
	v.SetDefault("tickets.socketURL", "ws://localhost:8000/v1/tickets/ws")

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	if root, err := Getwd(); err == nil {
		dotEnvPath := filepath.Join(root, "config", ".env."+strings.ToLower(env))
		if _, err := os.Stat(dotEnvPath); err == nil {
			if err := godotenv.Load(dotEnvPath); err != nil {
				return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
			}
		} else if !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "checking %s", dotEnvPath)
		}
	}
	v.AutomaticEnv()

	conf := &Config{
		Env:          env,
		Build:        v.GetString("build"),
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		AppName:      v.GetString("appName"),
		SecretKey:    v.GetString("secretKey"),
		RollbarToken: v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Address:         v.GetString("server.address"),
			DebugHost:       v.GetString("server.debugHost"),
			DisableReqLogs:  v.GetBool("server.disableReqLogs"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
		},
		Backend: BackendConfig{
			BaseURL:    strings.TrimRight(v.GetString("backend.baseURL"), "/"),
			Timeout:    v.GetDuration("backend.timeout"),
			RetryCount: v.GetInt("backend.retryCount"),
		},
		Dashboard: DashboardConfig{
			PageSize: v.GetInt("dashboard.pageSize"),
		},
		Tickets: TicketsConfig{
			Transport:    strings.ToLower(v.GetString("tickets.transport")),
			PollInterval: v.GetDuration("tickets.pollInterval"),
			SocketURL:    v.GetString("tickets.socketURL"),
		},
	}
	if conf.Tickets.Transport != TicketTransportPoll && conf.Tickets.Transport != TicketTransportSocket {
		return nil, errors.Errorf("unknown tickets transport %q", conf.Tickets.Transport)
	}
	return conf, nil
}

// Getwd tries to find the project root (the directory holding go.mod).
// go-test changes the working directory to the test package being run during tests,
// so the root is searched upwards from the current directory.
func Getwd() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	currDir := wd
	for {
		if fi, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil && !fi.IsDir() {
			return currDir, nil
		}
		newDir := filepath.Dir(currDir)
		if newDir == string(os.PathSeparator) || newDir == currDir {
			return "", errors.New("project root not found")
		}
		currDir = newDir
	}
}
