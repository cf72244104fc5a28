package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"time"

	"github.com/idemkey/idemkey"
	"github.com/idemkey/idemkey/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// CLI flags
	configFilenameFlag string
	portFlag           int
	originFlag         string
	providerFlag       string
	dbFilenameFlag     string
	redisAddrFlag      string
	conflictFlag       int
	lockTimeoutFlag    time.Duration
	noLockFlag         bool
	defaultExemptFlag  bool
	verbosityTraceFlag bool
	logFilenameFlag    string

	// this is set by goreleaser
	version string
)

func init() {
	flag.StringVar(&configFilenameFlag, "config", "", "Path to config file")
	flag.IntVar(&portFlag, "port", 8080, "Port to listen on")
	flag.StringVar(&originFlag, "origin", "", "Origin URL to proxy to (overrides config)")
	flag.StringVar(&providerFlag, "provider", "", "Response store provider: memory, sqlite or redis (overrides config)")
	flag.StringVar(&dbFilenameFlag, "db", "idemkey.db", "Response store DB file name for the sqlite provider")
	flag.StringVar(&redisAddrFlag, "redis", "", "Redis address for the redis provider")
	flag.IntVar(&conflictFlag, "conflict", 0, "Status code for replayed duplicates, 0 keeps the stored status")
	flag.DurationVar(&lockTimeoutFlag, "lock-timeout", 0, "Storage lock wait budget (overrides config)")
	flag.BoolVar(&noLockFlag, "no-lock", false, "Disable the storage lock")
	flag.BoolVar(&defaultExemptFlag, "exempt-mode", false, "Default-exempt mode: only marked routes are enforced")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
	flag.StringVar(&logFilenameFlag, "log-file", "", "Log file to use (in addition to stdout)")

	if version == "" {
		version = "DEV"
	}
}

func main() {
	flag.Parse()

	// set log level
	logLevel := zerolog.DebugLevel
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}

	// set up log output to stdout
	// also output to logfile if specified
	logOutputs := make([]io.Writer, 0)
	logOutputs = append(logOutputs, zerolog.ConsoleWriter{Out: os.Stdout})
	if logFilenameFlag != "" {
		if logFileOutput, err := os.OpenFile(logFilenameFlag, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644); err != nil {
			log.Fatal().Err(err).Msg("Cannot open log file")
		} else {
			logOutputs = append(logOutputs, logFileOutput)
		}
	}
	multiWriter := zerolog.MultiLevelWriter(logOutputs...)
	log.Logger = log.Level(logLevel).Output(multiWriter).
		With().Str("version", version).Logger()

	var config Config
	if configFilenameFlag != "" {
		var err error
		config, err = getConfig(configFilenameFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("Could not read config file")
		}
	}

	// flags override config
	if originFlag != "" {
		config.Origin = originFlag
	}
	if providerFlag != "" {
		config.Provider = providerFlag
	}
	if redisAddrFlag != "" {
		config.Redis.Addr = redisAddrFlag
	}
	if conflictFlag != 0 {
		config.ConflictStatus = conflictFlag
	}
	if config.Provider == "" {
		config.Provider = "sqlite"
	}
	if config.Origin == "" {
		log.Fatal().Msg("Please specify origin")
	}

	store := newStore(config)

	opts := []idemkey.Option{
		idemkey.WithLogger(log.Logger),
	}
	if config.ConflictStatus != 0 {
		opts = append(opts, idemkey.WithConflictStatus(config.ConflictStatus))
	}
	if len(config.StoreStatuses) > 0 {
		opts = append(opts, idemkey.WithStoreStatuses(config.StoreStatuses...))
	}
	if noLockFlag || config.Lock.Disabled {
		opts = append(opts, idemkey.WithLockDisabled())
	}
	if lockTimeoutFlag > 0 {
		opts = append(opts, idemkey.WithLockTimeout(lockTimeoutFlag))
	} else if config.Lock.Timeout != "" {
		timeout, err := time.ParseDuration(config.Lock.Timeout)
		if err != nil {
			log.Fatal().Err(err).Msg("Could not parse lock timeout")
		}
		opts = append(opts, idemkey.WithLockTimeout(timeout))
	}
	if defaultExemptFlag || config.DefaultExempt {
		opts = append(opts, idemkey.WithDefaultExempt())
	}

	enf := idemkey.New(store, opts...)

	originURL, err := url.Parse(config.Origin)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not parse origin url")
	}
	proxy := httputil.NewSingleHostReverseProxy(originURL)

	r := chi.NewRouter()
	r.Use(enf.Middleware)
	for _, route := range config.Routes {
		ann := idemkey.Annotations{
			Required: route.Required,
			Exempt:   route.Exempt,
			Manual:   route.Manual,
		}
		log.Info().Str("path", route.Path).Interface("annotations", ann).Msg("Route override")
		r.With(enf.Protect(ann)).Mount(route.Path, proxy)
	}
	r.With(enf.Protect(idemkey.Annotations{})).Mount("/", proxy)

	log.Info().Msgf("Proxying port %v to %s with %s response store", portFlag, config.Origin, config.Provider)
	if err := http.ListenAndServe(fmt.Sprintf(":%d", portFlag), r); err != nil {
		log.Fatal().Err(err).Msg("Server exited")
	}
}

func newStore(config Config) storage.Storage {
	switch config.Provider {
	case "memory":
		return storage.NewMemory()
	case "sqlite":
		dbFilename := dbFilenameFlag
		if config.DB != "" {
			dbFilename = config.DB
		}
		if dbFilename == "memory" {
			dbFilename = "file::memory:?cache=shared"
		}
		var opts []storage.SQLiteOption
		if config.DBMaxAge != "" {
			maxAge, err := time.ParseDuration(config.DBMaxAge)
			if err != nil {
				log.Fatal().Err(err).Msg("Could not parse db max age")
			}
			opts = append(opts, storage.WithMaxAge(maxAge))
		}
		store, err := storage.NewSQLite(dbFilename, opts...)
		if err != nil {
			log.Fatal().Err(err).Msg("Could not open response store")
		}
		return store
	case "redis":
		ttl := 24 * time.Hour
		if config.Redis.TTL != "" {
			parsed, err := time.ParseDuration(config.Redis.TTL)
			if err != nil {
				log.Fatal().Err(err).Msg("Could not parse redis TTL")
			}
			ttl = parsed
		}
		client := redis.NewClient(&redis.Options{
			Addr:     config.Redis.Addr,
			Password: config.Redis.Password,
			DB:       config.Redis.DB,
		})
		return storage.NewRedis(client, ttl)
	default:
		log.Fatal().Msgf("Unsupported response store provider: %s", config.Provider)
		return nil
	}
}
