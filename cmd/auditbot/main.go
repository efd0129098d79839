package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dgctx/dgctx"
	"github.com/dgctx/dgctx/database"
	"github.com/dgctx/dgctx/store"
	"github.com/dgctx/dgctx/uploader"
)

type config struct {
	Token       string `env:"DISCORD_TOKEN,required"`
	Shards      int    `env:"SHARD_COUNT" envDefault:"0"`
	Workers     int    `env:"HANDLER_WORKERS" envDefault:"16"`
	DataDir     string `env:"DATA_DIR" envDefault:"./data"`
	GuildDBPath string `env:"GUILD_DB_PATH" envDefault:"./guilds.json"`
	PostgresURL string `env:"POSTGRES_URL"`
	UploadURL   string `env:"UPLOAD_URL"`
	PublicURL   string `env:"UPLOAD_PUBLIC_URL"`
	UploadToken string `env:"UPLOAD_TOKEN"`
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using system environment")
	}

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	logger := newLogger("auditbot")

	st, err := store.NewStore(cfg.DataDir, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer st.Close()

	var db database.DB
	if cfg.PostgresURL != "" {
		db, err = database.NewPSQLDatabase(&database.Config{Log: logger.Named("db"), ConnStr: cfg.PostgresURL})
	} else {
		db, err = database.NewJsonDatabase(cfg.GuildDBPath)
	}
	if err != nil {
		logger.Fatal("failed to open guild database", zap.Error(err))
	}
	defer db.Close()

	client, err := dgctx.New(cfg.Token,
		dgctx.WithLogger(logger.Named("client")),
		dgctx.WithStore(st),
		dgctx.WithShardCount(cfg.Shards),
		dgctx.WithWorkers(cfg.Workers),
	)
	if err != nil {
		logger.Fatal("failed to create client", zap.Error(err))
	}

	var up *uploader.Client
	if cfg.UploadURL != "" {
		up = uploader.NewClient(cfg.UploadURL, cfg.PublicURL, cfg.UploadToken)
	}

	newBot(client, db, st, up, logger)

	if err := client.Open(); err != nil {
		logger.Fatal("failed to open client", zap.Error(err))
	}
	defer client.Close()

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM)
	<-sc
}

func newLogger(name string) *zap.Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "",
		CallerKey:      "",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalColorLevelEncoder,
		EncodeTime:     zapcore.RFC3339TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.Lock(os.Stdout),
		zap.NewAtomicLevelAt(zapcore.DebugLevel),
	)
	return zap.New(core, zap.AddCaller()).Named(name)
}
