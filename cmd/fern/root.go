package main

import (
	"encoding/json"
	"io"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Ramsey-B/fern/config"
	fcontext "github.com/Ramsey-B/fern/pkg/context"
)

// cli carries what every command needs once the root pre-run has loaded it
type cli struct {
	cfg    *config.Config
	logger ectologger.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:          "fern",
		Short:        "Entity deduplication and merge engine",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			c.cfg = cfg
			c.logger = newLogger(cfg)
			return nil
		},
	}

	root.AddCommand(
		newServeCmd(c),
		newMigrateCmd(c),
		newDetectCmd(c),
		newMergeCmd(c),
		newAnalyzeCmd(c),
	)
	return root
}

// newLogger builds the zap backed logger. Request values stored on the context are
// added to every message.
func newLogger(cfg *config.Config) ectologger.Logger {
	var zapCfg zap.Config
	if cfg.PrettyLogs {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	if level, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}

	zapLogger, err := zapCfg.Build()
	if err != nil {
		zapLogger = zap.NewNop()
	}
	zapLogger = zapLogger.With(zap.String("app", cfg.AppName), zap.String("version", cfg.Version))

	return zapadapter.NewZapEctoLogger(zapLogger, withContextFields)
}

func withContextFields(msg ectologger.EctoLogMessage) ectologger.EctoLogMessage {
	if msg.Ctx == nil {
		return msg
	}
	fields := fcontext.LogFields(msg.Ctx)
	if len(fields) == 0 {
		return msg
	}
	for k, v := range msg.Fields {
		fields[k] = v
	}
	msg.Fields = fields
	return msg
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
