// Package flags holds the CLI flags shared by the project binaries.
package flags

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/vitalsync/device-transfer-backend/common"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String(LogServiceFlag.Name)

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

var ListenAddrFlag = &cli.StringFlag{
	Name:  "listen-addr",
	Value: "0.0.0.0:0",
	Usage: "address the transfer server binds; port 0 asks the OS for a free port",
}

var AdminAddrFlag = &cli.StringFlag{
	Name:  "admin-addr",
	Value: "127.0.0.1:8081",
	Usage: "address for the local admin API",
}

var SecretStoreFlag = &cli.StringFlag{
	Name:  "secret-store",
	Value: "file://./secrets",
	Usage: "secret store location: file://<dir>, bolt://<path> or vault://<host:port>/<mount>/<path>?token=<token>",
}

var DeviceNameFlag = &cli.StringFlag{
	Name:  "device-name",
	Value: "vitalsync-device",
	Usage: "device name presented in the TLS certificate and the status endpoint",
}

var DataFileFlag = &cli.StringFlag{
	Name:  "data-file",
	Usage: "JSON file with categories and samples to serve; demo data is served when unset",
}

var AllowInsecureFlag = &cli.BoolFlag{
	Name:  "allow-insecure",
	Value: false,
	Usage: "serve without TLS when no identity can be obtained (NOT for production)",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}
var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: "device-transfer-backend",
	Usage: "add 'service' tag to logs",
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint on the admin API",
}

var CommonFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	LogServiceFlag,
	PprofFlag,
}
