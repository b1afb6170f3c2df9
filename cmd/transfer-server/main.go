package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/vitalsync/device-transfer-backend/adminapi"
	"github.com/vitalsync/device-transfer-backend/audit"
	"github.com/vitalsync/device-transfer-backend/cmd/flags"
	"github.com/vitalsync/device-transfer-backend/common"
	"github.com/vitalsync/device-transfer-backend/identity"
	"github.com/vitalsync/device-transfer-backend/interfaces"
	"github.com/vitalsync/device-transfer-backend/pairing"
	"github.com/vitalsync/device-transfer-backend/provider"
	"github.com/vitalsync/device-transfer-backend/secretstore"
	"github.com/vitalsync/device-transfer-backend/server"
)

var appFlags = append([]cli.Flag{
	flags.ListenAddrFlag,
	flags.AdminAddrFlag,
	flags.SecretStoreFlag,
	flags.DeviceNameFlag,
	flags.DataFileFlag,
	flags.AllowInsecureFlag,
}, flags.CommonFlags...)

func main() {
	app := &cli.App{
		Name:    "transfer-server",
		Usage:   "Serve paired devices over TLS and expose a local admin API",
		Version: common.Version,
		Flags:   appFlags,
		Action:  run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)
	ctx := context.Background()

	store, err := secretstore.StoreFor(cCtx.String(flags.SecretStoreFlag.Name), logger)
	if err != nil {
		logger.Error("Failed to open secret store", "err", err)
		return err
	}

	deviceName := cCtx.String(flags.DeviceNameFlag.Name)
	identitySvc := identity.NewService(store, deviceName, "VitalSync", logger)
	pairingSvc := pairing.NewService(store, logger)
	if err := pairingSvc.LoadPersistedTokens(ctx); err != nil {
		logger.Error("Failed to load persisted tokens", "err", err)
		return err
	}

	var dataProvider interfaces.DataProvider
	if dataFile := cCtx.String(flags.DataFileFlag.Name); dataFile != "" {
		dataProvider, err = provider.NewFromFile(dataFile)
		if err != nil {
			logger.Error("Failed to load data file", "err", err, "file", dataFile)
			return err
		}
	} else {
		logger.Info("No data file configured, serving demo data")
		dataProvider = provider.NewDemo()
	}

	transfer := server.New(server.Config{
		ListenAddr:    cCtx.String(flags.ListenAddrFlag.Name),
		DeviceName:    deviceName,
		Version:       common.Version,
		AllowInsecure: cCtx.Bool(flags.AllowInsecureFlag.Name),
		Log:           logger,
	}, identitySvc, pairingSvc, dataProvider, audit.NewLogger(logger))

	if err := transfer.Start(ctx); err != nil {
		logger.Error("Failed to start transfer server", "err", err)
		return err
	}
	logger.Info("Transfer server started", "port", transfer.Port())

	admin := adminapi.New(&adminapi.Config{
		ListenAddr:               cCtx.String(flags.AdminAddrFlag.Name),
		EnablePprof:              cCtx.Bool(flags.PprofFlag.Name),
		Log:                      logger,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}, identitySvc, pairingSvc, transfer)
	admin.RunInBackground()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

	logger.Info("Server is running, press Ctrl+C to stop")
	<-exit
	logger.Info("Shutdown signal received")

	admin.Shutdown()
	transfer.Stop()
	logger.Info("Server shutdown complete")
	return nil
}
