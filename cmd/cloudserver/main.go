// Command cloudserver runs the multi-backend data gateway and its
// replication route handler as a single HTTP process.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/minio/cli"

	"github.com/scality/cloudserver/internal/backbeat"
	"github.com/scality/cloudserver/internal/config"
	"github.com/scality/cloudserver/internal/datastore"
	"github.com/scality/cloudserver/internal/gateway"
	"github.com/scality/cloudserver/internal/logger"
	"github.com/scality/cloudserver/internal/metadata"
)

var flags = []cli.Flag{
	cli.StringFlag{
		Name:  "config, c",
		Usage: "path to the gateway's locationConstraints YAML file",
		Value: "config.yaml",
	},
	cli.StringFlag{
		Name:  "address, a",
		Usage: "address the replication route handler listens on, overriding listenAddress in the config file",
	},
	cli.BoolFlag{
		Name:  "json",
		Usage: "emit logs as JSON lines instead of text",
	},
}

func main() {
	app := cli.NewApp()
	app.Name = "cloudserver"
	app.Usage = "multi-backend data gateway and replication router"
	app.Flags = flags
	app.Action = run
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	if ctx.Bool("json") {
		logger.SetJSONOutput(true)
	}

	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		return fmt.Errorf("cloudserver: %w", err)
	}

	reg, err := config.BuildRegistry(cfg)
	if err != nil {
		return fmt.Errorf("cloudserver: %w", err)
	}

	gw := gateway.New(reg)
	store := datastore.New(gw, metadata.NopKMS{})
	meta := metadata.NewMemStore()

	handler := backbeat.New(reg, store, meta)
	router := mux.NewRouter().SkipClean(true)
	handler.Register(router)

	addr := ctx.String("address")
	if addr == "" {
		addr = cfg.ListenAddress
	}
	if addr == "" {
		addr = ":8000"
	}
	logger.Info(context.Background(), fmt.Sprintf("cloudserver listening on %s", addr))
	return http.ListenAndServe(addr, router)
}
