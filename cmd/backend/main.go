package main

import (
	"context"

	"github.com/sirupsen/logrus"

	"mutuelle/internal/app/config"
	"mutuelle/internal/pkg"
)

// @title Mutuelle API
// @version 1.0
// @description API брокера страхования здоровья: котировки, оформление подписки у страховщика, документы и личный кабинет.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	logrus.Info("App start")

	cfg, err := config.NewConfig()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	cfg.SetupLogger()

	app, err := pkg.NewApp(context.Background(), cfg)
	if err != nil {
		logrus.Fatalf("init: %v", err)
	}

	if err := app.RunApp(); err != nil {
		logrus.Fatal(err)
	}
	logrus.Info("App terminated")
}
