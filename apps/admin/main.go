package main

import (
	"log"
	"os"

	"github.com/trezcool/masomo-dashboard/core"
	logsvc "github.com/trezcool/masomo-dashboard/services/logger"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf, err := core.NewConfig()
	errAndDie(err)

	rollbarLogger := logsvc.NewRollbarLogger(logger, conf)
	rollbarLogger.Enable(!conf.Debug)

	// start CLI
	cli := commandLine{
		conf:   conf,
		logger: rollbarLogger,
		out:    os.Stdout,
		token:  os.Getenv(tokenEnvVar),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
