package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/commerce-core/pkg/config"
	"github.com/angelmondragon/commerce-core/pkg/db"
	"github.com/angelmondragon/commerce-core/pkg/logger"
	"github.com/angelmondragon/commerce-core/pkg/migrate"
)

const usage = `usage: migrate [-dir path] <command> [arg]

commands:
  up                 apply every pending migration
  down               roll back the latest migration
  status             list migrations and whether they are applied
  to <version>       migrate up or down to YYYYMMDDHHMMSS
  create <name>      write an empty migration into -dir (default %s)
  validate           check filenames, goose markers and tenant columns
`

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	dir := flag.String("dir", "", "read migrations from this directory instead of the embedded schema")
	flag.Usage = func() { fmt.Fprintf(os.Stderr, usage, migrate.DefaultDir) }
	flag.Parse()

	command, arg := flag.Arg(0), flag.Arg(1)
	if command == "" {
		flag.Usage()
		os.Exit(2)
	}

	// offline commands
	switch command {
	case "create":
		target := *dir
		if target == "" {
			target = migrate.DefaultDir
		}
		path, err := migrate.Create(target, arg, time.Now())
		exitOn(err)
		fmt.Println("created", path)
		return
	case "validate":
		exitOn(migrate.Validate(migrate.Source(*dir)))
		fmt.Println("migrations valid")
		return
	}

	cfg, err := config.Load()
	exitOn(err)
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":     cfg.App.Env,
		"command": command,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	exitOn(err)
	runner, err := migrate.NewRunner(sqlDB, migrate.Source(*dir))
	exitOn(err)

	switch command {
	case "up":
		applied, err := runner.Up(ctx)
		exitOn(err)
		printResults(applied)
	case "down":
		res, err := runner.Down(ctx)
		exitOn(err)
		if res != nil {
			printResults([]migrate.Result{*res})
		}
	case "to":
		if arg == "" {
			exitOn(fmt.Errorf("to: version argument required"))
		}
		moved, err := runner.To(ctx, arg)
		exitOn(err)
		printResults(moved)
	case "status":
		states, err := runner.Status(ctx)
		exitOn(err)
		for _, st := range states {
			mark := "pending"
			if st.Applied {
				mark = "applied"
			}
			fmt.Printf("%-8s %d %s\n", mark, st.Version, st.Path)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
	logg.Info(ctx, "migrate finished")
}

func printResults(results []migrate.Result) {
	if len(results) == 0 {
		fmt.Println("nothing to do")
		return
	}
	for _, res := range results {
		fmt.Printf("%-4s %d %s\n", res.Direction, res.Version, res.Path)
	}
}

func exitOn(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, "migrate:", err)
	os.Exit(1)
}
