// Command precatorios-admin runs one-off maintenance against the database.
//
//	precatorios-admin migrate
//	precatorios-admin setup -email ana@example.com -name "Ana Souza"
//	precatorios-admin purge-sessions
//
// setup reads the password from ADMIN_PASSWORD when -password is empty.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"precatorios/internal/auth"
	"precatorios/internal/cli"
	applog "precatorios/internal/log"
	"precatorios/internal/storage"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentApp)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	switch os.Args[1] {
	case "migrate":
		repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
		repo.Close()
		v, dirty, err := storage.MigrationVersion(storage.DSN(cfg.SQLiteDBPath))
		if err != nil {
			cli.Fatal(logger, "Failed to read schema version", err)
		}
		logger.Info("Schema up to date", "version", v, "dirty", dirty)

	case "setup":
		fs := flag.NewFlagSet("setup", flag.ExitOnError)
		email := fs.String("email", "", "administrator e-mail")
		name := fs.String("name", "", "administrator full name")
		password := fs.String("password", "", "administrator password (default $ADMIN_PASSWORD)")
		_ = fs.Parse(os.Args[2:])
		if *password == "" {
			*password = os.Getenv("ADMIN_PASSWORD")
		}

		repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
		defer repo.Close()
		svc, err := auth.NewService(repo, cfg.JWTSecret, cfg.AccessTokenExpiry)
		if err != nil {
			cli.Fatal(logger, "Failed to initialize auth", err)
		}
		p, err := svc.Setup(ctx, *email, *name, *password)
		if err != nil {
			cli.Fatal(logger, "Failed to create administrator", err)
		}
		logger.Info("Administrator created", applog.FieldUserID, p.ID, "email", p.Email)

	case "purge-sessions":
		repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
		defer repo.Close()
		svc, err := auth.NewService(repo, cfg.JWTSecret, cfg.AccessTokenExpiry)
		if err != nil {
			cli.Fatal(logger, "Failed to initialize auth", err)
		}
		n, err := svc.PurgeExpiredSessions(ctx)
		if err != nil {
			cli.Fatal(logger, "Failed to purge sessions", err)
		}
		logger.Info("Sessions purged", "deleted", n)

	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: precatorios-admin <migrate|setup|purge-sessions> [flags]")
}
