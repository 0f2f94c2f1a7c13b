// Command useradd creates a login account in the image-drop database.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"image-drop/internal/config"
	"image-drop/internal/repository/sqlite"
	"image-drop/internal/service"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	username := pflag.StringP("username", "u", "", "name of the account to create")
	dbPath := pflag.String("db", cfg.Database.Path, "path to the sqlite database")
	pflag.Parse()

	if strings.TrimSpace(*username) == "" {
		pflag.Usage()
		os.Exit(2)
	}

	password, err := readPassword()
	if err != nil {
		logger.Fatalf("read password: %v", err)
	}

	ctx := context.Background()
	db, err := sqlite.Open(*dbPath)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	repos, err := sqlite.NewRepositories(ctx, db)
	if err != nil {
		logger.Fatalf("init repositories: %v", err)
	}

	user, err := service.NewUserService(repos.Users).Register(ctx, *username, password)
	if err != nil {
		if errors.Is(err, service.ErrUserAlreadyExists) {
			logger.Fatalf("user %q already exists", *username)
		}
		logger.Fatalf("create user: %v", err)
	}
	logger.WithField("user_id", user.ID).Infof("created user %s", user.Username)
}

// readPassword prompts twice on a terminal and reads one line otherwise.
func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	fmt.Fprint(os.Stderr, "Repeat password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}
