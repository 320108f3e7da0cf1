//go:build mage

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/joho/godotenv"
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"

	"github.com/csg33k/billed/internal/session"
)

const binary = "bin/billed"

// Build tidies deps, then compiles to ./bin/billed.
func Build() error {
	mg.Deps(Tidy)
	fmt.Println(">> Building server binary...")
	return sh.Run("go", "build", "-o", binary, "./cmd/server")
}

// Run builds then executes the binary.
func Run() error {
	mg.Deps(Build)
	fmt.Println(">> Starting server on :8080 ...")
	return sh.RunV("./" + binary)
}

// Dev starts the server via go run with debug logging and in-memory storage.
func Dev() error {
	fmt.Println(">> Dev mode: go run ./cmd/server ...")
	cmd := exec.Command("go", "run", "./cmd/server")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), "PORT=8080", "LOG_LEVEL=debug", "STORAGE_DRIVER=memory")
	return cmd.Run()
}

// Tidy runs go mod tidy.
func Tidy() error {
	fmt.Println(">> go mod tidy...")
	return sh.Run("go", "mod", "tidy")
}

// Test runs all unit tests with the race detector.
func Test() error {
	fmt.Println(">> Running tests...")
	return sh.RunV("go", "test", "-race", "./...")
}

// Integration runs the postgres and minio adapter tests against the services
// configured in .env. The firestore test runs when FIRESTORE_EMULATOR_HOST
// is set.
func Integration() error {
	fmt.Println(">> Running integration tests...")
	env := map[string]string{
		"RUN_PG_INTEGRATION":    "true",
		"RUN_MINIO_INTEGRATION": "true",
	}
	return sh.RunWithV(env, "go", "test", "-count=1",
		"./internal/adapters/postgres/...",
		"./internal/adapters/minio/...",
		"./internal/adapters/firestore/...",
	)
}

// Lint runs golangci-lint if available.
func Lint() error {
	if _, err := exec.LookPath("golangci-lint"); err != nil {
		fmt.Println(">> golangci-lint not found; skipping.")
		return nil
	}
	return sh.Run("golangci-lint", "run", "./...")
}

// Hash prints the bcrypt hash of password for a users entry in config.yaml.
func Hash(password string) error {
	h, err := session.HashPassword(password)
	if err != nil {
		return err
	}
	fmt.Println(h)
	return nil
}

// Clean removes build artifacts and the local SQLite DB.
func Clean() error {
	fmt.Println(">> Cleaning...")
	if err := os.RemoveAll("bin"); err != nil {
		return err
	}
	return sh.Rm("billed.db")
}

// Install builds and installs the binary to $GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	return sh.Run("go", "install", "./cmd/server")
}

func init() {
	err := godotenv.Load()
	if err != nil {
		slog.Warn("error loading .env file", "err", err)
	}
}
