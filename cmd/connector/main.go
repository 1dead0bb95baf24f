package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"

	"github.com/mnewlive/compliance-connector/callbacks"
	"github.com/mnewlive/compliance-connector/callbacks/httpsink"
	"github.com/mnewlive/compliance-connector/connector"
	"github.com/mnewlive/compliance-connector/internal/config"
	"github.com/mnewlive/compliance-connector/server"
	"github.com/mnewlive/compliance-connector/tokens"
	tokenrepofake "github.com/mnewlive/compliance-connector/tokens/repofake"
	"github.com/mnewlive/compliance-connector/tokens/sqliterepo"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running server: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Server stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	_ = godotenv.Load()

	c := config.New()
	displayAppname(c.GetAppName())

	handler, err := buildServer(c)
	if err != nil {
		return fmt.Errorf("buildServer: %w", err)
	}

	srv := &http.Server{Addr: c.GetPort(), Handler: handler}
	go listenAndServe(srv)
	waitForStopSignal()
	returnError = shutdown(srv)
	return returnError
}

func buildServer(c config.Config) (*server.Server, error) {
	repo, err := tokenRepo(c)
	if err != nil {
		return nil, fmt.Errorf("tokenRepo: %w", err)
	}

	tokenService, err := tokens.NewService(repo)
	if err != nil {
		return nil, fmt.Errorf("tokens.NewService: %w", err)
	}

	key, err := signingKey(c)
	if err != nil {
		return nil, fmt.Errorf("signingKey: %w", err)
	}

	sink := httpsink.New(c.GetCallbackBaseURL(), c.GetProviderCode(), key)
	dispatcher, err := callbacks.NewDispatcher(sink)
	if err != nil {
		return nil, fmt.Errorf("callbacks.NewDispatcher: %w", err)
	}

	connectorService, err := connector.New(tokenService, dispatcher)
	if err != nil {
		return nil, fmt.Errorf("connector.New: %w", err)
	}

	return server.New(c, connectorService)
}

func tokenRepo(c config.Config) (tokens.Repo, error) {
	path := c.GetDatabasePath()
	if path == "" {
		log.Printf("DATABASE_PATH not set, using in-memory token store\n")
		return tokenrepofake.NewFakeTokenRepo(), nil
	}
	return sqliterepo.Open(path)
}

func signingKey(c config.Config) (*rsa.PrivateKey, error) {
	path := c.GetPrivateKeyPath()
	if path == "" {
		log.Printf("PRIVATE_KEY_PATH not set, generating ephemeral callback signing key\n")
		return rsa.GenerateKey(rand.Reader, 2048)
	}

	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	return jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
}

func listenAndServe(server *http.Server) error {
	log.Printf("Server listening on %s\n", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
