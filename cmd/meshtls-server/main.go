package main

import (
	"context"
	"fmt"
	"os"

	"github.com/yndnr/meshtls/internal/cli/command"
	"github.com/yndnr/meshtls/internal/core/identity"
	"github.com/yndnr/meshtls/internal/server/mtlsserver"
	"github.com/yndnr/meshtls/internal/telemetry/logger"
)

// serviceName appears in the greeting body.
const serviceName = "meshtls-server"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return command.App(mtlsserver.HandlerFunc(greet)).Run(os.Args)
}

// greet answers a session with a fixed HTTP/1.1 response and closes it.
// The request, if any, is not read.
func greet(ctx context.Context, sess *mtlsserver.Session) {
	if _, err := sess.Write(greeting(sess.Identity())); err != nil {
		logger.L(ctx).Debug("greeting not delivered", "error", err)
	}
}

func greeting(id identity.Identity) []byte {
	body := fmt.Sprintf("OK from %s\npeer: %s\n", serviceName, id)
	return []byte("HTTP/1.1 200 OK\r\n" +
		"Content-Type: text/plain\r\n" +
		fmt.Sprintf("Content-Length: %d\r\n", len(body)) +
		"Connection: close\r\n" +
		"\r\n" + body)
}
