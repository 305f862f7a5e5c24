// Command goserver is the process launcher named in spec.md §1/§6.
// Ported from original_source/src/main.cpp: read ./config.ini, build a
// Server, register routes, run, exit non-zero with a logged diagnostic
// on any startup failure.
package main

import (
	"fmt"
	"os"

	"github.com/kfcemployee/goserver/httptype"
	"github.com/kfcemployee/goserver/ini"
	"github.com/kfcemployee/goserver/obslog"
	"github.com/kfcemployee/goserver/reactor"
	"github.com/kfcemployee/goserver/router"
)

const minPort = 1024

func main() {
	log := obslog.New(os.Stderr, obslog.Info, 8)
	log.Start()
	defer log.Stop()

	if err := run(log); err != nil {
		log.Fatalf("startup failed: %v", err)
		log.Stop()
		fmt.Fprintln(os.Stderr, "goserver:", err)
		os.Exit(1)
	}
}

func run(log *obslog.Logger) error {
	raw, err := os.ReadFile("./config.ini")
	if err != nil {
		return fmt.Errorf("read config.ini: %w", err)
	}
	doc, err := ini.Parse(string(raw), ini.Possible)
	if err != nil {
		return fmt.Errorf("parse config.ini: %w", err)
	}

	port, err := doc.GetInt("server", "port", 8888)
	if err != nil {
		return fmt.Errorf("server.port: %w", err)
	}
	if port < minPort {
		return fmt.Errorf("server.port %d is below the minimum of %d", port, minPort)
	}
	address := doc.Get("server", "address", "")

	srv := reactor.New()
	srv.SetTriggerMode(true, true)
	srv.SetLogger(log)

	if err := srv.HandleDefault(notFoundHandler); err != nil {
		return fmt.Errorf("register default handler: %w", err)
	}
	if err := srv.Handle("/", rootHandler); err != nil {
		return fmt.Errorf("register routes: %w", err)
	}

	if err := srv.Listen(address, port); err != nil {
		return fmt.Errorf("listen %s:%d: %w", address, port, err)
	}

	log.Infof("listening on %s:%d", address, port)
	return srv.Run()
}

func rootHandler(c *router.Context) {
	c.SetHeader("Content-Type", "text/plain")
	c.SendDirect(httptype.StatusOK, []byte("hello\n"))
}

func notFoundHandler(c *router.Context) {
	c.SetHeader("Content-Type", "text/plain")
	c.SendDirect(httptype.StatusNotFound, []byte("not found\n"))
}
