// Command libos-echo runs a demikernel-style listening TCP socket on the
// in-process Loopback transport and drives LibOS.Poll until interrupted, for
// exercising the libOS core without a real NIC. It issues no accept, push or
// pop, so no data is echoed back.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"syscall"
	"time"

	"github.com/HelloKayT/demikernel-go"
	"github.com/HelloKayT/demikernel-go/internal/logging"
	"github.com/HelloKayT/demikernel-go/internal/transport"
	"github.com/HelloKayT/demikernel-go/internal/wire"
)

func main() {
	var (
		port    = flag.Uint("port", 7, "local TCP port to listen on")
		backlog = flag.Int("backlog", 16, "max half-open + ready connections")
		verbose = flag.Bool("v", false, "verbose output")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	lb := transport.NewLoopback()
	localLink := wire.MacAddress{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	localAddr := demikernel.SockAddr{IP: [4]byte{127, 0, 0, 1}, Port: uint16(*port)}

	l := demikernel.NewLibOS(localLink, lb, demikernel.WithLogger(logger))

	qd, err := l.Socket(demikernel.AFInet, demikernel.SockStream, 0)
	if err != nil {
		logger.Error("socket failed", "error", err)
		os.Exit(1)
	}
	if err := l.Bind(qd, localAddr); err != nil {
		logger.Error("bind failed", "error", err)
		os.Exit(1)
	}
	if err := l.Listen(qd, *backlog); err != nil {
		logger.Error("listen failed", "error", err)
		os.Exit(1)
	}

	logger.Info("listening", "addr", fmt.Sprintf("%d.%d.%d.%d:%d", localAddr.IP[0], localAddr.IP[1], localAddr.IP[2], localAddr.IP[3], localAddr.Port))
	fmt.Printf("libos-echo listening on port %d (loopback transport)\n", *port)
	fmt.Printf("Send SIGUSR1 (kill -USR1 %d) to dump goroutine stacks\n", os.Getpid())

	stackDumpCh := make(chan os.Signal, 1)
	signal.Notify(stackDumpCh, syscall.SIGUSR1)
	go func() {
		for range stackDumpCh {
			buf := make([]byte, 1024*1024)
			n := runtime.Stack(buf, true)
			fmt.Fprintf(os.Stderr, "\n=== GOROUTINE STACK DUMP ===\n%s\n", buf[:n])
			pprof.Lookup("goroutine").WriteTo(os.Stderr, 2)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go pollLoop(l, logger, done)

	<-sigCh
	logger.Info("received shutdown signal")
	close(done)
	time.Sleep(50 * time.Millisecond)
	os.Exit(0)
}

// pollLoop drives LibOS.Poll on a tight interval, standing in for the
// cooperative round a real single-threaded libOS event loop would run.
func pollLoop(l *demikernel.LibOS, logger *logging.Logger, done <-chan struct{}) {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := l.Poll(); err != nil {
				logger.Warn("poll failed", "error", err)
			}
		}
	}
}
