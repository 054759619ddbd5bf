// Command kcache inspects and operates a keyedcache backend.
//
//	KCACHE_BACKEND=redis KCACHE_REDIS_URL=redis://localhost:6379 kcache get book42
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, a := newRootCmd()
	err := root.ExecuteContext(ctx)
	if cerr := a.close(context.Background()); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		if !errors.Is(err, errMiss) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		stop()
		os.Exit(1)
	}
}
