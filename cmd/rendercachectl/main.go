// Command rendercachectl inspects and invalidates render caches kept in
// disk, Redis, S3 or MinIO stores.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/unkn0wn-root/rendercache/internal/cli"
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	cli.InitLogger(os.Stderr)

	if err := cli.NewApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
