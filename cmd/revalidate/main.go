// Command revalidate asks a running folio-mcp server to evict cached
// content for a site path.
//
//	revalidate [-socket PATH] [-secret TOKEN] [-keys] [PATH]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/leonardcser/folio-mcp/internal/config"
	"github.com/leonardcser/folio-mcp/internal/control"
)

func main() {
	sock := flag.String("socket", defaultString(os.Getenv("FOLIO_CONTROL_SOCK"), config.DefaultControlSocket()), "control socket path")
	secret := flag.String("secret", os.Getenv("REVALIDATION_TOKEN"), "revalidation token")
	listKeys := flag.Bool("keys", false, "list cached keys instead of revalidating")
	timeout := flag.Duration("timeout", 5*time.Second, "request timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	client := control.NewClient(*sock)

	if *listKeys {
		keys, err := client.Keys(ctx, *secret)
		if err != nil {
			fail(err)
		}
		for _, k := range keys {
			fmt.Println(k)
		}
		return
	}

	path := flag.Arg(0)
	if path == "" {
		path = "/"
	}
	res, err := client.Revalidate(ctx, path, *secret)
	if err != nil {
		fail(err)
	}
	fmt.Printf("revalidated %s: %d entries evicted\n", res.Path, res.Evicted)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "revalidate:", err)
	os.Exit(1)
}

func defaultString(v, d string) string {
	if v == "" {
		return d
	}
	return v
}
