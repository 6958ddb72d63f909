package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/danielchangsoojones/zendrive-sdk-2/internal/auth"
)

type keyCreator interface {
	CreateKey(ctx context.Context, req auth.CreateKeyRequest) (auth.ApplicationKey, error)
}

// createKey provisions an application key and prints it. The secret is not
// recoverable afterwards.
func createKey(ctx context.Context, args []string, keys keyCreator, out io.Writer) error {
	fs := flag.NewFlagSet("create-key", flag.ContinueOnError)
	fs.SetOutput(out)
	regions := fs.String("regions", "us", "comma separated regions the key may set up in")
	motorcycle := fs.Bool("motorcycle", false, "allow the motorcycle vehicle type")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req := auth.CreateKeyRequest{AllowMotorcycle: *motorcycle}
	for _, r := range strings.Split(*regions, ",") {
		if r = strings.TrimSpace(r); r != "" {
			req.Regions = append(req.Regions, r)
		}
	}
	key, err := keys.CreateKey(ctx, req)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s\n", key.Key)
	return err
}
