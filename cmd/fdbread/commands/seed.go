package commands

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/urfave/cli/v2"

	"github.com/MikeMcMahon/foundationdb/internal/backend"
	"github.com/MikeMcMahon/foundationdb/internal/backend/pebblekv"
)

// NewSeedCommand returns a cli.Command for "fdbread seed".
func NewSeedCommand() *cli.Command {
	cmd := cli.Command{
		Name:        "seed",
		Usage:       "Writes key=value pairs to the store",
		UsageText:   `fdbread seed --path db key=value [key=value ...]`,
		Description: `The seed command commits the given pairs as a single version. A key with no "=" is removed.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "path",
				Aliases:  []string{"p"},
				Usage:    "Path of the database to open.",
				Required: true,
			},
		},
	}

	cmd.Action = func(c *cli.Context) error {
		if c.Args().Len() == 0 {
			return errors.New("at least one key=value pair is required")
		}

		store, err := pebblekv.Open(c.String("path"), nil)
		if err != nil {
			return err
		}
		defer store.Close()

		var kvs []backend.KeyValue
		var deletes [][]byte
		for _, arg := range c.Args().Slice() {
			k, v, ok := strings.Cut(arg, "=")
			if !ok {
				deletes = append(deletes, []byte(k))
				continue
			}
			kvs = append(kvs, backend.KeyValue{Key: []byte(k), Value: []byte(v)})
		}

		var version int64
		if len(kvs) > 0 {
			version, err = store.Apply(kvs...)
			if err != nil {
				return err
			}
		}
		if len(deletes) > 0 {
			version, err = store.Remove(deletes...)
			if err != nil {
				return err
			}
		}

		fmt.Printf("committed at version %d\n", version)
		return nil
	}

	return &cmd
}
