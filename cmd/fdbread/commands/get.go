package commands

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/urfave/cli/v2"

	fdb "github.com/MikeMcMahon/foundationdb"
)

// NewGetCommand returns a cli.Command for "fdbread get".
func NewGetCommand() *cli.Command {
	cmd := cli.Command{
		Name:      "get",
		Usage:     "Reads a single key at the latest version",
		UsageText: `fdbread get --path db key`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "path",
				Aliases:  []string{"p"},
				Usage:    "Path of the database to open.",
				Required: true,
			},
			&cli.Int64Flag{
				Name:    "version",
				Aliases: []string{"v"},
				Usage:   "Read at this version instead of the latest.",
			},
		},
	}

	cmd.Action = func(c *cli.Context) error {
		if c.Args().Len() != 1 {
			return errors.New("exactly one key is required")
		}

		db, store, err := fdb.OpenPebbleDatabase(c.String("path"), nil)
		if err != nil {
			return err
		}
		defer store.Close()

		tr := db.ReadTransaction()
		if v := c.Int64("version"); v > 0 {
			tr.SetReadVersion(v)
		}

		value, err := tr.Get(c.Context, []byte(c.Args().First()))
		if err != nil {
			return err
		}
		if value == nil {
			return errors.Newf("key %q not found", c.Args().First())
		}

		fmt.Printf("%s\n", value)
		return nil
	}

	return &cmd
}
