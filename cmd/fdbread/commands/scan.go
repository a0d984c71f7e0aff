package commands

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/urfave/cli/v2"

	fdb "github.com/MikeMcMahon/foundationdb"
)

// NewScanCommand returns a cli.Command for "fdbread scan".
func NewScanCommand() *cli.Command {
	cmd := cli.Command{
		Name:        "scan",
		Usage:       "Streams a range of key-value pairs",
		UsageText:   `fdbread scan --path db [--begin k] [--end k] [--prefix k] [--limit n] [--reverse] [--mode m]`,
		Description: `The scan command streams the pairs of a half-open key range at the latest version, one "key value" line per pair.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "path",
				Aliases:  []string{"p"},
				Usage:    "Path of the database to open.",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "begin",
				Usage: "Inclusive lower bound of the range.",
			},
			&cli.StringFlag{
				Name:  "end",
				Usage: "Exclusive upper bound of the range.",
			},
			&cli.StringFlag{
				Name:  "prefix",
				Usage: "Scan all keys with this prefix instead of --begin/--end.",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Usage:   "Maximum number of pairs to return. Zero means unlimited.",
			},
			&cli.BoolFlag{
				Name:    "reverse",
				Aliases: []string{"r"},
				Usage:   "Return pairs in descending key order.",
			},
			&cli.StringFlag{
				Name:  "mode",
				Usage: "Streaming mode: want_all, iterator, small, medium, large, serial or exact.",
				Value: "iterator",
			},
		},
	}

	cmd.Action = func(c *cli.Context) error {
		mode, err := parseStreamingMode(c.String("mode"))
		if err != nil {
			return err
		}

		var r fdb.Range
		if prefix := c.String("prefix"); prefix != "" {
			if c.IsSet("begin") || c.IsSet("end") {
				return errors.New("--prefix cannot be combined with --begin or --end")
			}
			r, err = fdb.PrefixRange([]byte(prefix))
			if err != nil {
				return err
			}
		} else {
			end := []byte{0xff}
			if c.IsSet("end") {
				end = []byte(c.String("end"))
			}
			r = fdb.KeyRange{Begin: []byte(c.String("begin")), End: end}
		}

		db, store, err := fdb.OpenPebbleDatabase(c.String("path"), nil)
		if err != nil {
			return err
		}
		defer store.Close()

		tr := db.ReadTransaction()

		it, err := tr.GetRange(c.Context, r, fdb.RangeOptions{
			Limit:   c.Int("limit"),
			Reverse: c.Bool("reverse"),
			Mode:    mode,
		})
		if err != nil {
			return err
		}
		defer it.Close()

		for it.Next() {
			fmt.Printf("%s %s\n", it.Key(), it.Value())
		}
		return it.Err()
	}

	return &cmd
}

func parseStreamingMode(s string) (fdb.StreamingMode, error) {
	switch s {
	case "want_all":
		return fdb.StreamingModeWantAll, nil
	case "iterator":
		return fdb.StreamingModeIterator, nil
	case "small":
		return fdb.StreamingModeSmall, nil
	case "medium":
		return fdb.StreamingModeMedium, nil
	case "large":
		return fdb.StreamingModeLarge, nil
	case "serial":
		return fdb.StreamingModeSerial, nil
	case "exact":
		return fdb.StreamingModeExact, nil
	default:
		return 0, errors.Newf("unknown streaming mode %q", s)
	}
}
