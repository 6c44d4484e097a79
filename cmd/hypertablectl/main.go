/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements. See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License. You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/noctarius/timescaledb-hypertable-manager/internal/logging"
	"github.com/noctarius/timescaledb-hypertable-manager/internal/manager"
	"github.com/noctarius/timescaledb-hypertable-manager/internal/version"
	spiconfig "github.com/noctarius/timescaledb-hypertable-manager/spi/config"
	"github.com/noctarius/timescaledb-hypertable-manager/spi/hypertables"
	"github.com/noctarius/timescaledb-hypertable-manager/spi/systemcatalog"
	"github.com/urfave/cli"
)

var (
	configurationFile string
	verbose           bool
	withCaller        bool
	logToStdErr       bool
	versionOnly       bool
)

func main() {
	app := &cli.App{
		Name:  version.BinName,
		Usage: "Manages hypertable registration, dimensions, retention and tablespaces",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config,c",
				Value:       "",
				Usage:       "Load configuration from `FILE`",
				Destination: &configurationFile,
			},
			&cli.BoolFlag{
				Name:        "verbose",
				Usage:       "Show verbose output",
				Destination: &verbose,
			},
			&cli.BoolFlag{
				Name:        "caller",
				Usage:       "Collect caller information for log messages",
				Destination: &withCaller,
			},
			&cli.BoolFlag{
				Name:        "log-to-stderr",
				Usage:       "Redirects logging output to stderr",
				Destination: &logToStdErr,
			},
			&cli.BoolFlag{
				Name:        "version",
				Usage:       "Prints the version and exits",
				Destination: &versionOnly,
			},
		},
		Commands: []cli.Command{
			{
				Name:  "create",
				Usage: "Converts an empty table into a hypertable",
				Flags: []cli.Flag{
					cli.StringFlag{Name: "schema", Value: "public", Usage: "Schema of the source table"},
					cli.StringFlag{Name: "table", Usage: "Name of the source table"},
					cli.StringFlag{Name: "time-column", Usage: "Column to partition by time on"},
					cli.StringFlag{Name: "partitioning-column", Usage: "Optional column for hash partitioning"},
					cli.IntFlag{Name: "num-partitions", Usage: "Number of hash partitions"},
					cli.StringFlag{Name: "chunk-interval", Usage: "Chunk interval, a duration or an integer"},
					cli.StringFlag{Name: "associated-schema", Usage: "Schema to create chunk tables in"},
					cli.StringFlag{Name: "associated-prefix", Usage: "Prefix for chunk table names"},
					cli.BoolFlag{Name: "skip-default-indexes", Usage: "Do not create the default index set"},
					cli.BoolFlag{Name: "if-not-exists", Usage: "Succeed if the table already is a hypertable"},
				},
				Action: createHypertable,
			},
			{
				Name:  "add-dimension",
				Usage: "Adds a partitioning dimension to a hypertable",
				Flags: []cli.Flag{
					cli.StringFlag{Name: "schema", Value: "public", Usage: "Schema of the hypertable"},
					cli.StringFlag{Name: "table", Usage: "Name of the hypertable"},
					cli.StringFlag{Name: "column", Usage: "Column to partition on"},
					cli.IntFlag{Name: "num-partitions", Usage: "Number of hash partitions"},
					cli.StringFlag{Name: "chunk-interval", Usage: "Chunk interval, a duration or an integer"},
				},
				Action: addDimension,
			},
			{
				Name:  "set-chunk-time-interval",
				Usage: "Changes the chunk interval of the time dimension",
				Flags: []cli.Flag{
					cli.StringFlag{Name: "schema", Value: "public", Usage: "Schema of the hypertable"},
					cli.StringFlag{Name: "table", Usage: "Name of the hypertable"},
					cli.StringFlag{Name: "chunk-interval", Usage: "New chunk interval, a duration or an integer"},
				},
				Action: setChunkTimeInterval,
			},
			{
				Name:  "drop-chunks",
				Usage: "Drops chunks whose time range lies fully before a cutoff",
				Flags: []cli.Flag{
					cli.StringFlag{Name: "schema", Usage: "Limit to hypertables in this schema"},
					cli.StringFlag{Name: "table", Usage: "Limit to this hypertable"},
					cli.StringFlag{Name: "older-than", Usage: "Relative cutoff as a duration, e.g. 720h"},
					cli.StringFlag{Name: "before", Usage: "Absolute cutoff as an RFC 3339 timestamp"},
				},
				Action: dropChunks,
			},
			{
				Name:  "attach-tablespace",
				Usage: "Attaches a tablespace for future chunks of a hypertable",
				Flags: []cli.Flag{
					cli.StringFlag{Name: "schema", Value: "public", Usage: "Schema of the hypertable"},
					cli.StringFlag{Name: "table", Usage: "Name of the hypertable"},
					cli.StringFlag{Name: "tablespace", Usage: "Name of the tablespace"},
				},
				Action: attachTablespace,
			},
			{
				Name:   "list",
				Usage:  "Lists registered hypertables and their dimensions",
				Action: listHypertables,
			},
		},
		Action: func(*cli.Context) error {
			printVersion()
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func printVersion() {
	fmt.Printf("%s version %s (git revision %s; branch %s)\n",
		version.BinName, version.Version, version.CommitHash, version.Branch,
	)
}

func setup() (*manager.Manager, error) {
	if versionOnly {
		printVersion()
		os.Exit(0)
	}

	logging.WithCaller = withCaller
	logging.WithVerbose = verbose

	config := &spiconfig.Config{}

	// No configuration file set? Try env variable!
	if configurationFile == "" {
		if cf, present := os.LookupEnv("HYPERTABLECTL_CONFIG"); present {
			fmt.Fprintf(os.Stderr, "Using configuration file from environment variable\n")
			configurationFile = cf
		}
	}

	if configurationFile != "" {
		f, err := os.Open(configurationFile)
		if err != nil {
			return nil, cli.NewExitError(fmt.Sprintf("Configuration file couldn't be opened: %v\n", err), 3)
		}

		b, err := io.ReadAll(f)
		if err != nil {
			return nil, cli.NewExitError(fmt.Sprintf("Configuration file couldn't be read: %v\n", err), 4)
		}

		tomlConfig := filepath.Ext(strings.ToLower(configurationFile)) == ".toml"
		if err := spiconfig.Unmarshall(b, config, tomlConfig); err != nil {
			return nil, cli.NewExitError(fmt.Sprintf("Configuration file couldn't be decoded: %v\n", err), 5)
		}
	}

	if err := logging.InitializeLogging(config, logToStdErr); err != nil {
		return nil, err
	}

	connection := config.PostgreSQL.Connection
	if connection == "" {
		return nil, cli.NewExitError("PostgreSQL connection string required", 6)
	}

	pgxConfig, err := pgx.ParseConfig(connection)
	if err != nil {
		return nil, cli.NewExitError(fmt.Sprintf("PostgreSQL connection string failed to parse: %v", err), 6)
	}
	if config.PostgreSQL.Password != "" {
		pgxConfig.Password = config.PostgreSQL.Password
	}

	return manager.NewManager(config, pgxConfig)
}

func createHypertable(c *cli.Context) error {
	mgr, err := setup()
	if err != nil {
		return err
	}

	table := c.String("table")
	timeColumn := c.String("time-column")
	if table == "" || timeColumn == "" {
		return cli.NewExitError("create requires --table and --time-column", 2)
	}

	interval, err := parseInterval(c.String("chunk-interval"))
	if err != nil {
		return err
	}

	request := hypertables.RegisterRequest{
		Schema:             c.String("schema"),
		Table:              table,
		TimeColumn:         timeColumn,
		PartitioningColumn: optionalString(c.String("partitioning-column")),
		NumPartitions:      optionalPartitions(c.Int("num-partitions")),
		AssociatedSchema:   optionalString(c.String("associated-schema")),
		AssociatedPrefix:   optionalString(c.String("associated-prefix")),
		ChunkInterval:      interval,
		SkipDefaultIndexes: c.Bool("skip-default-indexes"),
		IfNotExists:        c.Bool("if-not-exists"),
	}

	hypertable, err := mgr.Registrar().Register(request)
	if err != nil {
		return err
	}

	fmt.Printf("Hypertable %s registered with id %d\n",
		hypertable.CanonicalName(), hypertable.Id(),
	)
	return nil
}

func addDimension(c *cli.Context) error {
	mgr, err := setup()
	if err != nil {
		return err
	}

	table := c.String("table")
	column := c.String("column")
	if table == "" || column == "" {
		return cli.NewExitError("add-dimension requires --table and --column", 2)
	}

	interval, err := parseInterval(c.String("chunk-interval"))
	if err != nil {
		return err
	}

	entity := systemcatalog.NewSystemEntity(c.String("schema"), table)
	return mgr.DimensionManager().AddDimension(
		entity, column, optionalPartitions(c.Int("num-partitions")), interval,
	)
}

func setChunkTimeInterval(c *cli.Context) error {
	mgr, err := setup()
	if err != nil {
		return err
	}

	table := c.String("table")
	if table == "" {
		return cli.NewExitError("set-chunk-time-interval requires --table", 2)
	}

	interval, err := parseInterval(c.String("chunk-interval"))
	if err != nil {
		return err
	}

	entity := systemcatalog.NewSystemEntity(c.String("schema"), table)
	return mgr.DimensionManager().SetChunkTimeInterval(entity, interval)
}

func dropChunks(c *cli.Context) error {
	mgr, err := setup()
	if err != nil {
		return err
	}

	olderThan := c.String("older-than")
	before := c.String("before")
	if (olderThan == "") == (before == "") {
		return cli.NewExitError("drop-chunks requires exactly one of --older-than and --before", 2)
	}

	var boundary hypertables.Boundary
	if olderThan != "" {
		duration, err := time.ParseDuration(olderThan)
		if err != nil {
			return cli.NewExitError(fmt.Sprintf("Invalid duration '%s': %v", olderThan, err), 2)
		}
		boundary = hypertables.RelativeBoundary(duration)
	} else {
		pointInTime, err := time.Parse(time.RFC3339, before)
		if err != nil {
			return cli.NewExitError(fmt.Sprintf("Invalid timestamp '%s': %v", before, err), 2)
		}
		boundary = hypertables.AbsoluteBoundary(pointInTime)
	}

	return mgr.RetentionManager().DropChunks(
		boundary, optionalString(c.String("schema")), optionalString(c.String("table")),
	)
}

func attachTablespace(c *cli.Context) error {
	mgr, err := setup()
	if err != nil {
		return err
	}

	table := c.String("table")
	tablespace := c.String("tablespace")
	if table == "" || tablespace == "" {
		return cli.NewExitError("attach-tablespace requires --table and --tablespace", 2)
	}

	entity := systemcatalog.NewSystemEntity(c.String("schema"), table)
	return mgr.TablespaceBinder().AttachTablespace(entity, tablespace)
}

func listHypertables(*cli.Context) error {
	mgr, err := setup()
	if err != nil {
		return err
	}

	return mgr.SideChannel().ReadHypertables(func(
		hypertable *systemcatalog.Hypertable,
	) error {
		fmt.Printf("%d %s (chunks %s_*)\n",
			hypertable.Id(), hypertable.CanonicalName(),
			hypertable.CanonicalChunkTablePrefix(),
		)
		return mgr.SideChannel().ReadDimensions(hypertable.Id(), func(
			dimension *systemcatalog.Dimension,
		) error {
			if intervalLength, present := dimension.IntervalLength(); present {
				fmt.Printf("  %s dimension on '%s', chunk interval %d\n",
					dimension.Kind(), dimension.ColumnName(), intervalLength,
				)
			} else if numSlices, present := dimension.NumSlices(); present {
				fmt.Printf("  %s dimension on '%s', %d partitions\n",
					dimension.Kind(), dimension.ColumnName(), numSlices,
				)
			}
			return nil
		})
	})
}

// parseInterval reads a chunk interval argument, either a Go
// duration like 24h or a raw integer in the column's native
// units
func parseInterval(value string) (systemcatalog.RawInterval, error) {
	if value == "" {
		return systemcatalog.NoInterval(), nil
	}
	if integer, err := strconv.ParseInt(value, 10, 64); err == nil {
		return systemcatalog.IntegerInterval(integer), nil
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return systemcatalog.NoInterval(), cli.NewExitError(
			fmt.Sprintf("Invalid chunk interval '%s': %v", value, err), 2,
		)
	}
	return systemcatalog.DurationInterval(duration), nil
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func optionalPartitions(value int) *int16 {
	if value == 0 {
		return nil
	}
	partitions := int16(value)
	return &partitions
}
