package main

import "github.com/urfave/cli"

const (
	envPrefixDefault = "POSTSIVA"

	flagConfig    = "config"
	flagEnvPrefix = "env-prefix"
	flagFilter    = "filter"
	flagTemplate  = "template"
	flagRefresh   = "refresh"
)

var (
	configFlag = cli.StringFlag{
		Name:   flagConfig,
		Usage:  "path to a yaml, json or toml configuration file",
		EnvVar: "POSTSIVA_CONFIG",
	}
	envPrefixFlag = cli.StringFlag{
		Name:  flagEnvPrefix,
		Usage: "environment variable prefix for configuration overrides",
		Value: envPrefixDefault,
	}
	filterFlag = cli.StringFlag{
		Name:  flagFilter,
		Usage: "CEL expression over `item` selecting list entries to print",
	}
	templateFlag = cli.StringFlag{
		Name:  flagTemplate,
		Usage: "text/template for output, or @file to read one",
	}
	refreshFlag = cli.BoolFlag{
		Name:  flagRefresh,
		Usage: "bypass the local cache and fetch from the server",
	}

	pageFlag = cli.StringFlag{
		Name:  "page",
		Usage: "facebook page id",
	}
	idFlag = cli.StringFlag{
		Name:  "id",
		Usage: "resource id",
	}
	fileFlag = cli.StringFlag{
		Name:  "file",
		Usage: "path of the file to upload",
	}
	limitFlag = cli.IntFlag{
		Name:  "limit",
		Usage: "maximum number of entries",
	}
)
