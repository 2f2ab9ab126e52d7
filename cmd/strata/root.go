package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/syssam/strata/config"
	"github.com/syssam/strata/internal/server"
	"github.com/syssam/strata/resolve"
	"github.com/syssam/strata/sdk"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:           "strata",
		Short:         "Resolve, validate and publish schemas",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&cfgPath, "config", "", "config file (default ./strata.yaml)")
	flags.String("dir", "", "schema directory")
	flags.String("url", "", "schema base URL")
	flags.String("log-level", "", "log level: debug, info, warn or error")

	open := func(cmd *cobra.Command) (*sdk.SDK, *config.Config, *zap.Logger, error) {
		cfg, err := config.Load(cfgPath, cmd.Flags())
		if err != nil {
			return nil, nil, nil, err
		}
		logger, err := cfg.Logger()
		if err != nil {
			return nil, nil, nil, err
		}
		opts, err := cfg.SDKOptions(logger)
		if err != nil {
			return nil, nil, nil, err
		}
		s, err := sdk.New(opts...)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := s.Ready(cmd.Context()); err != nil {
			s.Close()
			return nil, nil, nil, err
		}
		return s, cfg, logger, nil
	}

	root.AddCommand(
		sdlCmd(open),
		typeCmd(open),
		validateCmd(open),
		serveCmd(open),
		versionCmd(),
	)
	return root
}

type openFunc func(*cobra.Command) (*sdk.SDK, *config.Config, *zap.Logger, error)

func sdlCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "sdl",
		Short: "Print the GraphQL SDL of the schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, _, _, err := open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			sdl, err := s.GraphQLSchema()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), sdl)
			return err
		},
	}
}

func typeCmd(open openFunc) *cobra.Command {
	var grouped, meta, graphql bool
	cmd := &cobra.Command{
		Use:   "type <name>",
		Short: "Print a resolved type as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, _, err := open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			opts := []resolve.Option{
				resolve.GroupProperties(grouped),
				resolve.IncludeMetaFields(meta),
			}
			if graphql {
				opts = append(opts, resolve.PrimitiveTypes(resolve.GraphQL))
			}
			t, err := s.Type(args[0], opts...)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), t)
		},
	}
	cmd.Flags().BoolVar(&grouped, "grouped", false, "group properties into fieldsets")
	cmd.Flags().BoolVar(&meta, "meta", false, "include meta fields")
	cmd.Flags().BoolVar(&graphql, "graphql", false, "translate primitive types to GraphQL")
	return cmd
}

func validateCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <type> <property> <json>",
		Short: "Validate a JSON value for a property",
		Example: `  strata validate Team code '"platform"'
  strata validate Team members '[{"code": "jane"}]'`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var value any
			dec := json.NewDecoder(strings.NewReader(args[2]))
			dec.UseNumber()
			if err := dec.Decode(&value); err != nil {
				return fmt.Errorf("invalid JSON value: %w", err)
			}
			s, _, _, err := open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.Validator().ValidateProperty(args[0], args[1], value); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "valid")
			return err
		},
	}
}

func serveCmd(open openFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Publish the schema over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, cfg, logger, err := open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			defer logger.Sync() //nolint:errcheck

			ctx := cmd.Context()
			if cfg.Schema.Directory == "" {
				// Polling keeps the published copy current.
				if err := s.StartPolling(ctx).Wait(ctx); err != nil && ctx.Err() == nil {
					logger.Warn("First schema poll failed", zap.Error(err))
				}
			}
			return server.New(s, logger).ListenAndServe(ctx, server.Options{
				Addr:            cfg.Server.Addr,
				ReadTimeout:     cfg.Server.ReadTimeout,
				WriteTimeout:    cfg.Server.WriteTimeout,
				ShutdownTimeout: cfg.Server.ShutdownTimeout,
			})
		},
	}
	cmd.Flags().String("addr", "", "listen address")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
