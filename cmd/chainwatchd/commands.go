package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	sdkversion "github.com/cosmos/cosmos-sdk/version"
	"github.com/spf13/cobra"

	"github.com/chainwatch/chainwatch/api"
	"github.com/chainwatch/chainwatch/chains"
	"github.com/chainwatch/chainwatch/config"
	"github.com/chainwatch/chainwatch/constant"
	"github.com/chainwatch/chainwatch/db"
	"github.com/chainwatch/chainwatch/logger"
	"github.com/chainwatch/chainwatch/state"
)

const (
	flagForce  = "force"
	flagOutput = "output"
)

func InitRootCmd(rootCmd *cobra.Command) {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(startCmd())
	rootCmd.AddCommand(refreshCmd())
	rootCmd.AddCommand(chainsCmd())
	rootCmd.AddCommand(versionCmd())
}

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration to the home directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			home, _ := cmd.Flags().GetString(flagHome)
			force, _ := cmd.Flags().GetBool(flagForce)

			path := filepath.Join(home, constant.ConfigSubdir, constant.ConfigFileName)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config already exists at %s (use --%s to overwrite)", path, flagForce)
			}

			cfg, err := config.LoadDefaultConfig()
			if err != nil {
				return err
			}
			cfg.NodeHome = home
			if err := config.Save(&cfg, home); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().Bool(flagForce, false, "overwrite an existing config")
	return cmd
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the monitoring daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log := logger.Init(cfg)

			d, err := newDaemon(cfg, log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return d.run(ctx)
		},
	}
}

func refreshCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "refresh [data|prices|database]",
		Short:     "Run one refresh round across every chain and print the report",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{constant.OperationData, constant.OperationPrices, constant.OperationDatabase},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log := logger.Init(cfg)

			dbs := db.NewChainDBManager(cfg.NodeHome, log)
			st, err := state.New(cfg, log, state.WithDBManager(dbs))
			if err != nil {
				_ = dbs.CloseAll()
				return err
			}
			defer st.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RefreshTimeout())
			defer cancel()

			report, err := st.Run(ctx, args[0])
			if err != nil {
				return err
			}

			output, _ := cmd.Flags().GetString(flagOutput)
			if err := printReport(cmd.OutOrStdout(), report, output); err != nil {
				return err
			}
			if failed := report.Failed(); len(failed) > 0 {
				return fmt.Errorf("%d of %d chains failed", len(failed), len(report.Results))
			}
			return nil
		},
	}
	cmd.Flags().String(flagOutput, "text", "output format (text|json)")
	return cmd
}

func chainsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chains",
		Short: "List the supported chains",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tDENOM\tPRICE FEED\tEVM\tREST")
			for _, c := range chains.DefaultConfigs() {
				feed, ok := c.PriceFeedKey()
				if !ok {
					feed = "-"
				}
				evm := "no"
				if c.JSONRPCURL != "" {
					evm = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.Name, c.MainDenom, feed, evm, c.RESTURL)
			}
			return w.Flush()
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print chainwatchd version info",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name:       %s\n", sdkversion.Name)
			fmt.Fprintf(out, "App Name:   %s\n", sdkversion.AppName)
			fmt.Fprintf(out, "Version:    %s\n", sdkversion.Version)
			fmt.Fprintf(out, "Commit:     %s\n", sdkversion.Commit)
			fmt.Fprintf(out, "Build Tags: %s\n", sdkversion.BuildTags)
		},
	}
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	home, _ := cmd.Flags().GetString(flagHome)
	cfg, err := config.Load(home)
	if err != nil {
		return config.Config{}, fmt.Errorf("%w (run `chainwatchd init --%s %s` first)", err, flagHome, home)
	}
	return cfg, nil
}

func printReport(out io.Writer, report state.Report, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(api.NewRefreshResponse(report))
	case "text", "":
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CHAIN\tSTATUS\tDURATION\tERROR")
		for _, res := range report.Results {
			status, msg := "ok", ""
			if res.Err != nil {
				status, msg = "failed", res.Err.Error()
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", res.Chain, status, res.Duration.Round(time.Millisecond), msg)
		}
		return w.Flush()
	default:
		return errors.New("output must be text or json")
	}
}
