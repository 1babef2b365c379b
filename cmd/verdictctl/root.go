package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is set by ldflags.
var Version = "dev"

type rootOptions struct {
	cfgFile string
	v       *viper.Viper
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{v: viper.New()}

	cmd := &cobra.Command{
		Use:   "verdictctl",
		Short: "Evaluate risk rules from the command line",
		Long: `verdictctl runs the verdict rule sets against JSON request files:
  check   scores a transaction against the fraud rules
  book    prices a booking or computes a cancellation refund
  energy  plans device states for a household

Requests are read from --file, or stdin when --file is "-".
Results are printed as JSON.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.initConfig()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (yaml, may set blocked_locations)")

	cmd.AddCommand(
		newCheckCmd(opts),
		newBookCmd(),
		newEnergyCmd(),
	)
	return cmd
}

func (o *rootOptions) initConfig() error {
	o.v.SetEnvPrefix("VERDICT")
	o.v.AutomaticEnv()

	if o.cfgFile == "" {
		return nil
	}
	o.v.SetConfigFile(o.cfgFile)
	if err := o.v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", o.cfgFile, err)
	}
	return nil
}

// blockedLocations reads blocked_locations from the config file or
// VERDICT_BLOCKED_LOCATIONS. Env values arrive as one string, so entries are
// split on commas like BLOCKED_LOCATIONS for the server.
func (o *rootOptions) blockedLocations() []string {
	var out []string
	for _, entry := range o.v.GetStringSlice("blocked_locations") {
		for _, loc := range strings.Split(entry, ",") {
			if loc = strings.TrimSpace(loc); loc != "" {
				out = append(out, loc)
			}
		}
	}
	return out
}

// readRequest decodes the JSON request at path into dst. "-" reads stdin.
func readRequest(cmd *cobra.Command, path string, dst any) error {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path) // #nosec G304 -- operator-supplied request file
		if err != nil {
			return fmt.Errorf("open request: %w", err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func addFileFlag(cmd *cobra.Command, file *string) {
	cmd.Flags().StringVarP(file, "file", "f", "-", `request JSON file ("-" for stdin)`)
}
