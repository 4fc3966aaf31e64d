package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"sweepchain/internal/config"
)

// NewRootCmd creates the sweepd root command. It is called once in main.
func NewRootCmd() *cobra.Command {
	v := config.NewViper()

	rootCmd := &cobra.Command{
		Use:           "sweepd",
		Short:         "Round-based reward pool ABCI daemon",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			_, err := config.LoadDotEnv(".env")
			return err
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.String(config.KeyHome, config.DefaultConfig().Home, "node home directory (state under <home>/data, config under <home>/config)")
	pf.String(config.KeyLogLevel, config.DefaultConfig().Log.Level, "log level (trace|debug|info|warn|error)")
	pf.Bool(config.KeyLogJSON, false, "emit JSON logs")
	bindFlags(v, pf, config.KeyHome, config.KeyLogLevel, config.KeyLogJSON)

	rootCmd.AddCommand(
		startCmd(v),
		genesisCmd(),
		keysCmd(),
		txCmd(),
	)
	return rootCmd
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet, keys ...string) {
	for _, key := range keys {
		if err := v.BindPFlag(key, fs.Lookup(key)); err != nil {
			panic(err)
		}
	}
}
