// Package commands implementa os comandos CLI do anabot usando cobra.
package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/linsalefe/anabot/pkg/anabot/config"
)

// NewRootCmd cria o comando raiz do CLI com todos os subcomandos registrados.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "anabot",
		Short: "Ana - assistente de vendas do CENAT no WhatsApp",
		Long: `anabot atende leads no WhatsApp: normaliza webhooks do provedor,
consulta a base de conhecimento em disco e responde via LLM, com
registro paralelo no CRM.

Examples:
  anabot serve --config ./config.yaml
  anabot knowledge --config ./config.yaml
  anabot send --phone 5511999999999 --message "Olá!"`,
		Version: version,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newKnowledgeCmd(),
		newSendCmd(),
	)

	rootCmd.PersistentFlags().StringP("config", "c", "", "caminho para o arquivo de configuração")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "habilita logs detalhados")

	return rootCmd
}

// resolveConfig loads config from --config or from standard locations.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Root().PersistentFlags().GetString("config")
	if path == "" {
		path = config.FindConfigFile()
	}
	if path == "" {
		return nil, fmt.Errorf("config file not found (use --config or create config.yaml)")
	}
	return config.LoadFromFile(path)
}

// newLogger builds the slog logger from config and the --verbose flag.
func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	level := slog.LevelInfo
	if verbose || cfg.Logging.Level == "debug" {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler)
}
