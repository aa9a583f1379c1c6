package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/linsalefe/anabot/pkg/anabot/knowledge"
)

// newKnowledgeCmd creates `anabot knowledge`, which loads the knowledge
// directory once and prints what the bot would serve. Useful to validate
// catalog and corpus changes before deploying.
func newKnowledgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "knowledge",
		Short: "Validate and inspect the knowledge directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cmd, cfg)

			loader := knowledge.NewLoader(
				cfg.Knowledge.Dir,
				cfg.Knowledge.CatalogFile,
				cfg.Knowledge.MaxCorpusBytes,
				cfg.Knowledge.PriorityKeywords,
				logger,
			)
			snap, err := loader.Load()
			if err != nil {
				return fmt.Errorf("loading knowledge base: %w", err)
			}

			fmt.Printf("Diretório:  %s\n", cfg.Knowledge.Dir)
			fmt.Printf("Corpus:     %d bytes\n", snap.CorpusSize())
			fmt.Printf("Produtos:   %d\n", snap.ProductCount())
			fmt.Printf("Assinatura: %s\n", snap.Signature)
			return nil
		},
	}
}
