package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/linsalefe/anabot/pkg/anabot/wa"
)

// newSendCmd creates `anabot send`, a direct provider send that bypasses
// the pipeline. Handy for smoke-testing provider credentials.
func newSendCmd() *cobra.Command {
	var phone, message string

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a WhatsApp message directly through the provider",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if phone == "" || message == "" {
				return fmt.Errorf("--phone and --message are required")
			}
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cmd, cfg)

			dispatcher := wa.NewDispatcher(cfg.WhatsApp, logger)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := dispatcher.Send(ctx, phone, message); err != nil {
				return fmt.Errorf("send failed: %w", err)
			}
			fmt.Println("Mensagem enviada.")
			return nil
		},
	}

	cmd.Flags().StringVar(&phone, "phone", "", "número de destino (somente dígitos)")
	cmd.Flags().StringVar(&message, "message", "", "texto da mensagem")
	return cmd
}
