package cli

import (
	"github.com/spf13/cobra"

	"sigmarservicos.com.br/sigmar-web/internal/deeplink"
)

var (
	deeplinkPhone   string
	deeplinkMessage string
)

var deeplinkCmd = &cobra.Command{
	Use:   "deeplink",
	Short: "Print the WhatsApp click-to-chat link",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Println(deeplink.Build(deeplinkPhone, deeplinkMessage))
	},
}

func init() {
	deeplinkCmd.Flags().StringVar(&deeplinkPhone, "phone", deeplink.DefaultPhone, "phone number, digits only")
	deeplinkCmd.Flags().StringVar(&deeplinkMessage, "message", deeplink.DefaultMessage, "pre-filled message")
	rootCmd.AddCommand(deeplinkCmd)
}
