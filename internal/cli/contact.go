package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"sigmarservicos.com.br/sigmar-web/internal/contact"
	"sigmarservicos.com.br/sigmar-web/internal/domain"
)

var contactFields = map[string]*string{}

var contactCmd = &cobra.Command{
	Use:   "contact",
	Short: "Submit a contact inquiry through the same flow as the site form",
	Args:  cobra.NoArgs,
	RunE:  runContact,
}

func init() {
	for _, name := range domain.ContactFieldNames() {
		contactFields[name] = contactCmd.Flags().String(name, "", "contact "+name)
	}
	rootCmd.AddCommand(contactCmd)
}

// errSubmissionFailed signals a Failed outcome so the process exits non-zero.
var errSubmissionFailed = errors.New("submission failed")

func runContact(cmd *cobra.Command, _ []string) error {
	ctrl := contact.NewController(client())
	ctrl.Subscribe(func(ev contact.Event) {
		if ev.Kind == contact.StatusChanged {
			cmd.Printf("status: %s\n", ev.Snapshot.Status)
		}
	})
	for _, name := range domain.ContactFieldNames() {
		if err := ctrl.SetField(name, *contactFields[name]); err != nil {
			return err
		}
	}
	snap, err := ctrl.Submit(context.Background())
	if err != nil {
		return fmt.Errorf("invalid inquiry: %w", err)
	}
	cmd.Println(snap.Message)
	if snap.Status != contact.Succeeded {
		return errSubmissionFailed
	}
	return nil
}
