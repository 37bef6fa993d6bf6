package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"sigmarservicos.com.br/sigmar-web/internal/domain"
	"sigmarservicos.com.br/sigmar-web/internal/site"
)

var catalogJSON bool

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List services and testimonials from the backend",
	Args:  cobra.NoArgs,
	RunE:  runCatalog,
}

func init() {
	catalogCmd.Flags().BoolVar(&catalogJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(catalogCmd)
}

type catalogOutput struct {
	Services     []domain.ServiceItem `json:"services"`
	Testimonials []domain.Testimonial `json:"testimonials"`
}

func runCatalog(cmd *cobra.Command, _ []string) error {
	c := client()
	ctx := context.Background()
	services, err := c.Services(ctx)
	if err != nil {
		return fmt.Errorf("fetch services: %w", err)
	}
	testimonials, err := c.Testimonials(ctx)
	if err != nil {
		return fmt.Errorf("fetch testimonials: %w", err)
	}

	if catalogJSON {
		data, err := json.MarshalIndent(catalogOutput{Services: services, Testimonials: testimonials}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal catalog: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("Services (%d):\n", len(services))
	for _, s := range site.ServiceCards(services) {
		cmd.Printf("  %s %s - %s\n", s.Icon, s.Title, s.Description)
	}
	cmd.Println()
	cmd.Printf("Testimonials (%d):\n", len(testimonials))
	for _, t := range site.TestimonialCards(testimonials) {
		cmd.Printf("  [%s] %s (%s) %s\n", t.Key, t.Name, t.Service, t.Stars)
		cmd.Printf("      %q\n", t.Comment)
	}
	return nil
}
