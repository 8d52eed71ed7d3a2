package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/equitraccion/site/pkg/sitectl/client"
	"github.com/equitraccion/site/pkg/sitectl/output"
)

func NewNewsletterCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "newsletter",
		Short: "Send or preview the monthly newsletter",
	}
	cmd.AddCommand(newNewsletterSendCommand(), newNewsletterPreviewCommand())
	return cmd
}

func newNewsletterSendCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "send",
		Short: "Send last month's issue to every active subscriber",
		Long: "Send last month's issue to every active subscriber.\n\n" +
			"The command waits until the server has attempted every recipient and exits\n" +
			"non-zero when subscribers exist but none of the mails could be delivered.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			c, err := buildClient(rt)
			if err != nil {
				return err
			}
			res, err := c.SendNewsletter(cmd.Context())
			if err != nil {
				if client.IsUnauthorized(err) {
					return fmt.Errorf("the server rejected the cron token: %w", err)
				}
				return err
			}

			if format := rt.OutputFormat(); format != output.FormatTable {
				if err := output.WriteObject(rt.Writer(), format, res); err != nil {
					return err
				}
			} else {
				output.WriteNewsletterResult(rt.Writer(), res)
			}
			if !res.Success && res.Stats.Subscribers > 0 {
				return fmt.Errorf("newsletter was not delivered to any of %d subscribers", res.Stats.Subscribers)
			}
			return nil
		},
	}
}

func newNewsletterPreviewCommand() *cobra.Command {
	var outFile string
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Render the issue that would be sent now, without sending it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			c, err := buildClient(rt)
			if err != nil {
				return err
			}
			html, err := c.PreviewNewsletter(cmd.Context())
			if err != nil {
				return err
			}
			if outFile == "" {
				_, err = fmt.Fprint(rt.Writer(), html)
				return err
			}
			if err := os.WriteFile(outFile, []byte(html), 0o644); err != nil { //nolint:gosec // preview is meant to be opened in a browser
				return fmt.Errorf("writing preview: %w", err)
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Preview written to %s\n", outFile)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outFile, "file", "f", "", "Write the HTML to this file instead of stdout")
	return cmd
}
