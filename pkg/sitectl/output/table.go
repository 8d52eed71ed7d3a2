package output

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/equitraccion/site/pkg/sitectl/client"
)

func WriteNewsletterResult(w io.Writer, res *client.NewsletterResult) {
	_, _ = fmt.Fprintln(w, res.Message)
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ISSUE\tSUBSCRIBERS\tPOSTS\tCOURSES\tSENT\tFAILED")
	issue := strings.TrimSpace(res.Stats.Month + " " + res.Stats.Year)
	if issue == "" {
		issue = "-"
	}
	_, _ = fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n", issue, res.Stats.Subscribers, res.Stats.Posts,
		res.Stats.Courses, res.Stats.Sent, res.Stats.Failed)
	_ = tw.Flush()
	for _, e := range res.Stats.Errors {
		_, _ = fmt.Fprintf(w, "  error: %s\n", e)
	}
}
