package cmd

import (
	"errors"

	"github.com/equitraccion/site/pkg/sitectl/client"
	"github.com/equitraccion/site/pkg/version"
)

func buildClient(rt *runtimeState) (*client.Client, error) {
	if rt.token == "" {
		return nil, errors.New("a newsletter cron token is required (--token, SITECTL_TOKEN or NEWSLETTER_CRON_TOKEN)")
	}
	options := []client.Option{
		client.WithServer(rt.server),
		client.WithToken(rt.token),
		client.WithUserAgent(version.UserAgent("sitectl")),
	}
	if rt.caFile != "" || rt.insecureSkipTLSVerify {
		options = append(options, client.WithTLSConfig(rt.caFile, rt.insecureSkipTLSVerify))
	}
	if rt.timeout > 0 {
		options = append(options, client.WithTimeout(rt.timeout))
	}
	return client.New(options...)
}
