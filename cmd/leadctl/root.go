package main

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"primedetail.kg/detail-web/internal/booking"
	"primedetail.kg/detail-web/internal/brand"
	"primedetail.kg/detail-web/internal/config"
	"primedetail.kg/detail-web/internal/dispatch"
	"primedetail.kg/detail-web/internal/i18n"
	"primedetail.kg/detail-web/internal/observability"
)

var errLeadRejected = errors.New("lead rejected")

// newRootCmd builds the command tree. configOpts are appended to the loader options
// and let tests avoid the process environment.
func newRootCmd(configOpts []config.Option) *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "leadctl",
		Short:         "Inspect and test lead delivery",
		Long:          `leadctl shows the configured lead destinations and sends test leads through the same dispatcher the site uses.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with DETAIL_WEB_* settings")

	load := func() (config.Config, error) {
		opts := append([]config.Option{config.WithEnvFile(envFile)}, configOpts...)
		return config.Load(opts...)
	}

	root.AddCommand(newTargetsCmd(load), newSendCmd(load))
	return root
}

func newTargetsCmd(load func() (config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List lead destinations",
		Long:  `Print the relay and chat webhook destinations and whether each is configured. URL paths are redacted.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			d := dispatch.New(dispatch.Config{
				RelayEndpoint:   cfg.Dispatch.RelayEndpoint,
				WebhookEndpoint: cfg.Dispatch.WebhookEndpoint,
				Timeout:         cfg.Dispatch.Timeout,
			})
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, t := range d.Targets() {
				endpoint := "(not configured)"
				if t.Configured() {
					endpoint = redact(t.Endpoint)
				}
				fmt.Fprintf(tw, "%s\t%s\n", t.Kind, endpoint)
			}
			return tw.Flush()
		},
	}
}

type sendFlags struct {
	form   booking.Form
	locale string
}

func newSendCmd(load func() (config.Config, error)) *cobra.Command {
	var f sendFlags
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Validate and dispatch a lead",
		Long: `Validate a booking exactly like the site does and send it to every configured destination.
The command fails when validation fails or any configured destination rejects the lead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return runSend(cmd, cfg, f)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.form.Name, "name", "", "customer name (at least 2 characters)")
	fl.StringVar(&f.form.Phone, "phone", "", "customer phone (at least 10 characters)")
	fl.StringVar(&f.form.CarModel, "car", "", "car make and model")
	fl.StringVar(&f.form.Service, "service", "", "requested service")
	fl.StringVar(&f.form.Package, "package", "", "requested package")
	fl.StringVar(&f.form.PreferredDate, "date", "", "preferred date, YYYY-MM-DD")
	fl.StringVar(&f.form.PreferredTime, "time", "", "preferred time, HH:MM")
	fl.StringVar(&f.form.Comment, "comment", "", "free-form comment")
	fl.StringVar(&f.locale, "locale", "", "brand locale; defaults to DETAIL_WEB_DEFAULT_LOCALE")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("phone")
	return cmd
}

func runSend(cmd *cobra.Command, cfg config.Config, f sendFlags) error {
	out := cmd.OutOrStdout()
	locale := strings.ToLower(strings.TrimSpace(f.locale))
	if locale == "" {
		locale = cfg.Site.DefaultLocale
	}

	bundle, err := i18n.Load(cfg.Paths.Locales, cfg.Site.DefaultLocale, cfg.Site.Locales)
	if err != nil {
		return fmt.Errorf("load locales: %w", err)
	}
	brands, err := brand.Load(filepath.Join(cfg.Paths.Content, "brands"), cfg.Site.DefaultLocale)
	if err != nil {
		return fmt.Errorf("load brands: %w", err)
	}
	variant := brands.ForLocale(locale)

	req, fieldErrs := booking.Validate(f.form)
	if len(fieldErrs) > 0 {
		for _, field := range fieldErrs.Fields() {
			fmt.Fprintf(out, "invalid %s: %s\n", field, fieldErrs[field])
		}
		return errLeadRejected
	}

	logger, err := observability.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	d := dispatch.New(dispatch.Config{
		RelayEndpoint:   cfg.Dispatch.RelayEndpoint,
		WebhookEndpoint: cfg.Dispatch.WebhookEndpoint,
		Timeout:         cfg.Dispatch.Timeout,
	}, dispatch.WithLogger(logger.Named("leadctl")))

	lead := dispatch.Lead{
		Request: req.WithPhone(variant.PhonePlan.Normalize(req.Phone)),
		Labels:  labels(bundle, locale),
		Source:  variant.ID + ":cli",
	}
	report, err := d.Dispatch(cmd.Context(), lead)
	printReport(cmd, report)
	if err != nil {
		logger.Warn("lead dispatch failed", zap.String("lead_id", report.LeadID), zap.Error(err))
		return err
	}
	return nil
}

func labels(bundle *i18n.Bundle, lang string) dispatch.Labels {
	t := func(key string) string { return bundle.T(lang, "lead."+key) }
	return dispatch.Labels{
		Heading: t("heading"),
		Name:    t("name"),
		Phone:   t("phone"),
		Car:     t("car"),
		Service: t("service"),
		Package: t("package"),
		Date:    t("date"),
		Time:    t("time"),
		Comment: t("comment"),
	}
}

func printReport(cmd *cobra.Command, report dispatch.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "lead %s: %d delivered, %d failed\n", report.LeadID, report.Delivered(), len(report.Failed()))
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, o := range report.Outcomes {
		switch o.Status {
		case dispatch.StatusSkipped:
			fmt.Fprintf(tw, "%s\t%s\n", o.Kind, o.Status)
		case dispatch.StatusFailed:
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", o.Kind, o.Status, o.StatusCode, o.Reason)
		default:
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", o.Kind, o.Status, o.StatusCode, o.Duration.Round(time.Millisecond))
		}
	}
	_ = tw.Flush()
}

// redact keeps scheme and host; chat webhook paths usually embed a bot token.
func redact(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return "(invalid)"
	}
	if u.Path == "" || u.Path == "/" {
		return u.Scheme + "://" + u.Host
	}
	return u.Scheme + "://" + u.Host + "/..."
}
