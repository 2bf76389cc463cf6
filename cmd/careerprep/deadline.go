package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"careerprep/pkg/config"
	"careerprep/pkg/deadline"
)

var timezone string

func deadlineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deadline",
		Short: "Classify deadlines and export them to calendars",
	}

	cmd.PersistentFlags().StringVar(&timezone, "tz", "", "IANA timezone (default is $TIMEZONE, then the local zone)")

	cmd.AddCommand(classifyCmd())
	cmd.AddCommand(calendarCmd())
	cmd.AddCommand(icsCmd())
	cmd.AddCommand(businessCmd())

	return cmd
}

func newClassifier() (*deadline.Classifier, error) {
	if timezone != "" {
		return deadline.NewClassifier(timezone), nil
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	return deadline.NewClassifier(cfg.Timezone), nil
}

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <due>",
		Short: "Show the urgency tier and display text for a UTC timestamp",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClassifier()
			if err != nil {
				return err
			}
			return printJSON(c.FormatWithContext(args[0]))
		},
	}
}

func calendarCmd() *cobra.Command {
	var title, start, end, description, location, provider string

	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Print an add-to-calendar link",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClassifier()
			if err != nil {
				return err
			}

			parsed := c.ToLocal(start)
			if parsed.Degraded {
				return fmt.Errorf("--start: %s", parsed.Reason)
			}
			event := deadline.CalendarEvent{
				Title:       title,
				Start:       parsed.Time,
				Description: description,
				Location:    location,
			}
			if end != "" {
				parsedEnd := c.ToLocal(end)
				if parsedEnd.Degraded {
					return fmt.Errorf("--end: %s", parsedEnd.Reason)
				}
				event.End = parsedEnd.Time
			}

			link, err := c.BuildCalendarURL(event, deadline.Provider(provider))
			if err != nil {
				return err
			}
			fmt.Println(link)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Event title")
	cmd.Flags().StringVar(&start, "start", "", "Event start (ISO-8601, UTC when no offset)")
	cmd.Flags().StringVar(&end, "end", "", "Event end (default is one hour after start)")
	cmd.Flags().StringVar(&description, "description", "", "Event description")
	cmd.Flags().StringVar(&location, "location", "", "Event location")
	cmd.Flags().StringVar(&provider, "provider", string(deadline.ProviderGoogle), "google, outlook or apple")
	cmd.MarkFlagRequired("start")

	return cmd
}

func icsCmd() *cobra.Command {
	var title, due, description, outDir string

	cmd := &cobra.Command{
		Use:   "ics",
		Short: "Write a deadline reminder as an .ics file",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClassifier()
			if err != nil {
				return err
			}

			parsed := c.ToLocal(due)
			if parsed.Degraded {
				return fmt.Errorf("--due: %s", parsed.Reason)
			}

			file := c.DownloadICS(title, parsed.Time, description)
			if outDir == "" {
				fmt.Print(file.Content)
				return nil
			}

			path := filepath.Join(outDir, file.FileName)
			if err := os.WriteFile(path, []byte(file.Content), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			fmt.Println(path)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Deadline title")
	cmd.Flags().StringVar(&due, "due", "", "Deadline (ISO-8601, UTC when no offset)")
	cmd.Flags().StringVar(&description, "description", "", "Event description")
	cmd.Flags().StringVar(&outDir, "out", "", "Directory to write the file to (default prints to stdout)")
	cmd.MarkFlagRequired("due")

	return cmd
}

func businessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "business <days>",
		Short: "Print the 5 PM deadline a number of days out, skipping weekends",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			days, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("days must be an integer: %w", err)
			}

			c, err := newClassifier()
			if err != nil {
				return err
			}
			fmt.Println(c.CalculateBusinessDeadline(days).Format(time.RFC3339))
			return nil
		},
	}
}
