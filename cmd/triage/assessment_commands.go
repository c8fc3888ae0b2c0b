package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"triage/internal/api"
)

func newAssessmentCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newListCommand(ctx),
		newShowCommand(ctx),
		newNewCommand(ctx),
		newStatsCommand(ctx),
	}
}

func newListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List assessments, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			items, err := client.ListAssessments(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				if items == nil {
					items = []api.AssessmentSummary{}
				}
				return writeJSON(cmd, items)
			}
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "No assessments")
				return nil
			}
			fmt.Fprint(out, renderTable(
				[]string{"ID", "Date", "Patient", "Injury", "Severity", "Status", "Symptoms"},
				assessmentRows(items),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}
}

func assessmentRows(items []api.AssessmentSummary) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		severity := "-"
		if item.SeverityScore > 0 {
			severity = strconv.Itoa(item.SeverityScore) + "/5"
		}
		rows = append(rows, []string{
			item.ID,
			shortDate(item.Date),
			item.PatientIdentifier,
			item.InjuryType,
			severity,
			recommendationLabel(item.RecommendationStatus),
			item.KeySymptomsSnippet,
		})
	}
	return rows
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show an assessment with its possible diagnoses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			data, err := client.DescribeAssessment(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, data)
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderFields("Assessment "+data.ID, assessmentFields(data)))
			if len(data.TopPossibleDiagnoses) == 0 {
				return nil
			}
			rows := make([][]string, 0, len(data.TopPossibleDiagnoses))
			for _, d := range data.TopPossibleDiagnoses {
				rows = append(rows, []string{d.Name, fmt.Sprintf("%.0f%%", d.Confidence*100), d.Description})
			}
			fmt.Fprint(out, renderTable([]string{"Diagnosis", "Confidence", "Notes"}, rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft}))
			return nil
		},
	}
}

func assessmentFields(data api.TriageData) [][2]string {
	var age, temperature, severity string
	if data.PatientAge != nil {
		age = strconv.Itoa(*data.PatientAge)
	}
	if data.TemperatureCelsius != nil {
		temperature = strconv.FormatFloat(*data.TemperatureCelsius, 'f', 1, 64) + " °C"
	}
	if data.SeverityScore != nil {
		severity = strconv.Itoa(*data.SeverityScore) + "/5"
	}
	return [][2]string{
		{"Created", data.CreatedAt},
		{"User", data.UserID},
		{"Patient", data.PatientName},
		{"Age", age},
		{"Sex", data.PatientSex},
		{"Symptoms", data.SymptomDescription},
		{"Duration", data.SymptomDuration},
		{"Pain level", data.PainLevel},
		{"Body parts", data.AffectedBodyParts},
		{"Fever", yesNo(data.HasFever)},
		{"Temperature", temperature},
		{"Allergies", data.KnownAllergies},
		{"Medications", data.CurrentMedications},
		{"Recent travel", data.RecentTravel},
		{"Conditions", data.PreExistingConditions},
		{"Image", data.ImageURL},
		{"Injury", data.PredictedInjuryLabel},
		{"Summary", data.InjuryDescriptionSummary},
		{"Severity", severity},
		{"Reason", data.SeverityReason},
		{"Status", recommendationLabel(data.RecommendationStatus)},
		{"Recommendation", data.TriageRecommendation},
	}
}

func newNewCommand(ctx *commandContext) *cobra.Command {
	var req api.CreateAssessmentRequest
	var age, temperature float64
	var fever bool

	cmd := &cobra.Command{
		Use:   "new",
		Short: "Submit a new assessment",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(req.Symptoms) == "" {
				return errors.New("--symptoms is required")
			}
			flags := cmd.Flags()
			if flags.Changed("age") {
				req.PatientAge = api.Number(age)
			}
			if flags.Changed("temperature") {
				req.Temperature = api.Number(temperature)
			}
			if flags.Changed("fever") {
				req.HasFever = &fever
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.CreateAssessment(cmd.Context(), req)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, resp)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created assessment %s\n", resp.AssessmentID)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&req.UserID, "user", "", "Submitting user id (ignored when the token identifies a user)")
	flags.StringVarP(&req.Symptoms, "symptoms", "s", "", "Symptom description")
	flags.StringVar(&req.PatientName, "name", "", "Patient name")
	flags.Float64Var(&age, "age", 0, "Patient age in years")
	flags.StringVar(&req.PatientSex, "sex", "", "Patient sex (Male, Female, Other, Prefer not to say)")
	flags.StringVar(&req.SymptomDuration, "duration", "", "How long symptoms have lasted")
	flags.StringVar(&req.PainLevel, "pain", "", "Pain level 0-10")
	flags.StringVar(&req.AffectedBodyParts, "body-parts", "", "Affected body parts")
	flags.BoolVar(&fever, "fever", false, "Patient has a fever")
	flags.Float64Var(&temperature, "temperature", 0, "Body temperature in °C")
	flags.StringVar(&req.KnownAllergies, "allergies", "", "Known allergies")
	flags.StringVar(&req.CurrentMedications, "medications", "", "Current medications")
	flags.StringVar(&req.RecentTravel, "travel", "", "Recent travel (yes or no)")
	flags.StringVar(&req.PreExistingConditions, "conditions", "", "Pre-existing conditions")
	flags.StringVar(&req.ImageURL, "image-url", "", "URL of an uploaded injury image")
	return cmd
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show dashboard counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			stats, err := client.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, stats)
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			printSection(out, "Dashboard", colorize)
			highRisk := statusOK
			if stats.HighRiskCount > 0 {
				highRisk = statusError
			}
			pending := statusOK
			if stats.PendingReview > 0 {
				pending = statusWarn
			}
			fmt.Fprintln(out, renderStatusLine("Total assessments", statusInfo, strconv.Itoa(stats.TotalAssessments), colorize))
			fmt.Fprintln(out, renderStatusLine("High risk", highRisk,
				fmt.Sprintf("%d (%+d vs last week)", stats.HighRiskCount, stats.HighRiskChange), colorize))
			fmt.Fprintln(out, renderStatusLine("Completed today", statusInfo, strconv.Itoa(stats.CompletedToday), colorize))
			fmt.Fprintln(out, renderStatusLine("Pending review", pending, strconv.Itoa(stats.PendingReview), colorize))
			return nil
		},
	}
}

// shortDate trims an RFC3339 timestamp to minutes.
func shortDate(ts string) string {
	if len(ts) >= 16 {
		return strings.Replace(ts[:16], "T", " ", 1)
	}
	return ts
}
