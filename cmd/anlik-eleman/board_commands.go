package main

import (
	"context"
	"errors"

	"github.com/anlik-eleman/backend/internal/models"
	"github.com/spf13/cobra"
)

var errAdminRequired = errors.New("an admin session is required")

func newApplicationsCommand() *cobra.Command {
	applicationsCmd := &cobra.Command{
		Use:   "applications",
		Short: "Follow job applications",
	}

	var (
		filter models.ApplicationFilter
		status string
	)
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the applications the current user sent or received",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" {
				parsed, err := models.ParseApplicationStatus(status)
				if err != nil {
					return err
				}
				filter.Status = parsed
			}
			return withClient(cmd, func(ctx context.Context, env *clientEnv) error {
				applications, err := env.facade.ListApplications(ctx, filter)
				if err != nil {
					return err
				}
				return printJSON(cmd, applications)
			})
		},
	}
	listCmd.Flags().StringVar(&filter.JobID, "job", "", "Only applications to this job id")
	listCmd.Flags().StringVar(&status, "status", "", "Only applications in this status")
	listCmd.Flags().IntVar(&filter.Offset, "offset", 0, "Rows to skip")
	listCmd.Flags().IntVar(&filter.Limit, "limit", 0, "Page size")

	var (
		decision string
		notes    string
	)
	reviewCmd := &cobra.Command{
		Use:   "review <application-id>",
		Short: "Decide on an application to one of your postings and notify the applicant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := models.ParseApplicationStatus(decision)
			if err != nil {
				return err
			}
			var employerNotes *string
			if cmd.Flags().Changed("notes") {
				employerNotes = &notes
			}
			return withClient(cmd, func(ctx context.Context, env *clientEnv) error {
				application, err := env.facade.ReviewApplication(ctx, args[0], parsed, employerNotes)
				if err != nil {
					return err
				}
				return printJSON(cmd, application)
			})
		},
	}
	reviewCmd.Flags().StringVar(&decision, "status", string(models.ApplicationReviewed), "New status (reviewed, shortlisted, accepted, rejected)")
	reviewCmd.Flags().StringVar(&notes, "notes", "", "Private notes about the applicant")

	applicationsCmd.AddCommand(listCmd, reviewCmd)
	return applicationsCmd
}

func newReviewsCommand() *cobra.Command {
	reviewsCmd := &cobra.Command{
		Use:   "reviews",
		Short: "Read and write ratings between employers and job seekers",
	}
	listCmd := &cobra.Command{
		Use:   "list <profile-id>",
		Short: "List the public reviews of a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, env *clientEnv) error {
				reviews, err := env.facade.ListReviews(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, reviews)
			})
		},
	}

	var (
		rating  int
		comment string
		jobID   string
		private bool
	)
	createCmd := &cobra.Command{
		Use:   "create <profile-id>",
		Short: "Rate another user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			row := models.ReviewInsert{RevieweeID: args[0], Rating: rating, IsPublic: !private}
			if comment != "" {
				row.Comment = &comment
			}
			if jobID != "" {
				row.JobID = &jobID
			}
			return withClient(cmd, func(ctx context.Context, env *clientEnv) error {
				user, err := env.currentUser()
				if err != nil {
					return err
				}
				row.ReviewerID = user.ID
				review, err := env.facade.CreateReview(ctx, row)
				if err != nil {
					return err
				}
				return printJSON(cmd, review)
			})
		},
	}
	createCmd.Flags().IntVar(&rating, "rating", 0, "Rating from 1 to 5")
	createCmd.Flags().StringVar(&comment, "comment", "", "Free text comment")
	createCmd.Flags().StringVar(&jobID, "job", "", "The job the review is about")
	createCmd.Flags().BoolVar(&private, "private", false, "Only the two parties may read the review")

	var limit int
	testimonialsCmd := &cobra.Command{
		Use:   "testimonials",
		Short: "Show the best rated public reviews",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, env *clientEnv) error {
				reviews, err := env.facade.ListTestimonials(ctx, limit)
				if err != nil {
					return err
				}
				return printJSON(cmd, reviews)
			})
		},
	}
	testimonialsCmd.Flags().IntVar(&limit, "limit", 0, "How many reviews to show")

	reviewsCmd.AddCommand(listCmd, createCmd, testimonialsCmd)
	return reviewsCmd
}

func newDashboardCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Summarize the current employer's postings, or the moderation queues for admins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, env *clientEnv) error {
				profile := env.state.Profile
				if profile == nil {
					return errNotSignedIn
				}
				switch profile.UserType {
				case models.UserTypeAdmin:
					dashboard, err := env.facade.AdminDashboard(ctx)
					if err != nil {
						return err
					}
					return printJSON(cmd, dashboard)
				case models.UserTypeEmployer:
					dashboard, err := env.facade.EmployerDashboard(ctx, profile.ID)
					if err != nil {
						return err
					}
					return printJSON(cmd, dashboard)
				default:
					return errors.New("dashboards are available to employers and admins")
				}
			})
		},
	}
}

func newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show platform headline counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, env *clientEnv) error {
				stats, err := env.facade.PlatformStats(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, stats)
			})
		},
	}
}
